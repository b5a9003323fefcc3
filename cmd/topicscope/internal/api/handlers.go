// Package api provides HTTP handlers for the topicscope control API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coregx/topicscope"
	"github.com/coregx/topicscope/model"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Handler holds dependencies for API handlers.
type Handler struct {
	client *topicscope.Client
	logger topicscope.Logger
}

// NewHandler creates a new API handler.
func NewHandler(client *topicscope.Client, logger topicscope.Logger) *Handler {
	return &Handler{
		client: client,
		logger: logger,
	}
}

// CreateTopicRequest represents a topic creation request.
type CreateTopicRequest struct {
	Topic string `json:"topic"`
}

// SendRequest represents a send request. In mqtt mode the payload goes to the
// configured publish topic.
type SendRequest struct {
	Payload string `json:"payload"`
}

// StatusResponse describes the connection.
type StatusResponse struct {
	Status        model.ConnectionStatus `json:"status"`
	URL           string                 `json:"url"`
	Mode          model.Mode             `json:"mode"`
	PubTopic      string                 `json:"pubTopic,omitempty"`
	ActiveTopicID string                 `json:"activeTopicId,omitempty"`
	Topics        int                    `json:"topics"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Routes registers every endpoint under /api/v1 on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/topics", h.HandleListTopics)
	mux.HandleFunc("POST /api/v1/topics", h.HandleCreateTopic)
	mux.HandleFunc("DELETE /api/v1/topics/{id}", h.HandleDeleteTopic)
	mux.HandleFunc("POST /api/v1/topics/{id}/activate", h.HandleActivateTopic)
	mux.HandleFunc("GET /api/v1/topics/{id}/logs", h.HandleTopicLogs)
	mux.HandleFunc("POST /api/v1/connect", h.HandleConnect)
	mux.HandleFunc("POST /api/v1/disconnect", h.HandleDisconnect)
	mux.HandleFunc("POST /api/v1/send", h.HandleSend)
	mux.HandleFunc("GET /api/v1/status", h.HandleStatus)
	mux.HandleFunc("GET /api/v1/health", h.HandleHealth)
}

// HandleListTopics handles GET /api/v1/topics
func (h *Handler) HandleListTopics(w http.ResponseWriter, _ *http.Request) {
	h.respondSuccess(w, http.StatusOK, h.client.State(), "")
}

// HandleCreateTopic handles POST /api/v1/topics
func (h *Handler) HandleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req CreateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}
	if req.Topic == "" {
		h.respondError(w, http.StatusBadRequest, "topic is required", topicscope.ErrCodeValidation)
		return
	}

	session, err := h.client.CreateTopic(req.Topic)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), topicscope.ErrCodeValidation)
		return
	}

	h.respondSuccess(w, http.StatusCreated, session.Info(), "Topic created")
}

// HandleDeleteTopic handles DELETE /api/v1/topics/{id}
func (h *Handler) HandleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	if !h.client.DeleteTopic(r.PathValue("id")) {
		h.respondError(w, http.StatusNotFound, "Topic not found", "NOT_FOUND")
		return
	}
	h.respondSuccess(w, http.StatusOK, nil, "Topic deleted")
}

// HandleActivateTopic handles POST /api/v1/topics/{id}/activate
func (h *Handler) HandleActivateTopic(w http.ResponseWriter, r *http.Request) {
	if !h.client.SwitchTopic(r.PathValue("id")) {
		h.respondError(w, http.StatusNotFound, "Topic not found", "NOT_FOUND")
		return
	}
	h.respondSuccess(w, http.StatusOK, h.client.State(), "")
}

// HandleTopicLogs handles GET /api/v1/topics/{id}/logs?limit=n
//
// The session filter applies; limit keeps the newest n entries.
func (h *Handler) HandleTopicLogs(w http.ResponseWriter, r *http.Request) {
	session := h.client.Session(r.PathValue("id"))
	if session == nil {
		h.respondError(w, http.StatusNotFound, "Topic not found", "NOT_FOUND")
		return
	}

	logs := session.FilteredLogs()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative number", "INVALID_LIMIT")
			return
		}
		if len(logs) > limit {
			logs = logs[len(logs)-limit:]
		}
	}

	h.respondSuccess(w, http.StatusOK, logs, "")
}

// HandleConnect handles POST /api/v1/connect
//
// Unlike the console toggle it refuses to act on a live connection.
func (h *Handler) HandleConnect(w http.ResponseWriter, _ *http.Request) {
	if status := h.client.Status(); status != model.StatusDisconnected {
		h.respondError(w, http.StatusConflict, "Already "+status.String(), "ALREADY_CONNECTED")
		return
	}

	if err := h.client.Connect(); err != nil {
		h.respondClientError(w, err)
		return
	}
	h.respondSuccess(w, http.StatusAccepted, h.status(), "Connecting")
}

// HandleDisconnect handles POST /api/v1/disconnect
func (h *Handler) HandleDisconnect(w http.ResponseWriter, _ *http.Request) {
	h.client.Disconnect()
	h.respondSuccess(w, http.StatusOK, h.status(), "Disconnected")
}

// HandleSend handles POST /api/v1/send
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}
	if req.Payload == "" {
		h.respondError(w, http.StatusBadRequest, "payload is required", topicscope.ErrCodeValidation)
		return
	}

	if err := h.client.Send(req.Payload); err != nil {
		h.respondClientError(w, err)
		return
	}
	h.respondSuccess(w, http.StatusAccepted, nil, "Sent")
}

// HandleStatus handles GET /api/v1/status
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	h.respondSuccess(w, http.StatusOK, h.status(), "")
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	}

	h.respondSuccess(w, http.StatusOK, health, "")
}

func (h *Handler) status() StatusResponse {
	form := h.client.FormState()
	state := h.client.State()

	url := form.URL
	if url == "" {
		url = form.Connection.BuildURL()
	}
	mode := form.Connection.Mode
	if mode == "" {
		mode = model.ModeMQTT
	}

	return StatusResponse{
		Status:        h.client.Status(),
		URL:           url,
		Mode:          mode,
		PubTopic:      form.Connection.PubTopic,
		ActiveTopicID: state.ActiveTopicID,
		Topics:        len(state.Sessions),
	}
}

// respondClientError maps client errors onto HTTP statuses.
func (h *Handler) respondClientError(w http.ResponseWriter, err error) {
	var tsErr *topicscope.Error
	if !errors.As(err, &tsErr) {
		h.logger.Errorf("Request failed: %v", err)
		h.respondError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}

	status := http.StatusInternalServerError
	switch tsErr.Code {
	case topicscope.ErrCodeValidation, topicscope.ErrCodeConfiguration:
		status = http.StatusBadRequest
	case topicscope.ErrCodeNotConnected:
		status = http.StatusConflict
	case topicscope.ErrCodeTransport:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Errorf("Request failed: %v", err)
	}
	h.respondError(w, status, tsErr.Message, tsErr.Code)
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// LoggingMiddleware logs HTTP requests.
func LoggingMiddleware(next http.Handler, logger topicscope.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
