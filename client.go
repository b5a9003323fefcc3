package topicscope

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coregx/topicscope/model"
	"github.com/google/uuid"
)

// Client is the debugging client: one live transport connection whose
// inbound messages fan out to independently tracked topic sessions.
//
// Every mutation of sessions and connection state happens under one mutex.
// Transport callbacks, subscribe acknowledgements, watchdog ticks and caller
// operations all take it, so they never run concurrently. Notifications are
// delivered under the same lock.
//
// Accessors return deep copies; the live sessions never leave the client.
//
// Thread safety: Safe for concurrent use.
type Client struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	manager       *TopicManager
	router        *TopicRouter
	transports    map[model.Mode]Transport
	notifications NotificationService
	persister     *PersistWorker
	logger        Logger

	form            model.FormState
	sessionDefaults SessionOptions
	defaultClientID string

	// Connection supervisor state.
	status            model.ConnectionStatus
	handle            Handle
	generation        uint64
	dialedClientID    string
	lastInteraction   time.Time
	watchdogCancel    context.CancelFunc
	watchdogs         atomic.Int32
	idleCheckInterval time.Duration
	now               func() time.Time

	// Latest subscribe/unsubscribe request per session id. Acks of older
	// requests are ignored.
	subRequests uint64
	latestSub   map[string]uint64
}

// NewClient creates a new Client with the provided options.
//
// Required options:
//   - WithTransport: at least one transport (mqtt and/or stream mode)
//   - WithLogger: logger instance
//
// Optional options:
//   - WithNotifications: view observer (default: NoOpNotificationService)
//   - WithPersistence: background storage of topics and form state
//   - WithFormState: initial connection form
//   - WithIdleCheckInterval: idle watchdog period (default: 1s)
//   - WithSessionDefaults: QoS, max logs for new topics
//
// Example:
//
//	client, err := topicscope.NewClient(
//	    topicscope.WithTransport(model.ModeMQTT, mqtt.NewTransport(logger)),
//	    topicscope.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.CreateTopic("home/+/temperature")
//	client.SetURL("ws://broker.local:8884/mqtt")
//	client.Connect()
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		transports:        make(map[model.Mode]Transport),
		notifications:     &NoOpNotificationService{},
		form:              model.DefaultFormState(),
		defaultClientID:   "topicscope_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		status:            model.StatusDisconnected,
		idleCheckInterval: time.Second,
		now:               time.Now,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply client option", err)
		}
	}

	if len(c.transports) == 0 {
		return nil, NewError(ErrCodeConfiguration, "at least one Transport is required (use WithTransport)")
	}
	if c.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithLogger)")
	}

	manager, err := NewTopicManager(
		WithTopicManagerLogger(c.logger),
		WithStateListener(c.onStateChanged),
	)
	if err != nil {
		return nil, err
	}
	router, err := NewTopicRouter(
		WithRouterManager(manager),
		WithRouterLogger(c.logger),
		WithRouteListener(c.onRouted),
		WithLogListener(c.onAppended),
	)
	if err != nil {
		return nil, err
	}

	c.manager = manager
	c.router = router
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// Load restores topics and the connection form from persistence. Call it
// before Connect. Without persistence it does nothing.
func (c *Client) Load(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}

	topics, form, err := c.persister.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.form = form
	c.manager.ImportConfig(topics)
	c.logger.Infof("Restored %d topics", c.manager.Len())
	return nil
}

// Close disconnects and flushes pending writes. The client must not be used
// afterwards.
func (c *Client) Close(ctx context.Context) error {
	c.Disconnect()

	var err error
	if c.persister != nil {
		err = c.persister.Flush(ctx)
	}
	c.cancel()
	return err
}

// CreateTopic adds a session for topic, or returns the existing one with the
// same topic string. While connected to a broker the new session is
// subscribed at once.
//
// An invalid filter is reported as a system log entry and a validation error.
func (c *Client) CreateTopic(topic string) (*model.TopicSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	topic = strings.TrimSpace(topic)
	existing := c.manager.FindByTopic(topic)

	session, err := c.manager.CreateSession(topic, c.sessionDefaults)
	if err != nil {
		c.router.AddSystemMessage(fmt.Sprintf("Invalid topic %q: %v", topic, err), "")
		return nil, err
	}

	if existing == nil {
		c.persistTopicsLocked()
		if ph, ok := c.pubSubLocked(); ok {
			c.subscribeLocked(ph, session)
		}
	}
	return session.Clone(), nil
}

// DeleteTopic removes a session, unsubscribing it first when connected.
// It returns false for an unknown id.
func (c *Client) DeleteTopic(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	session := c.manager.Session(id)
	if session == nil {
		return false
	}

	if ph, ok := c.pubSubLocked(); ok && session.IsSubscribed {
		c.unsubscribeLocked(ph, session.ID, session.Topic)
	}

	c.manager.DeleteSession(id)
	c.persistTopicsLocked()
	return true
}

// SwitchTopic makes a session active and resets its unread counter.
// It returns false for an unknown id.
func (c *Client) SwitchTopic(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.manager.SwitchToSession(id) {
		return false
	}
	c.persistTopicsLocked()
	return true
}

// MoveTopic moves a session to position index in the display order.
func (c *Client) MoveTopic(id string, index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.manager.MoveSession(id, index) {
		return false
	}
	c.persistTopicsLocked()
	return true
}

// SetPaused pauses or resumes a session.
func (c *Client) SetPaused(id string, paused bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.manager.SetPaused(id, paused) {
		return false
	}
	c.persistTopicsLocked()
	return true
}

// SetMuted mutes or unmutes a session.
func (c *Client) SetMuted(id string, muted bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.manager.SetMuted(id, muted)
}

// SetFilter sets a session's read-side substring filter.
func (c *Client) SetFilter(id, filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.manager.SetFilter(id, filter)
}

// ClearLogs empties a session's log buffer.
func (c *Client) ClearLogs(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.manager.ClearLogs(id)
}

// SubscribeAll subscribes every session that is not subscribed yet.
// Returns ErrNotConnected unless connected to a broker.
func (c *Client) SubscribeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ph, ok := c.pubSubLocked()
	if !ok {
		c.router.AddSystemMessage("Not connected to a broker", "")
		return ErrNotConnected
	}
	for _, s := range c.manager.AllSessions() {
		if !s.IsSubscribed {
			c.subscribeLocked(ph, s)
		}
	}
	return nil
}

// UnsubscribeAll unsubscribes every subscribed session.
// Returns ErrNotConnected unless connected to a broker.
func (c *Client) UnsubscribeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ph, ok := c.pubSubLocked()
	if !ok {
		c.router.AddSystemMessage("Not connected to a broker", "")
		return ErrNotConnected
	}
	for _, s := range c.manager.AllSessions() {
		if s.IsSubscribed {
			c.unsubscribeLocked(ph, s.ID, s.Topic)
		}
	}
	return nil
}

// ClearTopics unsubscribes and removes every session.
func (c *Client) ClearTopics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ph, ok := c.pubSubLocked(); ok {
		for _, s := range c.manager.AllSessions() {
			if s.IsSubscribed {
				c.unsubscribeLocked(ph, s.ID, s.Topic)
			}
		}
	}
	c.manager.Clear()
	c.persistTopicsLocked()
}

// ExportTopics returns the persisted shape of every session.
func (c *Client) ExportTopics() model.TopicsConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.manager.ExportConfig()
}

// ImportTopics replaces every session with cfg. While connected the old
// sessions are unsubscribed and the imported ones subscribed; a session whose
// id, topic and QoS survive the import keeps its subscription untouched.
func (c *Client) ImportTopics(cfg model.TopicsConfig) error {
	if err := cfg.Validate(); err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid topics config", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.manager.AllSessions()
	c.manager.ImportConfig(cfg)

	ph, connected := c.pubSubLocked()
	if connected {
		kept := make(map[string]bool, len(previous))
		for _, old := range previous {
			if !old.IsSubscribed {
				continue
			}
			if s := c.manager.Session(old.ID); s != nil && s.Topic == old.Topic && s.QoS == old.QoS {
				kept[old.ID] = true
				c.manager.SetSubscribed(old.ID, true)
				continue
			}
			c.unsubscribeLocked(ph, old.ID, old.Topic)
		}
		for _, s := range c.manager.AllSessions() {
			if !kept[s.ID] {
				c.subscribeLocked(ph, s)
			}
		}
	}
	c.persistTopicsLocked()
	c.router.AddSystemMessage(fmt.Sprintf("Imported %d topics", c.manager.Len()), "")
	return nil
}

// Sessions returns copies of every session in display order.
func (c *Client) Sessions() []*model.TopicSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := c.manager.AllSessions()
	out := make([]*model.TopicSession, 0, len(all))
	for _, s := range all {
		out = append(out, s.Clone())
	}
	return out
}

// Session returns a copy of the session with id, or nil.
func (c *Client) Session(id string) *model.TopicSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.manager.Session(id); s != nil {
		return s.Clone()
	}
	return nil
}

// ActiveSession returns a copy of the active session, or nil.
func (c *Client) ActiveSession() *model.TopicSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.manager.ActiveSession(); s != nil {
		return s.Clone()
	}
	return nil
}

// State returns a log-free snapshot of every session.
func (c *Client) State() model.ManagerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.manager.State()
}

// Status returns the connection status.
func (c *Client) Status() model.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// FormState returns a copy of the connection form.
func (c *Client) FormState() model.FormState {
	c.mu.Lock()
	defer c.mu.Unlock()

	form := c.form
	form.History = append(model.History{}, c.form.History...)
	return form
}

// History returns the sent payloads, most recent first.
func (c *Client) History() model.History {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append(model.History{}, c.form.History...)
}

// SetIdleTimeout sets the inactivity threshold in seconds. Zero disables the
// watchdog; negative values count as zero.
func (c *Client) SetIdleTimeout(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seconds < 0 {
		seconds = 0
	}
	c.form.IdleSeconds = seconds
	c.persistFormLocked()
}

// SetURL sets the URL Connect dials. An empty URL falls back to the one
// composed from the connection config.
func (c *Client) SetURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.form.URL = strings.TrimSpace(url)
	c.persistFormLocked()
}

// SetConnectionConfig replaces the connection config. It takes effect on the
// next Connect.
func (c *Client) SetConnectionConfig(cfg model.ConnectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid connection config", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.form.Connection = cfg
	c.persistFormLocked()
	return nil
}

// ApplyConnectionConfig copies the URL composed from the connection config
// into the form URL and returns it.
func (c *Client) ApplyConnectionConfig() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	url := c.form.Connection.BuildURL()
	if url == "" {
		c.router.AddSystemMessage("Connection config has no host", "")
		return "", ErrEmptyURL
	}
	c.form.URL = url
	c.persistFormLocked()
	return url, nil
}

// SetHistorySize bounds the send history, clamped to 1..50, and returns the
// size in effect.
func (c *Client) SetHistorySize(size int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.form.HistorySize = model.ClampHistorySize(size)
	c.form.History = c.form.History.Truncate(c.form.HistorySize)
	c.persistFormLocked()
	return c.form.HistorySize
}

func (c *Client) persistTopicsLocked() {
	if c.persister != nil {
		c.persister.SaveTopics(c.manager.ExportConfig())
	}
}

func (c *Client) persistFormLocked() {
	if c.persister != nil {
		form := c.form
		form.History = append(model.History{}, c.form.History...)
		c.persister.SaveFormState(form)
	}
}

func (c *Client) onStateChanged(state model.ManagerState) {
	if err := c.notifications.NotifyStateChanged(c.ctx, state); err != nil {
		c.logger.Warnf("State notification failed: %v", err)
	}
}

func (c *Client) onRouted(entry model.LogEntry, sessions []*model.TopicSession) {
	infos := make([]model.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	if err := c.notifications.NotifyMessageRouted(c.ctx, entry, infos); err != nil {
		c.logger.Warnf("Message notification failed: %v", err)
	}
}

func (c *Client) onAppended(entry model.LogEntry, sessions []*model.TopicSession) {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	if err := c.notifications.NotifyLogAppended(c.ctx, entry, ids); err != nil {
		c.logger.Warnf("Log notification failed: %v", err)
	}
}
