// Package stream implements topicscope.Transport for plain websocket
// streams using gorilla/websocket. Frames carry no topic; the client routes
// them to the active session.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coregx/topicscope"
	"github.com/coregx/topicscope/retry"
	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer     = 64
	defaultConnectTimeout = 30 * time.Second
	writeWait             = 10 * time.Second
)

// ErrSendBufferFull is returned by Send when the writer cannot keep up.
var ErrSendBufferFull = errors.New("stream: send buffer full")

// ErrClosed is returned by Send after End.
var ErrClosed = errors.New("stream: connection closed")

// Transport dials websocket stream connections.
type Transport struct {
	// Dialer used for every attempt (defaults to websocket.DefaultDialer)
	Dialer *websocket.Dialer

	// Backoff between attempts of a connection dialled with AutoReconnect
	// (defaults to retry.ReconnectStrategy())
	Reconnect retry.Strategy

	// Frames queued for writing before Send fails (defaults to 64)
	SendBuffer int

	// Logger receives diagnostics (defaults to topicscope.NoopLogger)
	Logger topicscope.Logger
}

// NewTransport creates a Transport with default settings.
func NewTransport(logger topicscope.Logger) *Transport {
	return &Transport{
		Reconnect: retry.ReconnectStrategy(),
		Logger:    logger,
	}
}

// Dial starts connecting to rawURL (ws or wss) in the background.
//
// With opts.AutoReconnect a failed attempt or dropped link is retried with
// the Reconnect backoff; each loss is reported through OnError and each
// restored link through OnOpen. Without it the first failure ends the
// connection. OnClose is reported exactly once.
func (t *Transport) Dial(rawURL string, opts topicscope.DialOptions, events topicscope.EventHandler) (topicscope.Handle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q in url %s (want ws or wss)", u.Scheme, rawURL)
	}

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	size := t.SendBuffer
	if size <= 0 {
		size = defaultSendBuffer
	}
	strategy := t.Reconnect
	if strategy.BaseDelay <= 0 {
		strategy = retry.ReconnectStrategy()
	}
	logger := topicscope.LoggerOrNoop(t.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		ctx:      ctx,
		cancel:   cancel,
		url:      rawURL,
		opts:     opts,
		events:   events,
		dialer:   dialer,
		strategy: strategy,
		logger:   logger,
		out:      make(chan []byte, size),
	}

	go h.run()
	return h, nil
}

type handle struct {
	ctx      context.Context
	cancel   context.CancelFunc
	url      string
	opts     topicscope.DialOptions
	events   topicscope.EventHandler
	dialer   *websocket.Dialer
	strategy retry.Strategy
	logger   topicscope.Logger

	out chan []byte

	closeOnce sync.Once
}

func (h *handle) live() bool {
	return h.ctx.Err() == nil
}

// Send queues a text frame.
func (h *handle) Send(payload []byte) error {
	if !h.live() {
		return ErrClosed
	}
	frame := append([]byte(nil), payload...)
	select {
	case h.out <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// End closes the stream. A close frame is attempted either way; force only
// matters for transports with pending acknowledgements.
func (h *handle) End(bool) error {
	h.cancel()
	return nil
}

func (h *handle) run() {
	defer h.closeOnce.Do(func() {
		if h.events.OnClose != nil {
			h.events.OnClose()
		}
	})

	for attempt := 0; ; {
		conn, err := h.dial()
		if err == nil {
			attempt = 0
			h.emitOpen()
			err = h.serve(conn)
		}
		if !h.live() {
			return
		}
		h.emitError(err)

		if !h.opts.AutoReconnect || !h.strategy.IsRetryable(attempt+1) {
			h.cancel()
			return
		}
		h.logger.Infof("stream reconnecting to %s in %v", h.url, h.strategy.CalculateRetryDelay(attempt))
		if h.strategy.Wait(h.ctx, attempt) != nil {
			return
		}
		attempt++
	}
}

func (h *handle) dial() (*websocket.Conn, error) {
	timeout := h.opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(h.ctx, timeout)
	defer cancel()

	conn, _, err := h.dialer.DialContext(ctx, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", h.url, err)
	}
	return conn, nil
}

// serve pumps frames until the link breaks or the handle ends.
func (h *handle) serve(conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	go h.writeLoop(conn, done)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("closed by server: %w", err)
			}
			return err
		}
		if h.events.OnMessage != nil && h.live() {
			h.events.OnMessage(topicscope.InboundMessage{
				Payload: data,
				Binary:  mt == websocket.BinaryMessage,
			})
		}
	}
}

// writeLoop is the only writer of data frames on conn. It also sends pings
// at the keep-alive period and the close frame when the handle ends.
func (h *handle) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	var ping <-chan time.Time
	if h.opts.KeepAlive > 0 {
		ticker := time.NewTicker(h.opts.KeepAlive)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-done:
			return
		case <-h.ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			conn.Close()
			return
		case <-ping:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		case frame := <-h.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Warnf("stream write: %v", err)
				conn.Close()
				return
			}
		}
	}
}

func (h *handle) emitOpen() {
	if h.live() && h.events.OnOpen != nil {
		h.events.OnOpen()
	}
}

func (h *handle) emitError(err error) {
	if err != nil && h.live() && h.events.OnError != nil {
		h.events.OnError(err)
	}
}
