// Package mqtt implements topicscope.Transport for MQTT brokers using the
// eclipse paho.golang autopaho connection manager.
//
// Supported URL schemes: ws, wss (MQTT over websockets), mqtt, tcp and
// mqtts, ssl, tls.
package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coregx/topicscope"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

const (
	defaultConnectRetryDelay = 5 * time.Second
	defaultKeepAlive         = 60
	requestTimeout           = 30 * time.Second
)

// Transport dials MQTT broker connections.
type Transport struct {
	// How long autopaho waits between connection attempts when the
	// connection is dialled with AutoReconnect (defaults to 5s)
	ConnectRetryDelay time.Duration

	// Session Expiry Interval in seconds (if 0 the Session ends when the
	// Network Connection is closed)
	SessionExpiryInterval int

	// Logger receives diagnostics (defaults to topicscope.NoopLogger)
	Logger topicscope.Logger
}

// NewTransport creates a Transport with default settings.
//
// Example:
//
//	client, _ := topicscope.NewClient(
//	    topicscope.WithTransport(model.ModeMQTT, mqtt.NewTransport(logger)),
//	    topicscope.WithLogger(logger),
//	)
func NewTransport(logger topicscope.Logger) *Transport {
	return &Transport{Logger: logger}
}

func (t *Transport) logger() topicscope.Logger {
	return topicscope.LoggerOrNoop(t.Logger)
}

func (t *Transport) connectRetryDelay() time.Duration {
	if t.ConnectRetryDelay <= 0 {
		return defaultConnectRetryDelay
	}
	return t.ConnectRetryDelay
}

func keepAlive(d time.Duration) uint16 {
	secs := int(d / time.Second)
	if secs <= 0 {
		return defaultKeepAlive
	}
	if secs > 65535 {
		return 65535
	}
	return uint16(secs)
}

// SupportedScheme reports whether scheme can be dialled.
func SupportedScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "ws", "wss", "mqtt", "tcp", "mqtts", "ssl", "tls":
		return true
	}
	return false
}

// Dial starts a connection manager for rawURL and returns at once.
//
// Without opts.AutoReconnect the first failed attempt or lost link ends the
// connection; with it autopaho keeps retrying and every restored link is
// reported through OnOpen again.
func (t *Transport) Dial(rawURL string, opts topicscope.DialOptions, events topicscope.EventHandler) (topicscope.Handle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if !SupportedScheme(u.Scheme) {
		return nil, fmt.Errorf("unsupported scheme %q in url %s", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %s has no host", rawURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		ctx:    ctx,
		cancel: cancel,
		events: events,
		auto:   opts.AutoReconnect,
		logger: t.logger(),
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		CleanStartOnInitialConnection: true,
		KeepAlive:                     keepAlive(opts.KeepAlive),
		SessionExpiryInterval:         uint32(t.SessionExpiryInterval),
		ConnectRetryDelay:             t.connectRetryDelay(),
		ConnectTimeout:                opts.ConnectTimeout,
		ConnectPacketBuilder: func(pc *paho.Connect, _ *url.URL) (*paho.Connect, error) {
			if opts.Username == "" {
				pc.UsernameFlag = false
				pc.PasswordFlag = false
				pc.Username = ""
				pc.Password = nil
				return pc, nil
			}
			pc.UsernameFlag = true
			pc.Username = opts.Username
			pc.PasswordFlag = opts.Password != ""
			pc.Password = []byte(opts.Password)
			return pc, nil
		},
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			h.connectionUp()
		},
		OnConnectError: func(err error) {
			h.linkError(fmt.Errorf("connect: %w", err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID: opts.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					h.received(pr.Packet)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				h.linkError(err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				h.linkError(fmt.Errorf("server disconnected (reason code %d)", d.ReasonCode))
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	h.cm = cm

	go h.watch()
	return h, nil
}

// handle is one autopaho connection manager.
type handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	cm     *autopaho.ConnectionManager
	events topicscope.EventHandler
	auto   bool
	logger topicscope.Logger

	closeOnce sync.Once
}

func (h *handle) live() bool {
	return h.ctx.Err() == nil
}

func (h *handle) connectionUp() {
	if h.live() && h.events.OnOpen != nil {
		h.events.OnOpen()
	}
}

func (h *handle) linkError(err error) {
	if !h.live() {
		return
	}
	if h.events.OnError != nil {
		h.events.OnError(err)
	}
	if !h.auto {
		h.cancel()
	}
}

func (h *handle) received(p *paho.Publish) {
	if !h.live() || h.events.OnMessage == nil {
		return
	}
	h.events.OnMessage(topicscope.InboundMessage{
		Topic:    p.Topic,
		Payload:  p.Payload,
		QoS:      p.QoS,
		Retained: p.Retain,
	})
}

// watch reports OnClose once the connection manager has stopped.
func (h *handle) watch() {
	<-h.cm.Done()
	h.closeOnce.Do(func() {
		if h.events.OnClose != nil {
			h.events.OnClose()
		}
	})
}

// Send is not supported: MQTT payloads need a topic.
func (h *handle) Send([]byte) error {
	return fmt.Errorf("mqtt: raw send is not supported, use Publish")
}

// End stops the connection manager. Without force a DISCONNECT packet is
// sent first, bounded by a short timeout.
func (h *handle) End(force bool) error {
	if !force && h.live() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.cm.Disconnect(ctx); err != nil {
			h.logger.Debugf("mqtt disconnect: %v", err)
		}
	}
	h.cancel()
	return nil
}

// Subscribe sends SUBSCRIBE in the background; done receives the outcome.
func (h *handle) Subscribe(filter string, qos byte, done func(err error)) {
	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, requestTimeout)
		defer cancel()

		suback, err := h.cm.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: qos}},
		})
		if err == nil && suback != nil {
			for _, code := range suback.Reasons {
				if code >= 0x80 {
					err = fmt.Errorf("subscription rejected (reason code 0x%02x)", code)
					break
				}
			}
		}
		if done != nil {
			done(err)
		}
	}()
}

// Unsubscribe sends UNSUBSCRIBE in the background; done receives the outcome.
func (h *handle) Unsubscribe(filter string, done func(err error)) {
	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, requestTimeout)
		defer cancel()

		_, err := h.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{filter}})
		if done != nil {
			done(err)
		}
	}()
}

// Publish queues payload for topic and returns at once. Delivery failures
// are reported through OnError.
func (h *handle) Publish(topic string, payload []byte, qos byte) error {
	if !h.live() {
		return fmt.Errorf("mqtt: connection closed")
	}
	if topic == "" {
		return fmt.Errorf("mqtt: publish topic is empty")
	}

	pub := &paho.Publish{Topic: topic, Payload: payload, QoS: qos}
	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, requestTimeout)
		defer cancel()

		if _, err := h.cm.Publish(ctx, pub); err != nil && h.live() {
			h.logger.Warnf("mqtt publish %s: %v", topic, err)
			if h.events.OnError != nil {
				h.events.OnError(fmt.Errorf("publish %s: %w", topic, err))
			}
		}
	}()
	return nil
}
