package topicscope

import (
	"time"

	"github.com/coregx/topicscope/model"
)

// InboundMessage is one message delivered by a transport.
type InboundMessage struct {
	Topic    string // Empty for stream transports
	Payload  []byte
	Binary   bool // Stream frame was binary
	QoS      byte
	Retained bool
}

// EventHandler receives the events of one dialled connection.
//
// Transports call the handlers from their own goroutines, never from inside
// Dial, Subscribe or Unsubscribe. A transport with auto-reconnect reports a
// dropped link through OnError and a restored one through OnOpen again;
// OnClose is reported once, when the connection is over for good.
type EventHandler struct {
	OnOpen    func()
	OnMessage func(msg InboundMessage)
	OnError   func(err error)
	OnClose   func()
}

// DialOptions carries connection settings a transport may honour.
type DialOptions struct {
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

// Handle is a live connection.
type Handle interface {
	// Send writes a raw payload (a stream frame).
	Send(payload []byte) error

	// End tears the connection down. With force set, pending work is not
	// awaited. End must not block on an unresponsive peer.
	End(force bool) error
}

// PubSubHandle is a Handle of a publish/subscribe transport.
//
// Subscribe and Unsubscribe return immediately; done is called later from
// another goroutine with the outcome.
type PubSubHandle interface {
	Handle

	// Subscribe requests a subscription to filter.
	Subscribe(filter string, qos byte, done func(err error))

	// Unsubscribe removes a subscription to filter.
	Unsubscribe(filter string, done func(err error))

	// Publish sends payload to topic.
	Publish(topic string, payload []byte, qos byte) error
}

// Transport dials connections of one kind.
//
// Implementations:
//   - adapters/mqtt: MQTT over ws, wss or tcp (eclipse paho autopaho)
//   - adapters/stream: plain websocket stream (gorilla/websocket)
type Transport interface {
	// Dial starts connecting to url and returns at once. Progress is reported
	// through events. An error means the attempt could not even start (bad
	// URL, unsupported scheme).
	Dial(url string, opts DialOptions, events EventHandler) (Handle, error)
}

// dialOptionsFor maps the persisted connection config onto DialOptions.
func dialOptionsFor(cfg model.ConnectionConfig, clientID string) DialOptions {
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = model.DefaultKeepAlive
	}
	return DialOptions{
		ClientID:       clientID,
		Username:       cfg.Username,
		Password:       cfg.Password,
		KeepAlive:      time.Duration(keepAlive) * time.Second,
		ConnectTimeout: 30 * time.Second,
		AutoReconnect:  cfg.AutoReconnect,
	}
}
