package topicscope

import (
	"fmt"
	"time"

	"github.com/coregx/topicscope/model"
)

// ClientOption is a function that configures a Client.
//
// Example:
//
//	client, err := topicscope.NewClient(
//	    topicscope.WithTransport(model.ModeMQTT, mqtt.NewTransport(logger)),
//	    topicscope.WithTransport(model.ModeStream, stream.NewTransport(logger)),
//	    topicscope.WithLogger(logger),
//	    topicscope.WithPersistence(worker), // optional
//	)
type ClientOption func(*Client) error

// WithTransport registers the transport used for mode. At least one transport
// is required.
func WithTransport(mode model.Mode, transport Transport) ClientOption {
	return func(c *Client) error {
		if mode != model.ModeMQTT && mode != model.ModeStream {
			return fmt.Errorf("unknown mode %q", mode)
		}
		if transport == nil {
			return fmt.Errorf("transport for mode %q cannot be nil", mode)
		}
		c.transports[mode] = transport
		return nil
	}
}

// WithLogger sets the logger instance for the client.
// Logger is required and must not be nil.
//
// This is a required option for NewClient.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithNotifications sets the observer of client state.
// This is an optional configuration - if not provided, NoOpNotificationService is used.
func WithNotifications(service NotificationService) ClientOption {
	return func(c *Client) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		c.notifications = service
		return nil
	}
}

// WithPersistence sets the worker that stores topics and form state.
// This is an optional configuration - without it nothing is persisted and
// Load is a no-op.
func WithPersistence(worker *PersistWorker) ClientOption {
	return func(c *Client) error {
		if worker == nil {
			return fmt.Errorf("persist worker cannot be nil")
		}
		c.persister = worker
		return nil
	}
}

// WithFormState sets the initial connection form. Load replaces it with the
// stored one when persistence is configured.
func WithFormState(state model.FormState) ClientOption {
	return func(c *Client) error {
		if err := state.Connection.Validate(); err != nil {
			return fmt.Errorf("invalid connection config: %w", err)
		}
		state.Normalize()
		c.form = state
		return nil
	}
}

// WithIdleCheckInterval sets how often the idle watchdog checks for
// inactivity. This is an optional configuration - default is 1 second.
func WithIdleCheckInterval(interval time.Duration) ClientOption {
	return func(c *Client) error {
		if interval <= 0 {
			return fmt.Errorf("idle check interval must be > 0, got %v", interval)
		}
		c.idleCheckInterval = interval
		return nil
	}
}

// WithClock replaces time.Now for idle accounting.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		c.now = now
		return nil
	}
}

// WithSessionDefaults sets the defaults of sessions created by CreateTopic.
func WithSessionDefaults(opts SessionOptions) ClientOption {
	return func(c *Client) error {
		if opts.QoS > model.MaxQoS {
			return fmt.Errorf("qos must be 0..%d, got %d", model.MaxQoS, opts.QoS)
		}
		if opts.MaxLogs < 0 {
			return fmt.Errorf("max logs must be >= 0, got %d", opts.MaxLogs)
		}
		c.sessionDefaults = opts
		return nil
	}
}
