package topicscope

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/topicscope/model"
)

// Connection supervision.
//
// Every dial starts a new generation. Events carry the generation they were
// dialled with and are dropped once it is stale, so a late OnOpen or OnMessage
// from a torn-down connection never touches the current one.

// Connect dials the configured URL. It toggles: while Connecting or Connected
// it disconnects instead.
//
// The URL is the form URL, or the one composed from the connection config
// when the form URL is empty. The transport is chosen by the config mode
// (default: mqtt).
//
// Example:
//
//	client.SetURL("wss://broker.example.com:8884/mqtt")
//	if err := client.Connect(); err != nil {
//	    log.Printf("connect: %v", err)
//	}
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != model.StatusDisconnected {
		c.disconnectLocked("")
		return nil
	}

	url := c.connectURLLocked()
	if url == "" {
		c.router.AddSystemMessage("Please enter a URL or configure a host", "")
		return ErrEmptyURL
	}

	mode := c.modeLocked()
	transport, ok := c.transports[mode]
	if !ok {
		c.router.AddSystemMessage(fmt.Sprintf("No transport for mode %q", mode), "")
		return NewError(ErrCodeConfiguration, fmt.Sprintf("no transport registered for mode %q", mode))
	}

	c.dropHandleLocked()
	c.generation++
	gen := c.generation
	c.dialedClientID = c.clientIDLocked()
	c.lastInteraction = c.now()
	c.setStatusLocked(model.StatusConnecting)
	c.startWatchdogLocked()

	handle, err := transport.Dial(url, dialOptionsFor(c.form.Connection, c.dialedClientID), c.eventsFor(gen))
	if err != nil {
		c.generation++
		c.stopWatchdogLocked()
		c.setStatusLocked(model.StatusDisconnected)
		c.router.AddSystemMessage(fmt.Sprintf("Connection error: %v", err), "")
		c.logger.Errorf("Dial %s failed: %v", url, err)
		return NewErrorWithCause(ErrCodeTransport, "failed to dial "+url, err)
	}

	c.handle = handle
	c.router.AddSystemMessage(fmt.Sprintf("Connecting to %s (%s)...", url, mode), "")
	c.logger.Infof("Connecting to %s (mode=%s, client=%s)", url, mode, c.dialedClientID)
	return nil
}

// Disconnect tears the connection down. It does nothing when already
// disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnectLocked("")
}

// Send transmits payload and records it on the sent history.
//
// In mqtt mode the payload is published to the configured publish topic and
// logged on the session with exactly that topic (else the active one). In
// stream mode it is written as a text frame and logged on the active session.
// An empty payload is ignored.
//
// Errors:
//   - ErrNotConnected: no open connection
//   - ErrNoPublishTopic: mqtt mode without a publish topic
func (c *Client) Send(payload string) error {
	if payload == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != model.StatusConnected || c.handle == nil {
		c.router.AddSystemMessage("Not connected", "")
		return ErrNotConnected
	}

	var topic string
	if c.modeLocked() == model.ModeMQTT {
		ph, ok := c.handle.(PubSubHandle)
		if !ok {
			return NewError(ErrCodeTransport, "transport cannot publish")
		}
		topic = strings.TrimSpace(c.form.Connection.PubTopic)
		if topic == "" {
			c.router.AddSystemMessage("Please set a publish topic", "")
			return ErrNoPublishTopic
		}
		if err := ph.Publish(topic, []byte(payload), 0); err != nil {
			c.router.AddSystemMessage(fmt.Sprintf("Publish failed: %v", err), "")
			return NewErrorWithCause(ErrCodeTransport, "failed to publish to "+topic, err)
		}
	} else if err := c.handle.Send([]byte(payload)); err != nil {
		c.router.AddSystemMessage(fmt.Sprintf("Send failed: %v", err), "")
		return NewErrorWithCause(ErrCodeTransport, "failed to send", err)
	}

	c.lastInteraction = c.now()
	c.router.AddSentMessage(topic, payload)
	c.form.History = c.form.History.Push(payload, c.form.HistorySize)
	c.persistFormLocked()
	return nil
}

func (c *Client) eventsFor(gen uint64) EventHandler {
	return EventHandler{
		OnOpen: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.currentLocked(gen) {
				c.handleOpenLocked()
			}
		},
		OnMessage: func(msg InboundMessage) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.currentLocked(gen) {
				c.handleMessageLocked(msg)
			}
		},
		OnError: func(err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.currentLocked(gen) {
				c.logger.Warnf("Transport error: %v", err)
				c.router.AddSystemMessage(fmt.Sprintf("Connection error: %v", err), "")
			}
		},
		OnClose: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.currentLocked(gen) {
				c.handle = nil
				c.disconnectLocked("")
			}
		},
	}
}

func (c *Client) currentLocked(gen uint64) bool {
	return gen == c.generation && c.status != model.StatusDisconnected
}

func (c *Client) handleOpenLocked() {
	c.lastInteraction = c.now()
	if c.status == model.StatusConnected {
		c.router.BroadcastSystemMessage("Reconnected")
	} else {
		c.setStatusLocked(model.StatusConnected)
		c.router.AddSystemMessage(fmt.Sprintf("Connected (client id: %s)", c.dialedClientID), "")
	}
	c.logger.Infof("Connection open (client=%s)", c.dialedClientID)

	c.startWatchdogLocked()
	c.persistFormLocked()

	ph, ok := c.handle.(PubSubHandle)
	if !ok {
		return
	}
	// A reconnect starts without subscriptions on a clean session.
	c.manager.MarkAllUnsubscribed()
	for _, s := range c.manager.AllSessions() {
		c.subscribeLocked(ph, s)
	}
}

func (c *Client) handleMessageLocked(msg InboundMessage) {
	c.lastInteraction = c.now()

	payload := string(msg.Payload)
	if msg.Binary {
		payload = fmt.Sprintf("[binary %d bytes]", len(msg.Payload))
	}

	var meta model.Attributes
	if msg.QoS > 0 || msg.Retained {
		meta = model.Attributes{"qos": strconv.Itoa(int(msg.QoS))}
		if msg.Retained {
			meta["retained"] = "true"
		}
	}

	if msg.Topic == "" {
		c.router.RouteToActive(payload, meta)
		return
	}
	c.router.RouteMessage(msg.Topic, payload, meta)
}

// disconnectLocked moves to Disconnected, invalidating the current
// generation. The handle, if any, is ended in the background with force.
func (c *Client) disconnectLocked(reason string) {
	if c.status == model.StatusDisconnected && c.handle == nil {
		return
	}

	c.generation++
	c.stopWatchdogLocked()
	c.dropHandleLocked()
	c.setStatusLocked(model.StatusDisconnected)

	if reason != "" {
		c.router.AddSystemMessage(reason, "")
	}
	c.manager.MarkAllUnsubscribed()
	c.latestSub = nil
	c.router.BroadcastSystemMessage("Disconnected")
	c.logger.Infof("Disconnected")
}

func (c *Client) dropHandleLocked() {
	h := c.handle
	c.handle = nil
	if h == nil {
		return
	}
	go func() {
		if err := h.End(true); err != nil {
			c.logger.Warnf("Closing connection: %v", err)
		}
	}()
}

func (c *Client) setStatusLocked(status model.ConnectionStatus) {
	if c.status == status {
		return
	}
	c.status = status
	if err := c.notifications.NotifyStatusChanged(c.ctx, status); err != nil {
		c.logger.Warnf("Status notification failed: %v", err)
	}
}

// pubSubLocked returns the handle when connected to a broker.
func (c *Client) pubSubLocked() (PubSubHandle, bool) {
	if c.status != model.StatusConnected || c.handle == nil {
		return nil, false
	}
	ph, ok := c.handle.(PubSubHandle)
	return ph, ok
}

func (c *Client) subscribeLocked(ph PubSubHandle, s *model.TopicSession) {
	gen, req, id, topic := c.generation, c.nextSubRequestLocked(s.ID), s.ID, s.Topic
	ph.Subscribe(topic, s.QoS, func(err error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if gen != c.generation || c.manager.Session(id) == nil {
			return
		}
		if c.latestSub[id] != req {
			c.logger.Debugf("Ignoring superseded subscribe ack: %s", topic)
			return
		}
		if err != nil {
			c.logger.Warnf("Subscribe %s failed: %v", topic, err)
			c.router.AddSystemMessage(fmt.Sprintf("Subscribe failed [%s]: %v", topic, err), id)
			return
		}
		c.manager.SetSubscribed(id, true)
		c.router.AddSystemMessage("Subscribed: "+topic, id)
	})
}

func (c *Client) unsubscribeLocked(ph PubSubHandle, id, topic string) {
	gen, req := c.generation, c.nextSubRequestLocked(id)
	ph.Unsubscribe(topic, func(err error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if gen != c.generation {
			return
		}
		if c.latestSub[id] != req {
			c.logger.Debugf("Ignoring superseded unsubscribe ack: %s", topic)
			return
		}
		if err != nil {
			c.logger.Warnf("Unsubscribe %s failed: %v", topic, err)
			return
		}
		if c.manager.Session(id) == nil {
			c.logger.Debugf("Unsubscribed: %s", topic)
			return
		}
		c.manager.SetSubscribed(id, false)
		c.router.AddSystemMessage("Unsubscribed: "+topic, id)
	})
}

// nextSubRequestLocked tags a new subscribe or unsubscribe for session id.
func (c *Client) nextSubRequestLocked(id string) uint64 {
	if c.latestSub == nil {
		c.latestSub = make(map[string]uint64)
	}
	c.subRequests++
	c.latestSub[id] = c.subRequests
	return c.subRequests
}

func (c *Client) connectURLLocked() string {
	if url := strings.TrimSpace(c.form.URL); url != "" {
		return url
	}
	return c.form.Connection.BuildURL()
}

func (c *Client) modeLocked() model.Mode {
	if c.form.Connection.Mode == "" {
		return model.ModeMQTT
	}
	return c.form.Connection.Mode
}

func (c *Client) clientIDLocked() string {
	if id := strings.TrimSpace(c.form.Connection.ClientID); id != "" {
		return id
	}
	return c.defaultClientID
}
