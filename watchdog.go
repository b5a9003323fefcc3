package topicscope

import (
	"context"
	"time"

	"github.com/coregx/topicscope/model"
)

// startWatchdogLocked replaces the idle watchdog with a fresh one bound to
// the current generation. At most one watchdog runs at a time.
func (c *Client) startWatchdogLocked() {
	c.stopWatchdogLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.watchdogCancel = cancel
	gen := c.generation
	interval := c.idleCheckInterval

	c.watchdogs.Add(1)
	go func() {
		defer c.watchdogs.Add(-1)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.checkIdle(ctx, gen) {
					return
				}
			}
		}
	}()
}

func (c *Client) stopWatchdogLocked() {
	if c.watchdogCancel != nil {
		c.watchdogCancel()
		c.watchdogCancel = nil
	}
}

// checkIdle disconnects when the connection has been quiet for longer than
// the idle threshold. It reports whether the watchdog should stop.
func (c *Client) checkIdle(ctx context.Context, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil || gen != c.generation {
		return true
	}
	if c.status != model.StatusConnected || c.form.IdleSeconds <= 0 {
		return false
	}

	idle := time.Duration(c.form.IdleSeconds) * time.Second
	if quiet := c.now().Sub(c.lastInteraction); quiet > idle {
		c.logger.Infof("Idle for %v, disconnecting", quiet.Truncate(time.Second))
		c.disconnectLocked("Connection closed due to inactivity.")
		return true
	}
	return false
}

// activeWatchdogs reports how many watchdog goroutines are running.
func (c *Client) activeWatchdogs() int {
	return int(c.watchdogs.Load())
}
