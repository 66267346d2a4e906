package service

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/nreinfusion/onehub-session/internal/flagstore"
	"github.com/nreinfusion/onehub-session/internal/observability/metrics"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

// idleWatch is the inactivity sub-machine. It exists only while the session
// is Authenticated.
type idleWatch struct {
	ticker      clockwork.Ticker
	unsubscribe func()
	done        chan struct{}
}

// startIdleLocked starts the inactivity watch unless it is already running.
// It reports whether a new watch was started. Callers hold c.mu.
func (c *SessionController) startIdleLocked() bool {
	if c.idle != nil || c.closed {
		return false
	}

	w := &idleWatch{
		ticker: c.clock.NewTicker(c.cfg.IdleCheckInterval),
		done:   make(chan struct{}),
	}
	if c.activity != nil {
		w.unsubscribe = c.activity.Subscribe(c.cfg.ActivityKinds, c.recordActivity)
	}
	c.idle = w

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		for {
			select {
			case <-w.done:
				return
			case <-w.ticker.Chan():
				c.checkIdle(w)
			}
		}
	}()
	return true
}

// stopIdleLocked tears the watch down: the ticker stops and activity
// listeners are removed. Callers hold c.mu.
func (c *SessionController) stopIdleLocked() {
	w := c.idle
	if w == nil {
		return
	}
	c.idle = nil
	w.ticker.Stop()
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	close(w.done)
}

func (c *SessionController) recordActivity(string) {
	c.flags.SetTime(flagstore.KeyLastActiveTime, c.clock.Now())
}

// checkIdle logs out once the shared last-activity timestamp is older than
// IdleTimeout. Activity in any process sharing the flags keeps the session alive.
func (c *SessionController) checkIdle(w *idleWatch) {
	c.mu.Lock()
	current := c.idle == w
	c.mu.Unlock()
	if !current {
		return
	}

	last, ok := c.flags.GetTime(flagstore.KeyLastActiveTime)
	if !ok {
		return
	}
	inactive := c.clock.Since(last)
	if inactive <= c.cfg.IdleTimeout {
		return
	}

	c.mu.Lock()
	if c.idle != w {
		c.mu.Unlock()
		return
	}
	c.stopIdleLocked()
	c.mu.Unlock()

	c.logger.Info("session idle timeout", "inactive", inactive, "timeout", c.cfg.IdleTimeout)
	metrics.EmitIdleTimeout(c.metrics, inactive)
	c.notify(ports.Notification{
		Title:       c.branding.Subject("Session expired"),
		Description: "You were logged out after a period of inactivity.",
		Variant:     ports.NotificationDestructive,
	})
	c.logout(context.Background(), logoutTriggerIdle)
}
