// Package deadline provides the single outstanding liveness deadline a
// channel session arms while it waits for its peer.
package deadline

import (
	"sync"
	"time"
)

// DefaultDuration is the liveness deadline applied when a session is
// configured without one.
const DefaultDuration = 2 * time.Second

// Controller schedules at most one pending expiry callback. Arming a new
// deadline supersedes any deadline armed before it. Safe for concurrent
// use.
//
// The staleness check and the callback are not one atomic step: an
// expiry that has already passed the check when Cancel or Arm lands
// still runs. The callback cannot run under the controller's lock, as it
// is free to call Cancel and Arm itself. A caller that needs a
// superseded expiry to be a strict no-op must keep its own armed/stale
// state and re-check it inside onExpire, under the caller's lock.
type Controller struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Arm schedules onExpire to run once after d, cancelling any previously
// armed deadline first.
func (c *Controller) Arm(d time.Duration, onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(d, func() {
		// A superseded timer may still fire after Stop if it was already
		// in flight. The generation check keeps a stale expiry from
		// running.
		c.mu.Lock()
		stale := gen != c.gen
		c.mu.Unlock()
		if stale {
			return
		}
		onExpire()
	})
}

// Cancel stops any pending deadline. Cancelling an already-fired or
// never-armed deadline is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}
