// Package countdown implements the verification-code countdown: a cancellable
// once-per-second decrement where the latest Start always wins.
package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSeconds is how long a verification code stays valid on screen.
const DefaultSeconds = 180

// NotifyFunc receives every change. It runs with the countdown's lock held
// and must not call back into the Countdown.
type NotifyFunc func(remaining int, active bool)

// Countdown is safe for concurrent use.
type Countdown struct {
	clock  clockwork.Clock
	notify NotifyFunc

	// serialises Start/Stop so a superseded run has fully exited before the
	// next one begins
	ctl sync.Mutex

	mu        sync.Mutex
	remaining int
	active    bool
	run       uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

// New returns an idle countdown. notify may be nil.
func New(clock clockwork.Clock, notify NotifyFunc) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Countdown{clock: clock, notify: notify}
}

// Start discards any running countdown and begins a fresh one at seconds.
// When it reaches zero the countdown stays active until Stop.
func (c *Countdown) Start(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.ctl.Lock()
	defer c.ctl.Unlock()

	c.mu.Lock()
	prev := c.haltLocked()
	c.mu.Unlock()
	if prev != nil {
		<-prev
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = seconds
	c.active = true
	c.emitLocked()
	if seconds == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx, c.run, c.done)
}

// Stop cancels any running countdown and marks the timer inactive. The
// remaining value is left as it was.
func (c *Countdown) Stop() {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	c.mu.Lock()
	prev := c.haltLocked()
	if c.active {
		c.active = false
		c.emitLocked()
	}
	c.mu.Unlock()
	if prev != nil {
		<-prev
	}
}

// Close stops the countdown and waits for its goroutine to exit.
func (c *Countdown) Close() {
	c.Stop()
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Active reports whether a countdown was started and not yet stopped.
func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// haltLocked invalidates the current run and returns the channel closed when
// its goroutine exits, or nil if none is running.
func (c *Countdown) haltLocked() chan struct{} {
	c.run++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	done := c.done
	c.done = nil
	return done
}

func (c *Countdown) emitLocked() {
	if c.notify != nil {
		c.notify(c.remaining, c.active)
	}
}

func (c *Countdown) loop(ctx context.Context, run uint64, done chan struct{}) {
	defer close(done)
	for {
		t := c.clock.NewTimer(time.Second)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.Chan():
		}

		c.mu.Lock()
		if c.run != run {
			// superseded between the tick and the lock
			c.mu.Unlock()
			return
		}
		c.remaining--
		c.emitLocked()
		finished := c.remaining <= 0
		c.mu.Unlock()
		if finished {
			return
		}
	}
}

// FormatRemaining renders seconds as "MM : SS".
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d : %02d", seconds/60, seconds%60)
}
