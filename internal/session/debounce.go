package session

import (
	"sync"
	"time"
)

// debouncer holds at most one scheduled callback. Scheduling again replaces
// the pending callback and restarts the delay.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	gen   uint64
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// schedule arms fn to run after the delay.
func (d *debouncer) schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// A timer that fired while being replaced must not run.
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// stop drops the pending callback, if any.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *debouncer) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
