// Package debounce coalesces bursts of signals into a single call.
package debounce

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is used when a debouncer is created with a non-positive duration
const DefaultQuietPeriod = 200 * time.Millisecond

// Debouncer runs the most recently scheduled function once no new schedule
// has arrived for the quiet period.
type Debouncer struct {
	quiet time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

// New creates a debouncer with the given default quiet period
func New(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{quiet: quiet}
}

// Duration returns the default quiet period
func (d *Debouncer) Duration() time.Duration {
	return d.quiet
}

// Trigger schedules fn with the default quiet period
func (d *Debouncer) Trigger(fn func()) {
	d.Schedule(fn, d.quiet)
}

// Schedule cancels any pending call and arranges for fn to run after quiet
func (d *Debouncer) Schedule(fn func(), quiet time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	gen := d.generation
	d.timer = time.AfterFunc(quiet, func() {
		d.mu.Lock()
		// A newer Schedule or a Cancel may have raced with this timer.
		if gen != d.generation || d.timer == nil {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending call. It returns true if one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.generation++
	return true
}

// Pending reports whether a call is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
