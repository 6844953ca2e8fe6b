package cec

import (
	"sync"
	"time"

	"github.com/mattjoyce/signbridge/internal/clock"
)

// DefaultDebounce is the window in which a repeat of the last emitted key is dropped.
const DefaultDebounce = 200 * time.Millisecond

// Debouncer holds the single global register of the last emitted key.
// A key is dropped when it equals the last emitted key and arrives within
// the window of that emission. Any other key passes and takes over the
// register. Dropped keys leave the register untouched.
type Debouncer struct {
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	hasLast bool
	lastKey Key
	lastAt  time.Time
}

func NewDebouncer(window time.Duration, clk clock.Clock) *Debouncer {
	if clk == nil {
		clk = clock.Real()
	}
	return &Debouncer{window: window, clock: clk}
}

// Allow reports whether k should be emitted now and records it if so.
func (d *Debouncer) Allow(k Key) bool {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLast && k == d.lastKey && now.Sub(d.lastAt) < d.window {
		return false
	}
	d.hasLast = true
	d.lastKey = k
	d.lastAt = now
	return true
}
