// Package activity turns a flickering "producer is running" flag into a
// stable one: activation is reported at once, deactivation only after the
// flag has stayed off for a grace window.
package activity

import (
	"sync"
	"time"

	"github.com/agent-racer/streamtext/internal/schedule"
	"go.uber.org/zap"
)

// DefaultGrace is how long the raw flag must stay false before the stable
// flag follows.
const DefaultGrace = 100 * time.Millisecond

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithOnChange registers fn to be called whenever the stable value flips.
// fn runs outside the Debouncer's lock.
func WithOnChange(fn func(stable bool)) Option {
	return func(d *Debouncer) { d.onChange = fn }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(d *Debouncer) { d.logger = l }
}

// Debouncer holds one activity state. It starts inactive.
type Debouncer struct {
	sched    schedule.Scheduler
	grace    time.Duration
	logger   *zap.Logger
	onChange func(bool)

	mu      sync.Mutex
	raw     bool
	stable  bool
	closed  bool
	gen     uint64
	pending schedule.Token
}

// New creates a Debouncer with the given grace window. A zero or negative
// grace still defers deactivation by one scheduling turn.
func New(s schedule.Scheduler, grace time.Duration, opts ...Option) *Debouncer {
	if grace < 0 {
		grace = 0
	}
	d := &Debouncer{
		sched:  s,
		grace:  grace,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Update feeds the latest raw value and returns the stable value.
func (d *Debouncer) Update(raw bool) bool {
	d.mu.Lock()
	if d.closed || raw == d.raw {
		stable := d.stable
		d.mu.Unlock()
		return stable
	}
	d.raw = raw

	changed := false
	if raw {
		d.cancel()
		changed = !d.stable
		d.stable = true
	} else if d.stable {
		d.cancel()
		gen := d.gen
		d.pending = d.sched.Schedule(d.grace, func() { d.settle(gen) })
		d.logger.Debug("deactivation pending", zap.Duration("grace", d.grace))
	}

	stable := d.stable
	fn := d.onChange
	d.mu.Unlock()

	if changed && fn != nil {
		fn(stable)
	}
	return stable
}

// Stable returns the debounced value.
func (d *Debouncer) Stable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stable
}

// Raw returns the last value passed to Update.
func (d *Debouncer) Raw() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw
}

// Close cancels any pending deactivation. The stable value is frozen.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel()
	d.closed = true
}

// cancel drops the pending timer and invalidates one already in flight.
// Caller holds d.mu.
func (d *Debouncer) cancel() {
	d.sched.Cancel(d.pending)
	d.pending = 0
	d.gen++
}

func (d *Debouncer) settle(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.closed || d.raw || !d.stable {
		d.mu.Unlock()
		return
	}
	d.pending = 0
	d.stable = false
	fn := d.onChange
	d.mu.Unlock()

	d.logger.Debug("deactivated")
	if fn != nil {
		fn(false)
	}
}
