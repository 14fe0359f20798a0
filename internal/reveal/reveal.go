// Package reveal paces the display of a growing string. A Revealer exposes
// a prefix of its target a few characters at a time, no faster than once
// per throttle interval, and starts over whenever the target is replaced.
package reveal

import (
	"sync"
	"time"

	"github.com/agent-racer/streamtext/internal/schedule"
	"go.uber.org/zap"
)

const (
	DefaultThrottleInterval = 100 * time.Millisecond
	DefaultMaxChunkChars    = 3
)

// Options are the pacing knobs. The zero value reveals one default-sized
// chunk per scheduling turn; use DefaultOptions for the standard pace.
type Options struct {
	ThrottleInterval time.Duration
	MaxChunkChars    int
}

// DefaultOptions returns a 100ms interval and 3-character chunks.
func DefaultOptions() Options {
	return Options{
		ThrottleInterval: DefaultThrottleInterval,
		MaxChunkChars:    DefaultMaxChunkChars,
	}
}

func (o Options) normalized() Options {
	if o.ThrottleInterval < 0 {
		o.ThrottleInterval = 0
	}
	if o.MaxChunkChars < 1 {
		o.MaxChunkChars = DefaultMaxChunkChars
	}
	return o
}

// State is one consistent observation of a Revealer.
type State struct {
	DisplayedText string
	IsComplete    bool
	Progress      float64 // percent, 0..100
}

// Option configures a Revealer.
type Option func(*Revealer)

// WithOnChange registers fn to be called after every visible change. fn
// runs outside the Revealer's lock, on whichever goroutine caused the
// change.
func WithOnChange(fn func(State)) Option {
	return func(r *Revealer) { r.onChange = fn }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Revealer) { r.logger = l }
}

// Revealer owns one reveal session at a time.
type Revealer struct {
	sched    schedule.Scheduler
	logger   *zap.Logger
	onChange func(State)

	mu          sync.Mutex
	configured  bool
	closed      bool
	target      string
	runes       []rune
	opts        Options
	revealed    int
	lastAdvance time.Time
	complete    bool
	gen         uint64
	pending     schedule.Token
}

// New creates an idle Revealer. It shows nothing until Configure is called.
func New(s schedule.Scheduler, opts ...Option) *Revealer {
	r := &Revealer{
		sched:  s,
		logger: zap.NewNop(),
		opts:   DefaultOptions(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Configure points the Revealer at target. When target or opts differ from
// the current ones, the pending tick is cancelled and the reveal restarts
// from zero; otherwise Configure only returns the current state.
func (r *Revealer) Configure(target string, opts Options) State {
	opts = opts.normalized()

	r.mu.Lock()
	if r.closed || (r.configured && target == r.target && opts == r.opts) {
		st := r.snapshot()
		r.mu.Unlock()
		return st
	}

	r.stop()
	r.configured = true
	r.target = target
	r.runes = []rune(target)
	r.opts = opts
	r.revealed = 0
	r.lastAdvance = time.Time{}
	r.complete = len(r.runes) == 0

	if !r.complete {
		gen := r.gen
		r.pending = r.sched.Schedule(opts.ThrottleInterval, func() { r.tick(gen) })
	}
	r.logger.Debug("reveal reset",
		zap.Int("chars", len(r.runes)),
		zap.Duration("throttle", opts.ThrottleInterval),
		zap.Int("chunk", opts.MaxChunkChars))

	st := r.snapshot()
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(st)
	}
	return st
}

// State returns the current observation.
func (r *Revealer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Close cancels the pacing loop. The Revealer keeps its last state but
// never changes again.
func (r *Revealer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stop()
	r.closed = true
}

// stop cancels the pending tick and invalidates any tick already in
// flight. Caller holds r.mu.
func (r *Revealer) stop() {
	r.sched.Cancel(r.pending)
	r.pending = 0
	r.gen++
}

func (r *Revealer) tick(gen uint64) {
	r.mu.Lock()
	if gen != r.gen || r.closed || r.complete {
		r.mu.Unlock()
		return
	}
	r.pending = 0

	now := r.sched.Now()
	wait := r.opts.ThrottleInterval
	advanced := false

	elapsed := now.Sub(r.lastAdvance)
	if r.lastAdvance.IsZero() || elapsed >= r.opts.ThrottleInterval {
		step := min(r.opts.MaxChunkChars, len(r.runes)-r.revealed)
		r.revealed += step
		r.lastAdvance = now
		r.complete = r.revealed == len(r.runes)
		advanced = true
	} else {
		wait = r.opts.ThrottleInterval - elapsed
	}

	if !r.complete {
		r.pending = r.sched.Schedule(wait, func() { r.tick(gen) })
	}

	st := r.snapshot()
	fn := r.onChange
	r.mu.Unlock()

	if advanced && fn != nil {
		fn(st)
	}
}

// snapshot builds a State from the locked fields. Caller holds r.mu.
func (r *Revealer) snapshot() State {
	st := State{
		DisplayedText: string(r.runes[:r.revealed]),
		IsComplete:    r.complete,
	}
	if len(r.runes) > 0 {
		st.Progress = float64(r.revealed*100) / float64(len(r.runes))
	}
	return st
}
