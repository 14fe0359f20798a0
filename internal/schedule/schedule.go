// Package schedule provides the cancelable deferred-execution primitive
// shared by the reveal and activity packages.
package schedule

import (
	"sync"
	"time"
)

// Token identifies a scheduled callback. The zero Token never refers to a
// pending callback, so it can be used as "nothing scheduled".
type Token uint64

// Scheduler runs callbacks after a delay and lets callers cancel them.
//
// Schedule never invokes fn synchronously, even for a zero or negative
// delay. Cancel on an unknown or already-fired token is a no-op.
type Scheduler interface {
	Now() time.Time
	Schedule(delay time.Duration, fn func()) Token
	Cancel(t Token)
}

// Timer is a Scheduler backed by time.AfterFunc. Callbacks run on their own
// goroutines; callers serialize their state themselves.
type Timer struct {
	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
}

// NewTimer creates a wall-clock scheduler.
func NewTimer() *Timer {
	return &Timer{timers: make(map[Token]*time.Timer)}
}

// Now returns the current wall-clock time.
func (t *Timer) Now() time.Time {
	return time.Now()
}

// Schedule runs fn after delay on a timer goroutine.
func (t *Timer) Schedule(delay time.Duration, fn func()) Token {
	if delay < 0 {
		delay = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	tok := t.next
	t.timers[tok] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.timers[tok]
		delete(t.timers, tok)
		t.mu.Unlock()
		if live {
			fn()
		}
	})
	return tok
}

// Cancel stops a pending callback. A callback that already started is not
// interrupted; owners guard against that with their own generation check.
func (t *Timer) Cancel(tok Token) {
	if tok == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if tm, ok := t.timers[tok]; ok {
		tm.Stop()
		delete(t.timers, tok)
	}
}

// Pending returns the number of callbacks that have not fired or been
// cancelled.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
