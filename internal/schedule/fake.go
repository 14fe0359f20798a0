package schedule

import (
	"sort"
	"sync"
	"time"
)

type fakeEntry struct {
	tok Token
	due time.Time
	fn  func()
}

// Fake is a Scheduler driven by a virtual clock. Nothing fires until the
// test calls Advance or RunNext, which makes every scheduling turn
// observable.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	next    Token
	entries []fakeEntry
}

// NewFake creates a virtual clock starting at start. A zero start is
// replaced by the Unix epoch.
func NewFake(start time.Time) *Fake {
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Schedule(delay time.Duration, fn func()) Token {
	if delay < 0 {
		delay = 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.entries = append(f.entries, fakeEntry{tok: f.next, due: f.now.Add(delay), fn: fn})
	return f.next
}

func (f *Fake) Cancel(tok Token) {
	if tok == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.tok == tok {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return
		}
	}
}

// Pending returns the number of scheduled callbacks.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Advance moves the clock forward by d, firing every callback that falls
// due on the way in due order. Callbacks scheduled by fired callbacks are
// also run if they fall inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		e, ok := f.pop(target)
		if !ok {
			break
		}
		e.fn()
	}

	f.mu.Lock()
	if target.After(f.now) {
		f.now = target
	}
	f.mu.Unlock()
}

// RunNext jumps the clock to the earliest pending callback and runs only
// that one. It reports false when nothing is scheduled.
func (f *Fake) RunNext() bool {
	e, ok := f.pop(time.Time{})
	if !ok {
		return false
	}
	e.fn()
	return true
}

// pop removes the earliest entry due at or before limit. A zero limit
// means no limit.
func (f *Fake) pop(limit time.Time) (fakeEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return fakeEntry{}, false
	}
	sort.SliceStable(f.entries, func(i, j int) bool {
		return f.entries[i].due.Before(f.entries[j].due)
	})
	e := f.entries[0]
	if !limit.IsZero() && e.due.After(limit) {
		return fakeEntry{}, false
	}
	f.entries = f.entries[1:]
	if e.due.After(f.now) {
		f.now = e.due
	}
	return e, true
}
