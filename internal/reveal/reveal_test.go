package reveal

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agent-racer/streamtext/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// recorder captures every State delivered through WithOnChange together
// with the virtual time it was delivered at.
type recorder struct {
	mu     sync.Mutex
	clock  schedule.Scheduler
	start  time.Time
	states []State
	times  []time.Duration
}

func (r *recorder) record(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
	r.times = append(r.times, r.clock.Now().Sub(r.start))
}

func newTestRevealer(t *testing.T) (*Revealer, *schedule.Fake, *recorder) {
	t.Helper()
	f := schedule.NewFake(time.Time{})
	rec := &recorder{clock: f, start: f.Now()}
	r := New(f, WithOnChange(rec.record), WithLogger(zap.NewNop()))
	t.Cleanup(r.Close)
	return r, f, rec
}

func TestHelloScenario(t *testing.T) {
	r, f, _ := newTestRevealer(t)

	st := r.Configure("hello", Options{ThrottleInterval: 100 * time.Millisecond, MaxChunkChars: 3})
	assert.Equal(t, State{}, st)

	f.Advance(99 * time.Millisecond)
	assert.Equal(t, "", r.State().DisplayedText)

	f.Advance(1 * time.Millisecond)
	assert.Equal(t, State{DisplayedText: "hel", Progress: 60}, r.State())

	f.Advance(100 * time.Millisecond)
	assert.Equal(t, State{DisplayedText: "hello", IsComplete: true, Progress: 100}, r.State())
	assert.Equal(t, 0, f.Pending(), "no tick after completion")

	f.Advance(time.Second)
	assert.Equal(t, "hello", r.State().DisplayedText)
}

func TestEmptyTargetCompletesImmediately(t *testing.T) {
	r, f, _ := newTestRevealer(t)

	st := r.Configure("", DefaultOptions())
	assert.Equal(t, State{DisplayedText: "", IsComplete: true, Progress: 0}, st)
	assert.Equal(t, 0, f.Pending())
}

func TestReplaceMidRevealRestarts(t *testing.T) {
	r, f, _ := newTestRevealer(t)
	opts := DefaultOptions()

	r.Configure("abcdefghij", opts)
	f.Advance(200 * time.Millisecond)
	require.Equal(t, "abcdef", r.State().DisplayedText)

	st := r.Configure("xyz", opts)
	assert.Equal(t, "", st.DisplayedText)
	assert.False(t, st.IsComplete)
	assert.Equal(t, 1, f.Pending(), "old tick cancelled, one new tick pending")

	f.Advance(100 * time.Millisecond)
	assert.Equal(t, State{DisplayedText: "xyz", IsComplete: true, Progress: 100}, r.State())
}

func TestAppendRestartsFromZero(t *testing.T) {
	r, f, _ := newTestRevealer(t)
	opts := DefaultOptions()

	r.Configure("abc", opts)
	f.Advance(100 * time.Millisecond)
	require.True(t, r.State().IsComplete)

	st := r.Configure("abcdef", opts)
	assert.Equal(t, "", st.DisplayedText)
	f.Advance(100 * time.Millisecond)
	assert.Equal(t, "abc", r.State().DisplayedText)
	f.Advance(100 * time.Millisecond)
	assert.Equal(t, "abcdef", r.State().DisplayedText)
}

func TestReplaceWithEmpty(t *testing.T) {
	r, f, _ := newTestRevealer(t)

	r.Configure("some text", DefaultOptions())
	f.Advance(100 * time.Millisecond)

	st := r.Configure("", DefaultOptions())
	assert.Equal(t, State{IsComplete: true}, st)
	assert.Equal(t, 0, f.Pending())
}

func TestSameTargetIsNoop(t *testing.T) {
	r, f, rec := newTestRevealer(t)
	opts := DefaultOptions()

	r.Configure("abcdefgh", opts)
	f.Advance(100 * time.Millisecond)
	n := len(rec.states)

	st := r.Configure("abcdefgh", opts)
	assert.Equal(t, "abc", st.DisplayedText)
	assert.Len(t, rec.states, n, "no change notification")
	assert.Equal(t, 1, f.Pending())
}

func TestOptionsChangeResets(t *testing.T) {
	r, f, _ := newTestRevealer(t)

	r.Configure("abcdefgh", DefaultOptions())
	f.Advance(100 * time.Millisecond)

	st := r.Configure("abcdefgh", Options{ThrottleInterval: 50 * time.Millisecond, MaxChunkChars: 4})
	assert.Equal(t, "", st.DisplayedText)
	f.Advance(50 * time.Millisecond)
	assert.Equal(t, "abcd", r.State().DisplayedText)
}

func TestChunkLargerThanText(t *testing.T) {
	r, f, rec := newTestRevealer(t)

	r.Configure("short", Options{ThrottleInterval: 100 * time.Millisecond, MaxChunkChars: 50})
	f.Advance(100 * time.Millisecond)
	assert.Equal(t, State{DisplayedText: "short", IsComplete: true, Progress: 100}, r.State())
	// reset notification + one advance
	assert.Len(t, rec.states, 2)
}

func TestZeroThrottleYieldsEachTurn(t *testing.T) {
	r, f, _ := newTestRevealer(t)

	st := r.Configure("abcdefg", Options{ThrottleInterval: 0, MaxChunkChars: 2})
	assert.Equal(t, "", st.DisplayedText, "never revealed synchronously")

	var seen []string
	for f.RunNext() {
		seen = append(seen, r.State().DisplayedText)
	}
	assert.Equal(t, []string{"ab", "abcd", "abcdef", "abcdefg"}, seen)
	assert.True(t, r.State().IsComplete)
}

func TestNegativeThrottleAndChunkNormalized(t *testing.T) {
	r, f, _ := newTestRevealer(t)

	r.Configure("abcdefg", Options{ThrottleInterval: -time.Second, MaxChunkChars: 0})
	assert.Equal(t, "", r.State().DisplayedText)
	require.True(t, f.RunNext())
	assert.Equal(t, "abc", r.State().DisplayedText)
}

func TestMultibyteRunesNotSplit(t *testing.T) {
	r, f, _ := newTestRevealer(t)

	r.Configure("héllo wörld ✓", Options{ThrottleInterval: 10 * time.Millisecond, MaxChunkChars: 2})
	for f.RunNext() {
		assert.True(t, strings.HasPrefix("héllo wörld ✓", r.State().DisplayedText))
	}
	assert.Equal(t, "héllo wörld ✓", r.State().DisplayedText)
}

func TestCloseStopsLoop(t *testing.T) {
	r, f, _ := newTestRevealer(t)

	r.Configure("abcdefgh", DefaultOptions())
	f.Advance(100 * time.Millisecond)
	r.Close()
	assert.Equal(t, 0, f.Pending())

	f.Advance(time.Second)
	assert.Equal(t, "abc", r.State().DisplayedText)

	// Configure after Close is ignored.
	st := r.Configure("new", DefaultOptions())
	assert.Equal(t, "abc", st.DisplayedText)
	assert.Equal(t, 0, f.Pending())
}

func TestStaleTickIgnored(t *testing.T) {
	// A scheduler whose Cancel does nothing models a tick that already
	// fired when cancellation was requested.
	f := schedule.NewFake(time.Time{})
	s := &leakyScheduler{Fake: f}
	r := New(s)

	r.Configure("aaaaaa", DefaultOptions())
	r.Configure("bbbbbb", DefaultOptions())
	require.Equal(t, 2, f.Pending())

	f.Advance(100 * time.Millisecond)
	assert.Equal(t, "bbb", r.State().DisplayedText)
	f.Advance(100 * time.Millisecond)
	assert.Equal(t, "bbbbbb", r.State().DisplayedText)
}

type leakyScheduler struct{ *schedule.Fake }

func (leakyScheduler) Cancel(schedule.Token) {}

func TestRealTimerCompletes(t *testing.T) {
	done := make(chan State, 1)
	r := New(schedule.NewTimer(), WithOnChange(func(st State) {
		if st.IsComplete {
			select {
			case done <- st:
			default:
			}
		}
	}))
	defer r.Close()

	r.Configure("streaming text", Options{ThrottleInterval: time.Millisecond, MaxChunkChars: 4})
	select {
	case st := <-done:
		assert.Equal(t, "streaming text", st.DisplayedText)
	case <-time.After(2 * time.Second):
		t.Fatal("reveal did not complete")
	}
}

func TestRevealProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		target := rapid.StringN(0, 60, -1).Draw(t, "target")
		interval := time.Duration(rapid.IntRange(0, 200).Draw(t, "intervalMs")) * time.Millisecond
		chunk := rapid.IntRange(1, 10).Draw(t, "chunk")

		f := schedule.NewFake(time.Time{})
		var (
			states []State
			times  []time.Time
		)
		r := New(f, WithOnChange(func(st State) {
			states = append(states, st)
			times = append(times, f.Now())
		}))
		defer r.Close()

		r.Configure(target, Options{ThrottleInterval: interval, MaxChunkChars: chunk})
		for f.RunNext() {
		}

		runes := []rune(target)
		final := r.State()
		if final.DisplayedText != target || !final.IsComplete {
			t.Fatalf("final state %+v, want complete %q", final, target)
		}

		prev := 0
		for i, st := range states {
			n := len([]rune(st.DisplayedText))
			if string(runes[:n]) != st.DisplayedText {
				t.Fatalf("displayed %q is not a prefix of %q", st.DisplayedText, target)
			}
			if n < prev {
				t.Fatalf("revealed count went from %d to %d", prev, n)
			}
			if n-prev > chunk {
				t.Fatalf("advance of %d exceeds chunk %d", n-prev, chunk)
			}
			if i > 1 && n > prev && times[i].Sub(times[i-1]) < interval {
				t.Fatalf("advances %v apart, interval %v", times[i].Sub(times[i-1]), interval)
			}
			if st.IsComplete != (n == len(runes)) {
				t.Fatalf("complete=%v with %d of %d revealed", st.IsComplete, n, len(runes))
			}
			if len(runes) > 0 {
				want := float64(n*100) / float64(len(runes))
				if st.Progress != want {
					t.Fatalf("progress %v, want %v", st.Progress, want)
				}
			}
			prev = n
		}
	})
}
