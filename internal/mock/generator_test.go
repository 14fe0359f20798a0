package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agent-racer/streamtext/internal/config"
	"github.com/agent-racer/streamtext/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu          sync.Mutex
	updates     map[string][]*stream.State
	completions []*stream.State
	removed     []string
}

func newRecorder() *recorder {
	return &recorder{updates: make(map[string][]*stream.State)}
}

func (r *recorder) QueueUpdate(states ...*stream.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range states {
		r.updates[st.ID] = append(r.updates[st.ID], st.Clone())
	}
}

func (r *recorder) QueueRemoval(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, ids...)
}

func (r *recorder) QueueCompletion(st *stream.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, st.Clone())
}

func (r *recorder) history(id string) []*stream.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*stream.State(nil), r.updates[id]...)
}

func fastConfig() config.MockConfig {
	return config.MockConfig{TokenRate: 0, Burst: 3, Pause: time.Millisecond}
}

func newTestGenerator(cfg config.MockConfig) (*Generator, *stream.Store, *recorder) {
	store := stream.NewStore()
	rec := newRecorder()
	g := NewGenerator(store, rec, cfg, nil, nil)
	n := 0
	g.newID = func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
	return g, store, rec
}

func TestTokenizeRoundTrips(t *testing.T) {
	for _, sc := range scripts {
		tokens := tokenize(sc.text)
		assert.Equal(t, sc.text, strings.Join(tokens, ""), sc.title)
	}
	assert.Equal(t, []string{"a  ", "b\n", "c"}, tokenize("a  b\nc"))
	assert.Empty(t, tokenize(""))
}

func TestGeneratorPlaysAllScripts(t *testing.T) {
	g, store, rec := newTestGenerator(fastConfig())
	g.Start(context.Background())
	require.NoError(t, g.Seed())
	g.Wait()

	all := store.GetAll()
	require.Len(t, all, len(scripts))
	assert.Len(t, rec.completions, len(scripts))

	for i, sc := range scripts {
		st, err := store.Get(fmt.Sprintf("s%d", i+1))
		require.NoError(t, err)
		assert.False(t, st.Active, sc.title)
		if sc.failAt > 0 {
			assert.Equal(t, stream.Errored, st.Status, sc.title)
			assert.Equal(t, strings.Join(tokenize(sc.text)[:sc.failAt], ""), st.Text)
			continue
		}
		assert.Equal(t, stream.Complete, st.Status, sc.title)
		assert.Equal(t, sc.text, st.Text, sc.title)
	}
}

func TestGeneratorPausesBetweenBursts(t *testing.T) {
	g, _, rec := newTestGenerator(fastConfig())
	g.Start(context.Background())
	require.NoError(t, g.Seed())
	g.Wait()

	// The first script is long enough for several bursts; every pause
	// publishes an inactive update that keeps the text.
	hist := rec.history("s1")
	var pauses int
	for i, st := range hist {
		if st.Status == stream.Streaming && !st.Active {
			pauses++
			require.Greater(t, i, 0)
			assert.Equal(t, hist[i-1].Text, st.Text)
		}
	}
	assert.Greater(t, pauses, 1)
}

func TestGeneratorRestartReplacesText(t *testing.T) {
	g, _, rec := newTestGenerator(fastConfig())
	g.Start(context.Background())
	require.NoError(t, g.Seed())
	g.Wait()

	// s2 is the haiku, which restarts once.
	hist := rec.history("s2")
	restartIdx := -1
	for i, st := range hist {
		if st.Restarts == 1 && st.Text == "" {
			restartIdx = i
			break
		}
	}
	require.NotEqual(t, -1, restartIdx, "no restart published")
	assert.NotEmpty(t, hist[restartIdx-1].Text)
	assert.Equal(t, scripts[1].text, hist[len(hist)-1].Text)
}

func TestGeneratorRemovesIdleStreams(t *testing.T) {
	cfg := fastConfig()
	cfg.IdleAfter = time.Millisecond
	g, store, rec := newTestGenerator(cfg)
	g.Start(context.Background())
	require.NoError(t, g.Seed())
	g.Wait()

	assert.Empty(t, store.GetAll())
	assert.Len(t, rec.removed, len(scripts))
}

func TestLaunch(t *testing.T) {
	g, store, _ := newTestGenerator(fastConfig())

	_, err := g.Launch("too early")
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, g.Seed(), ErrNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	st, err := g.Launch("write a haiku")
	require.NoError(t, err)
	assert.Equal(t, "write a haiku", st.Title)
	g.Wait()

	got, err := store.Get(st.ID)
	require.NoError(t, err)
	assert.True(t, got.IsTerminal())

	cancel()
	_, err = g.Launch("after cancel")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratorStopsOnCancel(t *testing.T) {
	cfg := config.MockConfig{TokenRate: 1, Burst: 1, Pause: time.Hour}
	g, store, _ := newTestGenerator(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	require.NoError(t, g.Seed())
	cancel()

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("generator did not stop after cancel")
	}

	for _, st := range store.GetAll() {
		assert.False(t, st.IsTerminal(), "stream %s finished despite cancel", st.ID)
	}
}
