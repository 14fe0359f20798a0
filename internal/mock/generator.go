// Package mock produces fake streaming generations for demos and tests.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agent-racer/streamtext/internal/config"
	"github.com/agent-racer/streamtext/internal/metrics"
	"github.com/agent-racer/streamtext/internal/stream"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotStarted is returned by Launch and Seed before Start has been called.
var ErrNotStarted = errors.New("mock generator not started")

// Publisher receives stream changes, normally a *ws.Broadcaster.
type Publisher interface {
	QueueUpdate(states ...*stream.State)
	QueueRemoval(ids ...string)
	QueueCompletion(st *stream.State)
}

type Generator struct {
	store   *stream.Store
	pub     Publisher
	cfg     config.MockConfig
	logger  *zap.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	ctx     context.Context
	next    int
	wg      sync.WaitGroup
	newID   func() string
	nowFunc func() time.Time
}

func NewGenerator(store *stream.Store, pub Publisher, cfg config.MockConfig, logger *zap.Logger, m *metrics.Collector) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:   store,
		pub:     pub,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "mock")),
		metrics: m,
		newID:   uuid.NewString,
		nowFunc: time.Now,
	}
}

// Start binds the generator to ctx; streams stop when it is cancelled.
func (g *Generator) Start(ctx context.Context) {
	g.mu.Lock()
	g.ctx = ctx
	g.mu.Unlock()
}

// Seed launches one stream per canned script.
func (g *Generator) Seed() error {
	g.mu.Lock()
	ctx := g.ctx
	g.mu.Unlock()
	if ctx == nil {
		return ErrNotStarted
	}
	for _, sc := range scripts {
		g.launch(ctx, sc, sc.title)
	}
	return nil
}

// Launch starts a new stream titled after prompt, replaying the next
// canned script.
func (g *Generator) Launch(prompt string) (*stream.State, error) {
	g.mu.Lock()
	ctx := g.ctx
	sc := scripts[g.next%len(scripts)]
	g.next++
	g.mu.Unlock()

	if ctx == nil {
		return nil, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.launch(ctx, sc, prompt), nil
}

// Wait blocks until every stream goroutine has returned.
func (g *Generator) Wait() {
	g.wg.Wait()
}

func (g *Generator) launch(ctx context.Context, sc script, title string) *stream.State {
	now := g.nowFunc()
	st := &stream.State{
		ID:        g.newID(),
		Title:     title,
		Model:     sc.model,
		Status:    stream.Pending,
		StartedAt: now,
		UpdatedAt: now,
	}
	g.store.Update(st)
	g.pub.QueueUpdate(st)
	g.metrics.SetActiveStreams(g.store.ActiveCount())
	g.logger.Debug("stream launched", zap.String("id", st.ID), zap.String("title", title))

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.play(ctx, st, sc)
	}()
	return st.Clone()
}

// play emits the script in bursts: up to cfg.Burst tokens paced by a rate
// limiter, then an inactive pause.
func (g *Generator) play(ctx context.Context, st *stream.State, sc script) {
	limit := rate.Inf
	if g.cfg.TokenRate > 0 {
		limit = rate.Limit(g.cfg.TokenRate)
	}
	limiter := rate.NewLimiter(limit, 1)
	burst := g.cfg.Burst
	if burst < 1 {
		burst = 1
	}

	tokens := tokenize(sc.text)
	restarted := false
	emitted := 0

	for i := 0; i < len(tokens); i++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		st.Append(tokens[i], g.nowFunc())
		emitted++
		g.publish(st)
		g.metrics.TokenEmitted()

		if sc.failAt > 0 && emitted >= sc.failAt {
			g.finish(ctx, st, stream.Errored)
			return
		}
		if sc.restartAt > 0 && !restarted && emitted == sc.restartAt {
			restarted = true
			st.Restart(g.nowFunc())
			g.publish(st)
			i = -1
			continue
		}

		if (i+1)%burst == 0 && i+1 < len(tokens) {
			st.Active = false
			st.UpdatedAt = g.nowFunc()
			g.publish(st)
			if !sleep(ctx, g.cfg.Pause) {
				return
			}
		}
	}

	g.finish(ctx, st, stream.Complete)
}

func (g *Generator) publish(st *stream.State) {
	g.store.Update(st)
	g.pub.QueueUpdate(st)
}

func (g *Generator) finish(ctx context.Context, st *stream.State, status stream.Status) {
	st.Finish(status, g.nowFunc())
	g.store.Update(st)
	g.pub.QueueCompletion(st)
	g.metrics.SetActiveStreams(g.store.ActiveCount())
	g.logger.Info("stream finished",
		zap.String("id", st.ID),
		zap.Stringer("status", st.Status),
		zap.Int("tokens", st.Tokens),
		zap.Int("restarts", st.Restarts))

	if g.cfg.IdleAfter <= 0 {
		return
	}
	if !sleep(ctx, g.cfg.IdleAfter) {
		return
	}
	g.store.Remove(st.ID)
	g.pub.QueueRemoval(st.ID)
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
