package app

import (
	"time"

	"github.com/agent-racer/streamtext/internal/activity"
	"github.com/agent-racer/streamtext/internal/client"
	"github.com/agent-racer/streamtext/internal/reveal"
	"github.com/agent-racer/streamtext/internal/schedule"
	"go.uber.org/zap"
)

// revealMsg and activityMsg only say that something changed for a stream;
// handlers read the current state from the components, so a message that
// arrives after a reset never shows stale output.
type revealMsg struct{ id string }

type activityMsg struct{ id string }

// streamView owns the pacing components of one stream. Each stream gets
// its own pair; they are closed when the stream goes away.
type streamView struct {
	state client.StreamState
	rev   *reveal.Revealer
	act   *activity.Debouncer
}

func newStreamView(id string, sched schedule.Scheduler, grace time.Duration, logger *zap.Logger, box *mailbox) *streamView {
	logger = logger.With(zap.String("stream", id))
	return &streamView{
		rev: reveal.New(sched,
			reveal.WithOnChange(func(reveal.State) { box.post(revealMsg{id: id}) }),
			reveal.WithLogger(logger),
		),
		act: activity.New(sched, grace,
			activity.WithOnChange(func(bool) { box.post(activityMsg{id: id}) }),
			activity.WithLogger(logger),
		),
	}
}

// apply feeds a server update into the components. The revealer restarts
// whenever the text differs from what it was last given.
func (v *streamView) apply(st client.StreamState, opts reveal.Options) {
	v.state = st
	v.rev.Configure(st.Text, opts)
	v.act.Update(st.Active && !st.Status.IsTerminal())
}

func (v *streamView) close() {
	v.rev.Close()
	v.act.Close()
}
