package app

import (
	"context"
	"io"

	"github.com/agent-racer/streamtext/internal/activity"
	"github.com/agent-racer/streamtext/internal/reveal"
	"github.com/agent-racer/streamtext/internal/textstream"
	"github.com/agent-racer/streamtext/internal/theme"
	"github.com/agent-racer/streamtext/internal/views/status"
	"github.com/agent-racer/streamtext/internal/views/transcript"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// chunkMsg carries the text read so far from the pipe.
type chunkMsg struct{ text string }

// pipeDoneMsg ends the read; err is nil on a clean EOF.
type pipeDoneMsg struct{ err error }

// PipeModel reveals text read from a local reader, such as stdin. Every
// chunk pulses the activity debouncer so the spinner stays on while input
// keeps arriving within the grace period.
type PipeModel struct {
	r      io.Reader
	title  string
	ctx    context.Context
	cancel context.CancelFunc

	opts Options
	box  *mailbox
	keys KeyMap
	rev  *reveal.Revealer
	act  *activity.Debouncer

	statusBar  status.Model
	transcript transcript.Model

	width, height int
	done          bool
	err           error
}

func NewPipe(r io.Reader, title string, opts Options) PipeModel {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	box := newMailbox()
	m := PipeModel{
		r:          r,
		title:      title,
		ctx:        ctx,
		cancel:     cancel,
		opts:       opts,
		box:        box,
		keys:       DefaultKeyMap(),
		statusBar:  status.New(),
		transcript: transcript.New(opts.Markdown),
	}
	m.rev = reveal.New(opts.Scheduler,
		reveal.WithOnChange(func(reveal.State) { box.post(revealMsg{id: title}) }),
		reveal.WithLogger(opts.Logger),
	)
	m.act = activity.New(opts.Scheduler, opts.Grace,
		activity.WithOnChange(func(bool) { box.post(activityMsg{id: title}) }),
		activity.WithLogger(opts.Logger),
	)
	m.statusBar.Connected = true
	return m
}

func (m PipeModel) Init() tea.Cmd {
	return tea.Batch(m.read(), m.box.wait(m.ctx))
}

func (m PipeModel) read() tea.Cmd {
	ctx, r, box := m.ctx, m.r, m.box
	return func() tea.Msg {
		err := textstream.Consume(ctx, r, func(text string) {
			box.post(chunkMsg{text: text})
		})
		return pipeDoneMsg{err: err}
	}
}

func (m PipeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case batchMsg:
		var cmds []tea.Cmd
		for _, inner := range msg {
			next, cmd := m.Update(inner)
			m = next.(PipeModel)
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, m.box.wait(m.ctx))
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.statusBar.Width = msg.Width
		m.transcript.SetSize(msg.Width, max(msg.Height-5, 3))
		return m, m.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			m.rev.Close()
			m.act.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.PageUp):
			m.transcript.PageUp()
		case key.Matches(msg, m.keys.PageDown):
			m.transcript.PageDown()
		}
		return m, nil

	case chunkMsg:
		m.rev.Configure(msg.text, m.opts.Reveal)
		m.act.Update(true)
		m.act.Update(false)
		return m, m.refresh()

	case pipeDoneMsg:
		m.done = true
		if msg.err != nil && m.ctx.Err() == nil {
			m.err = msg.err
			m.opts.Logger.Error("pipe read failed", zap.Error(msg.err))
		}
		return m, m.refresh()

	case revealMsg, activityMsg:
		return m, m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.statusBar, cmd = m.statusBar.Update(msg)
		return m, cmd

	case transcript.FrameMsg:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *PipeModel) refresh() tea.Cmd {
	rs := m.rev.State()
	live := 0
	if m.act.Stable() {
		live = 1
	}
	finished := 0
	if m.done && rs.IsComplete {
		finished = 1
	}
	m.statusBar.SetCounts(1, live, finished)
	return tea.Batch(
		m.statusBar.SetBusy(live > 0),
		m.transcript.Show(m.title, rs.DisplayedText, rs.Progress, m.done && rs.IsComplete),
	)
}

// Err reports a read failure, if any.
func (m PipeModel) Err() error {
	return m.err
}

func (m PipeModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	footer := helpLine(m.keys, m.keys.PageUp, m.keys.PageDown, m.keys.Quit)
	if m.err != nil {
		footer = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("  read error: "+m.err.Error()) + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		m.transcript.View(),
		theme.StyleDimmed.Render(footer),
	)
}
