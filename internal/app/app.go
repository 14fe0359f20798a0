// Package app is the root Bubble Tea model of the streamtext viewer.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agent-racer/streamtext/internal/client"
	"github.com/agent-racer/streamtext/internal/reveal"
	"github.com/agent-racer/streamtext/internal/schedule"
	"github.com/agent-racer/streamtext/internal/theme"
	"github.com/agent-racer/streamtext/internal/views/debug"
	"github.com/agent-racer/streamtext/internal/views/status"
	"github.com/agent-racer/streamtext/internal/views/streams"
	"github.com/agent-racer/streamtext/internal/views/transcript"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// Options configures the viewer. Reveal and Grace are used as given; a
// zero Grace defers deactivation by a single scheduling turn. Callers take
// their defaults from config.
type Options struct {
	Scheduler schedule.Scheduler // defaults to a real timer
	Reveal    reveal.Options
	Grace     time.Duration
	Markdown  bool
	Logger    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Scheduler == nil {
		o.Scheduler = schedule.NewTimer()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// startedMsg reports the outcome of a launch request.
type startedMsg struct {
	state *client.StreamState
	err   error
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	opts Options
	box  *mailbox
	keys KeyMap

	width  int
	height int

	streams  map[string]*streamView
	order    []string // sorted stream IDs
	launched int

	showDebug bool

	// Sub-views.
	statusBar  status.Model
	list       streams.Model
	transcript transcript.Model
	debugLog   debug.Model

	connected bool
}

// New creates the root model. http may be nil, which disables launching
// new streams.
func New(ws *client.WSClient, http *client.HTTPClient, opts Options) Model {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:         ws,
		http:       http,
		ctx:        ctx,
		cancel:     cancel,
		opts:       opts,
		box:        newMailbox(),
		keys:       DefaultKeyMap(),
		streams:    make(map[string]*streamView),
		statusBar:  status.New(),
		list:       streams.New(),
		transcript: transcript.New(opts.Markdown),
		debugLog:   debug.New(),
	}
}

// Init starts the WebSocket connection and the component mailbox.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.ws.Listen(m.ctx), m.box.wait(m.ctx))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case batchMsg:
		var cmds []tea.Cmd
		for _, inner := range msg {
			next, cmd := m.Update(inner)
			m = next.(Model)
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, m.box.wait(m.ctx))
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.list.Width = msg.Width
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.debugLog.Addf("ws", "connected")
		return m, m.ws.ReadLoop()

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.debugLog.Addf("ws", "disconnected: %v", msg.Err)
		return m, m.ws.Listen(m.ctx)

	case client.WSSnapshotMsg:
		seen := make(map[string]bool, len(msg.Payload.Streams))
		for _, st := range msg.Payload.Streams {
			seen[st.ID] = true
			m.upsert(st)
		}
		for id := range m.streams {
			if !seen[id] {
				m.remove(id)
			}
		}
		m.debugLog.Addf("ws", "snapshot: %d streams", len(msg.Payload.Streams))
		return m, tea.Batch(m.refresh(), m.ws.ReadLoop())

	case client.WSDeltaMsg:
		for _, st := range msg.Payload.Updates {
			m.upsert(st)
		}
		for _, id := range msg.Payload.Removed {
			m.remove(id)
		}
		return m, tea.Batch(m.refresh(), m.ws.ReadLoop())

	case client.WSCompletionMsg:
		if v, ok := m.streams[msg.Payload.StreamID]; ok {
			v.state.Status = msg.Payload.Status
			v.act.Update(false)
		}
		m.debugLog.Addf("ws", "%s %s", msg.Payload.Title, msg.Payload.Status)
		return m, tea.Batch(m.refresh(), m.ws.ReadLoop())

	case client.WSErrorMsg:
		m.debugLog.Addf("err", "server: %s", msg.Payload.Message)
		return m, m.ws.ReadLoop()

	case revealMsg:
		if _, ok := m.streams[msg.id]; !ok {
			return m, nil
		}
		return m, m.refresh()

	case activityMsg:
		v, ok := m.streams[msg.id]
		if !ok {
			return m, nil
		}
		m.debugLog.Addf("act", "%s active=%t", displayTitle(v.state), v.act.Stable())
		return m, m.refresh()

	case startedMsg:
		if msg.err != nil {
			m.debugLog.Addf("err", "launch: %v", msg.err)
			m.opts.Logger.Warn("launch failed", zap.Error(msg.err))
		} else {
			m.debugLog.Addf("ws", "launched %s", msg.state.Title)
		}
		return m, nil

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

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Debug):
		m.showDebug = !m.showDebug
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		if m.showDebug {
			m.debugLog.ScrollUp(10)
		} else {
			m.transcript.PageUp()
		}
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		if m.showDebug {
			m.debugLog.ScrollDown(10)
		} else {
			m.transcript.PageDown()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.list.Next()
		return m, m.refresh()

	case key.Matches(msg, m.keys.Up):
		m.list.Prev()
		return m, m.refresh()

	case key.Matches(msg, m.keys.Resync):
		if err := m.ws.Resync(); err != nil {
			m.debugLog.Addf("err", "resync: %v", err)
		} else {
			m.debugLog.Addf("key", "resync requested")
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		if m.http == nil {
			m.debugLog.Addf("err", "launching is not available")
			return m, nil
		}
		m.launched++
		return m, m.launch(fmt.Sprintf("viewer prompt #%d", m.launched))
	}

	return m, nil
}

func (m Model) launch(prompt string) tea.Cmd {
	h, ctx := m.http, m.ctx
	return func() tea.Msg {
		st, err := h.StartStream(ctx, prompt)
		return startedMsg{state: st, err: err}
	}
}

// shutdown stops every component timer and the connection.
func (m Model) shutdown() {
	m.cancel()
	for id := range m.streams {
		m.remove(id)
	}
	m.ws.Close()
}

func (m Model) upsert(st client.StreamState) {
	v, ok := m.streams[st.ID]
	if !ok {
		v = newStreamView(st.ID, m.opts.Scheduler, m.opts.Grace, m.opts.Logger, m.box)
		m.streams[st.ID] = v
	}
	v.apply(st, m.opts.Reveal)
}

func (m Model) remove(id string) {
	if v, ok := m.streams[id]; ok {
		v.close()
		delete(m.streams, id)
	}
}

// refresh pushes component output into the sub-views.
func (m *Model) refresh() tea.Cmd {
	m.order = m.order[:0]
	for id := range m.streams {
		m.order = append(m.order, id)
	}
	sort.Slice(m.order, func(i, j int) bool {
		a, b := m.streams[m.order[i]].state, m.streams[m.order[j]].state
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		return a.ID < b.ID
	})

	rows := make([]streams.Row, 0, len(m.order))
	var live, finished int
	for _, id := range m.order {
		v := m.streams[id]
		active := v.act.Stable()
		if active {
			live++
		}
		if v.state.Status.IsTerminal() {
			finished++
		}
		rows = append(rows, streams.Row{
			ID:       id,
			Title:    v.state.Title,
			Model:    v.state.Model,
			Status:   string(v.state.Status),
			Active:   active,
			Progress: v.rev.State().Progress,
			Tokens:   v.state.Tokens,
		})
	}
	m.list.SetRows(rows)
	m.statusBar.SetCounts(len(rows), live, finished)
	busyCmd := m.statusBar.SetBusy(live > 0)
	m.layout()

	row, ok := m.list.Current()
	if !ok {
		m.transcript.Clear()
		return busyCmd
	}
	v := m.streams[row.ID]
	rs := v.rev.State()
	return tea.Batch(busyCmd, m.transcript.Show(displayTitle(v.state), rs.DisplayedText, rs.Progress, rs.IsComplete))
}

// layout splits the screen between the list and the transcript.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	listRows := min(len(m.order)+3, max(m.height/3, 4))
	m.transcript.SetSize(m.width, max(m.height-listRows-5, 3))
}

// View renders the full viewer.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	help := theme.StyleDimmed.Render(helpLine(m.keys,
		m.keys.Down, m.keys.New, m.keys.Resync, m.keys.PageDown, m.keys.Debug, m.keys.Quit))

	if m.showDebug {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.statusBar.View(),
			m.debugLog.View(m.width, m.height-4),
			help,
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		m.list.View(),
		m.transcript.View(),
		help,
	)
}

func displayTitle(st client.StreamState) string {
	if st.Title != "" {
		return st.Title
	}
	if len(st.ID) >= 8 {
		return st.ID[:8]
	}
	return st.ID
}
