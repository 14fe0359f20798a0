// Package transcript shows the revealed text of the selected stream inside
// a scrollable viewport, with a spring-eased progress bar.
package transcript

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/agent-racer/streamtext/internal/theme"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const (
	fps    = 60
	cursor = "▌"
)

// FrameMsg advances the progress bar animation.
type FrameMsg struct{}

// Model holds the transcript panel state.
type Model struct {
	markdown bool
	renderer *glamour.TermRenderer
	rendered int // wrap width the renderer was built for

	vp     viewport.Model
	width  int
	height int

	title    string
	text     string
	complete bool

	spring    harmonica.Spring
	barPos    float64
	barVel    float64
	barTarget float64
	animating bool
}

// New creates a transcript panel. With markdown set, text is rendered
// through glamour; otherwise it is shown as-is.
func New(markdown bool) Model {
	return Model{
		markdown: markdown,
		vp:       viewport.New(0, 0),
		spring:   harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
	}
}

// SetSize resizes the panel. The header and the progress bar take two rows.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.vp.Width = max(width, 10)
	m.vp.Height = max(height-2, 1)
	m.refresh()
}

// Show displays text for the given stream title. Progress is the reveal
// percentage; the bar eases towards it and the returned command drives
// the animation.
func (m *Model) Show(title, text string, progress float64, complete bool) tea.Cmd {
	changedStream := title != m.title
	m.title = title
	m.text = text
	m.complete = complete
	m.refresh()
	if changedStream {
		m.vp.GotoTop()
		m.barPos, m.barVel = progress, 0
	}
	return m.setTarget(progress)
}

// Clear empties the panel.
func (m *Model) Clear() {
	m.title, m.text = "", ""
	m.complete = false
	m.barPos, m.barVel, m.barTarget = 0, 0, 0
	m.animating = false
	m.vp.SetContent("")
}

func (m *Model) setTarget(progress float64) tea.Cmd {
	m.barTarget = progress
	if m.animating || m.settled() {
		return nil
	}
	m.animating = true
	return frame()
}

func (m Model) settled() bool {
	return math.Abs(m.barPos-m.barTarget) < 0.05 && math.Abs(m.barVel) < 0.05
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg {
		return FrameMsg{}
	})
}

func (m *Model) PageUp()   { m.vp.PageUp() }
func (m *Model) PageDown() { m.vp.PageDown() }

// Update steps the progress spring.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok {
		return m, nil
	}
	m.barPos, m.barVel = m.spring.Update(m.barPos, m.barVel, m.barTarget)
	if m.settled() {
		m.barPos, m.barVel = m.barTarget, 0
		m.animating = false
		return m, nil
	}
	return m, frame()
}

// BarPosition is the eased progress currently drawn.
func (m Model) BarPosition() float64 {
	return m.barPos
}

func (m *Model) refresh() {
	follow := m.vp.AtBottom()
	m.vp.SetContent(m.render())
	if follow {
		m.vp.GotoBottom()
	}
}

func (m *Model) render() string {
	if m.text == "" {
		return ""
	}
	tail := cursor
	if m.complete {
		tail = ""
	}
	if m.markdown {
		if r := m.markdownRenderer(); r != nil {
			if out, err := r.Render(m.text); err == nil {
				return strings.TrimRight(out, "\n ") + tail
			}
		}
	}
	return wordwrap.String(m.text+tail, m.vp.Width)
}

// markdownRenderer returns a glamour renderer wrapping at the current
// width, rebuilding it when the width changes.
func (m *Model) markdownRenderer() *glamour.TermRenderer {
	wrap := max(m.vp.Width-2, 20)
	if m.renderer != nil && m.rendered == wrap {
		return m.renderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	m.renderer, m.rendered = r, wrap
	return r
}

// View renders the panel.
func (m Model) View() string {
	if m.title == "" {
		return theme.StyleDimmed.Render("  Select a stream to follow its text.")
	}

	header := theme.StyleHeader.Render("  "+m.title) +
		theme.StyleDimmed.Render(fmt.Sprintf("  %3.0f%%", m.barTarget))
	barWidth := max(m.width-4, 10)
	bar := "  " + theme.Bar(m.barPos, barWidth)

	return lipgloss.JoinVertical(lipgloss.Left, header, bar, m.vp.View())
}
