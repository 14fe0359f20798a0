package status

import (
	"fmt"

	"github.com/agent-racer/streamtext/internal/theme"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Total     int
	Live      int // streams whose debounced activity is on
	Finished  int
	Width     int

	busy    bool
	spinner spinner.Model
}

// New creates a status bar model.
func New() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorStreaming)
	return Model{spinner: sp}
}

// SetCounts updates the stream counts.
func (m *Model) SetCounts(total, live, finished int) {
	m.Total = total
	m.Live = live
	m.Finished = finished
}

// SetBusy turns the spinner on or off. It returns the first tick when the
// spinner starts.
func (m *Model) SetBusy(busy bool) tea.Cmd {
	if busy == m.busy {
		return nil
	}
	m.busy = busy
	if busy {
		return m.spinner.Tick
	}
	return nil
}

// Busy reports whether the spinner is running.
func (m Model) Busy() bool {
	return m.busy
}

// Update advances the spinner. Ticks stop once the bar is no longer busy.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	tick, ok := msg.(spinner.TickMsg)
	if !ok || !m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(tick)
	return m, cmd
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	counts := fmt.Sprintf("%d streams  %d live  %d finished", m.Total, m.Live, m.Finished)

	activity := theme.StyleDimmed.Render("idle")
	if m.busy {
		activity = m.spinner.View() + " streaming"
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + counts + sep + activity

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
