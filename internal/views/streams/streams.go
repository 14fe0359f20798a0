// Package streams renders the list of streams with their reveal progress.
package streams

import (
	"fmt"
	"strings"

	"github.com/agent-racer/streamtext/internal/theme"
	"github.com/charmbracelet/lipgloss"
)

// Row is one stream as the list shows it.
type Row struct {
	ID       string
	Title    string
	Model    string
	Status   string
	Active   bool    // debounced activity
	Progress float64 // reveal progress, 0-100
	Tokens   int
}

// Model holds the list state.
type Model struct {
	Width    int
	Selected int
	rows     []Row
}

func New() Model {
	return Model{}
}

// SetRows replaces the list, keeping the selection in range.
func (m *Model) SetRows(rows []Row) {
	m.rows = rows
	m.clamp()
}

func (m Model) Rows() []Row {
	return m.rows
}

// Next moves the selection down, wrapping around.
func (m *Model) Next() {
	if len(m.rows) > 0 {
		m.Selected = (m.Selected + 1) % len(m.rows)
	}
}

// Prev moves the selection up, wrapping around.
func (m *Model) Prev() {
	if len(m.rows) > 0 {
		m.Selected = (m.Selected - 1 + len(m.rows)) % len(m.rows)
	}
}

// Current returns the selected row, if any.
func (m Model) Current() (Row, bool) {
	if m.Selected < 0 || m.Selected >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[m.Selected], true
}

func (m *Model) clamp() {
	if m.Selected >= len(m.rows) {
		m.Selected = len(m.rows) - 1
	}
	if m.Selected < 0 {
		m.Selected = 0
	}
}

// View renders the list as a fixed-column table.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	header := theme.StyleHeader.Render("  Streams")
	if len(m.rows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			theme.StyleDimmed.Render("  No streams yet. Press n to start one."),
		)
	}

	colTitle := 24
	colModel := 12
	colBar := 16
	colTokens := 7

	dim := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	lines := []string{
		header,
		dim.Render(fmt.Sprintf("    %-*s %-*s %-*s %*s  %s",
			colTitle, "Title", colModel, "Model", colBar+5, "Revealed", colTokens, "Tokens", "Status")),
		dim.Render("  " + strings.Repeat("─", min(width-4, colTitle+colModel+colBar+colTokens+20))),
	}

	for i, r := range m.rows {
		prefix := "  "
		if i == m.Selected {
			prefix = "> "
		}
		glyph := lipgloss.NewStyle().Foreground(theme.StatusColor(r.Status)).
			Render(theme.StatusGlyph(r.Status, r.Active))

		title := truncate(displayTitle(r), colTitle)
		titleStyle := lipgloss.NewStyle().Foreground(theme.ModelColor(r.Model)).Width(colTitle)
		if i == m.Selected {
			titleStyle = titleStyle.Bold(true)
		}

		line := fmt.Sprintf("%s%s %s %s %s %s  %s",
			prefix,
			glyph,
			titleStyle.Render(title),
			dim.Width(colModel).Render(truncate(r.Model, colModel)),
			theme.Bar(r.Progress, colBar)+fmt.Sprintf(" %3.0f%%", r.Progress),
			lipgloss.NewStyle().Width(colTokens).Align(lipgloss.Right).Render(fmt.Sprintf("%d", r.Tokens)),
			lipgloss.NewStyle().Foreground(theme.StatusColor(r.Status)).Render(r.Status),
		)
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func displayTitle(r Row) string {
	if r.Title != "" {
		return r.Title
	}
	if len(r.ID) >= 8 {
		return r.ID[:8]
	}
	return r.ID
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
