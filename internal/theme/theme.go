// Package theme provides the Lip Gloss color palette and reusable styles
// for the streamtext viewer. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Model colors.
var (
	ColorLarge   = lipgloss.Color("#a855f7")
	ColorSmall   = lipgloss.Color("#22c55e")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// Status colors.
var (
	ColorPending   = lipgloss.Color("#7c3aed")
	ColorStreaming = lipgloss.Color("#2563eb")
	ColorComplete  = lipgloss.Color("#16a34a")
	ColorErrored   = lipgloss.Color("#dc2626")
)

// Progress bar thresholds.
var (
	ColorProgressLow  = lipgloss.Color("#d97706") // <50%
	ColorProgressMid  = lipgloss.Color("#3b82f6") // 50-99%
	ColorProgressDone = lipgloss.Color("#22c55e")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// ModelColor returns the Lip Gloss color for a model name.
func ModelColor(model string) lipgloss.Color {
	switch {
	case strings.Contains(model, "large"):
		return ColorLarge
	case strings.Contains(model, "small"):
		return ColorSmall
	default:
		return ColorDefault
	}
}

// StatusColor returns the Lip Gloss color for a stream status.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return ColorPending
	case "streaming":
		return ColorStreaming
	case "complete":
		return ColorComplete
	case "errored":
		return ColorErrored
	default:
		return ColorDefault
	}
}

// ProgressColor returns the bar color for a reveal percentage in [0, 100].
func ProgressColor(pct float64) lipgloss.Color {
	switch {
	case pct >= 100:
		return ColorProgressDone
	case pct >= 50:
		return ColorProgressMid
	default:
		return ColorProgressLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)

// StatusGlyph returns a Unicode glyph for a stream. Live streams show a
// filled dot only while their debounced activity is on.
func StatusGlyph(status string, active bool) string {
	switch status {
	case "pending":
		return "◎"
	case "streaming":
		if active {
			return "●"
		}
		return "○"
	case "complete":
		return "✓"
	case "errored":
		return "✗"
	default:
		return "·"
	}
}

// Bar renders a fixed-width horizontal bar filled to pct percent.
func Bar(pct float64, width int) string {
	if width < 1 {
		width = 1
	}
	filled := max(0, min(int(pct/100*float64(width)+0.5), width))
	color := ProgressColor(pct)
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(ColorBorder).Render(strings.Repeat("░", width-filled))
}
