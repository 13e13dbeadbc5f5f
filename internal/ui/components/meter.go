// Package components renders reusable CLI widgets.
package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/mathprogress/internal/ui/theme"
)

// Meter is a horizontal bar for a percentage, drawn with block characters
// so it stays readable without color.
type Meter struct {
	Percent int // 0..100
	Width   int
	// Mark colors the bar as reaching a goal.
	Mark bool
}

// View renders the meter followed by the percentage.
func (m Meter) View() string {
	width := max(m.Width, 4)
	pct := max(0, min(100, m.Percent))
	filled := width * pct / 100

	color := theme.Secondary
	if m.Mark {
		color = theme.Success
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("░", width-filled))
	return bar + theme.Label.Render(fmt.Sprintf(" %3d%%", pct))
}

// Fraction renders "n/total" progress, e.g. the position in an attempt.
func Fraction(n, total int) string {
	return theme.Label.Render(fmt.Sprintf("%d/%d", n, total))
}
