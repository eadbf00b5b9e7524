package views

import (
	"fmt"

	"pulsecheck/internal/output"
	"pulsecheck/ui/tui/state"
	"pulsecheck/ui/tui/styles"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

type TrendView struct{}

func (v TrendView) Render(s state.AppState, props ViewProps) string {
	header := MenuHeaderStyle.Width(props.Width).Render("Overall p95 Trend")

	info := "no buckets yet"
	if n := len(s.P95History); n > 0 {
		lo, hi := s.P95History[0], s.P95History[0]
		for _, p := range s.P95History {
			lo = min(lo, p)
			hi = max(hi, p)
		}
		info = fmt.Sprintf("%d %s buckets\nlatest p95: %.1fms\nrange: %.1f - %.1fms", n, s.Period, s.P95History[n-1], lo, hi)
	}

	chart := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Highlight).
		Padding(1, 2).
		Render(props.ChartView)

	overall := lipgloss.NewStyle().Padding(1, 2).Render(RenderSection(s.View.SectionByID(output.SectionOverall), 1))

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.NewStyle().Padding(1, 2, 0).Render(RenderTabs(s.Period)),
		lipgloss.NewStyle().Padding(1, 2).Render(info),
		chart,
		overall,
		lipgloss.NewStyle().Padding(1, 2).Foreground(styles.Subtle).Render("Press 'b' to go back"),
	))
}
