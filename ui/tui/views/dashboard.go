package views

import (
	"fmt"

	"pulsecheck/internal/output"
	"pulsecheck/ui/tui/state"
	"pulsecheck/ui/tui/styles"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

type DashboardView struct{}

func (v DashboardView) Render(s state.AppState, props ViewProps) string {
	if s.Err != nil {
		return fmt.Sprintf("Error: %v", s.Err)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Left,
		props.SpinnerView,
		styles.TitleStyle.Render("pulsecheck"),
		fmt.Sprintf(" Last Update: %s", s.LastUpdate.Format("15:04:05")),
	)

	view := s.View
	bucket := "no summaries yet"
	if view.PeriodType != "" {
		bucket = fmt.Sprintf("%s starting %s · %d requests · worst %s",
			view.PeriodType, view.PeriodStart.UTC().Format("2006-01-02 15:04"), view.TotalCount,
			ColorForStatus(view.Worst).Render(view.Worst))
	}

	card := func(title, id string, limit int) string {
		return zone.Mark(id+"_box", styles.CardStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				lipgloss.NewStyle().Bold(true).Render(title),
				RenderSection(view.SectionByID(id), limit),
			),
		))
	}

	overallCol := styles.CardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render("Overall"),
		RenderSection(view.SectionByID(output.SectionOverall), 1),
		props.ChartView,
	))

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, overallCol)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Slowest Routes", output.SectionRoutes, 8),
		card("Slowest Queries", output.SectionQueries, 8),
	)

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left,
		header,
		RenderTabs(s.Period),
		bucket,
		row1,
		row2,
		lipgloss.NewStyle().Foreground(styles.Subtle).Render("\nPress 'b' to go back • 'q' to quit"),
	))
}
