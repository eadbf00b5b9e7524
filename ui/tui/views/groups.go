package views

import (
	"fmt"

	"pulsecheck/ui/tui/state"
	"pulsecheck/ui/tui/styles"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

// GroupsView lists every item of one dashboard section.
type GroupsView struct {
	Title     string
	SectionID string
}

func (v GroupsView) Render(s state.AppState, props ViewProps) string {
	header := MenuHeaderStyle.Width(props.Width).Render(v.Title)

	sec := s.View.SectionByID(v.SectionID)
	count := 0
	if sec != nil {
		count = len(sec.Items)
	}

	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Highlight).
		Padding(1, 2).
		Render(RenderSection(sec, 0))

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.NewStyle().Padding(1, 2, 0).Render(RenderTabs(s.Period)),
		lipgloss.NewStyle().PaddingLeft(2).Render(fmt.Sprintf("%d groups, slowest p95 first", count)),
		body,
		lipgloss.NewStyle().Padding(1, 2).Foreground(styles.Subtle).Render("Press 'b' to go back"),
	))
}
