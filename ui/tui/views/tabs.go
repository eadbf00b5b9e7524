package views

import (
	"pulsecheck/internal/period"
	"pulsecheck/ui/tui/styles"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

// TabZoneID is the bubblezone id of a period tab.
func TabZoneID(pt period.Type) string { return "tab_" + pt.String() }

// RenderTabs renders clickable period tabs with active highlighted.
func RenderTabs(active period.Type) string {
	tabs := make([]string, 0, len(period.Types))
	for _, pt := range period.Types {
		style := styles.InactiveTab
		if pt == active {
			style = styles.ActiveTab
		}
		tabs = append(tabs, zone.Mark(TabZoneID(pt), style.Render(pt.String())))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...) +
		lipgloss.NewStyle().Foreground(styles.Subtle).Render("  [tab] switch period")
}
