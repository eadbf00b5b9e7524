package styles

import "github.com/charmbracelet/lipgloss"

var (
	Subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	Highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	// Latency status colors
	Healthy  = lipgloss.Color("46")  // green
	Slow     = lipgloss.Color("220") // gold
	VerySlow = lipgloss.Color("208") // orange
	Critical = lipgloss.Color("196") // red

	TitleStyle = lipgloss.NewStyle().
			MarginLeft(1).
			MarginRight(5).
			Padding(0, 1).
			Italic(true).
			Foreground(lipgloss.Color("#FFF7DB"))

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Highlight).
			Padding(1, 2).
			Margin(1, 1)

	StatusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFF"))

	// ActiveTab and InactiveTab render the period selector.
	ActiveTab = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Foreground(lipgloss.Color("#FFF7DB")).
			Background(Highlight)

	InactiveTab = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(Subtle)
)

// StatusColor maps a latency status to its color; unknown statuses render as healthy.
func StatusColor(status string) lipgloss.TerminalColor {
	switch status {
	case "slow":
		return Slow
	case "very_slow":
		return VerySlow
	case "critical":
		return Critical
	}
	return Healthy
}
