package components

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Component is a chart or panel embedded in a page. It is tea.Model plus
// sizing, so the app can relayout widgets on window changes.
type Component interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Model, tea.Cmd)
	View() string
	Resize(width, height int)
}

var _ Component = (*TrendWidget)(nil)
