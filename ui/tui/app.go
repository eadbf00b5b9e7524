package tui

import (
	"context"
	"fmt"
	"time"

	"pulsecheck/internal/period"
	"pulsecheck/ui/tui/components"
	"pulsecheck/ui/tui/state"
	"pulsecheck/ui/tui/views"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

const refreshInterval = 5 * time.Second

// MainModel is the Bubble Tea Model acting as the Controller
type MainModel struct {
	provider       SnapshotProvider
	state          state.AppState
	spinner        spinner.Model
	trend          *components.TrendWidget
	menuCursor     int
	animCursor     float64
	velocity       float64 // Physics velocity
	spring         harmonica.Spring
	consoleScrollY int
	mouseX         int
	mouseY         int
	quitting       bool
	width          int
	height         int
}

// Messages
type TickMsg time.Time
type AnimateMsg time.Time
type SnapshotLoadedMsg struct {
	Period   period.Type
	Snapshot Snapshot
	Err      error
}

func InitialModel(provider SnapshotProvider, pt period.Type) MainModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	// Increased frequency (12.0) for faster response and damping (0.9) to prevent overshoot
	spring := harmonica.NewSpring(harmonica.FPS(60), 12.0, 0.9)

	if !pt.Valid() {
		pt = period.Hour
	}

	return MainModel{
		provider: provider,
		spinner:  s,
		trend:    components.NewTrendWidget("Overall p95 (ms)", 30, 10),
		spring:   spring,
		state: state.AppState{
			Period:      pt,
			CurrentPage: state.PageMenu,
		},
	}
}

func (m *MainModel) Init() tea.Cmd {
	zone.NewGlobal()
	return tea.Batch(
		m.spinner.Tick,
		fetchSnapshotCmd(m.provider, m.state.Period),
		tickCmd(),
		animateCmd(),
	)
}

// Commands
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func animateCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*16, func(t time.Time) tea.Msg {
		return AnimateMsg(t)
	})
}

func fetchSnapshotCmd(p SnapshotProvider, pt period.Type) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()
		snap, err := p.Snapshot(ctx, pt)
		return SnapshotLoadedMsg{Period: pt, Snapshot: snap, Err: err}
	}
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case AnimateMsg:
		return m.handleAnimateMsg(msg)

	case tea.WindowSizeMsg:
		return m.handleWindowSizeMsg(msg)

	case TickMsg:
		return m.handleTickMsg(msg)

	case SnapshotLoadedMsg:
		return m.handleSnapshotLoadedMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)
	}

	return m, nil
}

func (m *MainModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		return m, m.setPeriod(nextPeriod(m.state.Period))
	case "1", "2", "3", "4":
		return m, m.setPeriod(period.Types[int(msg.String()[0]-'1')])
	}

	if m.state.CurrentPage == state.PageMenu {
		switch msg.String() {
		case "up", "k":
			if m.menuCursor > 0 {
				m.menuCursor--
			}
		case "down", "j":
			if m.menuCursor < len(views.MenuOptions)-1 {
				m.menuCursor++
			}
		case "enter":
			m.navigateTo(m.menuCursor)
		}
		return m, nil
	}

	if m.state.CurrentPage == state.PageConsole {
		switch msg.String() {
		case "up", "k":
			if m.consoleScrollY > 0 {
				m.consoleScrollY--
			}
		case "down", "j":
			m.consoleScrollY++
		}
	}

	if msg.String() == "b" || msg.String() == "esc" || msg.String() == "backspace" {
		m.state.CurrentPage = state.PageMenu
		m.consoleScrollY = 0
		return m, nil
	}

	return m, nil
}

func nextPeriod(pt period.Type) period.Type {
	for i, t := range period.Types {
		if t == pt {
			return period.Types[(i+1)%len(period.Types)]
		}
	}
	return period.Hour
}

// setPeriod switches the period tab and reloads immediately.
func (m *MainModel) setPeriod(pt period.Type) tea.Cmd {
	if pt == m.state.Period {
		return nil
	}
	m.state.Period = pt
	m.trend.SetHistory(nil)
	return fetchSnapshotCmd(m.provider, pt)
}

func (m *MainModel) navigateTo(cursor int) {
	switch cursor {
	case 0:
		m.state.CurrentPage = state.PageConsole
	case 1:
		m.state.CurrentPage = state.PageDashboard
	case 2:
		m.state.CurrentPage = state.PageRoutes
	case 3:
		m.state.CurrentPage = state.PageQueries
	case 4:
		m.state.CurrentPage = state.PageTrend
	}
}

func (m *MainModel) handleAnimateMsg(msg AnimateMsg) (tea.Model, tea.Cmd) {
	var v float64 = m.velocity
	m.animCursor, v = m.spring.Update(m.animCursor, float64(m.menuCursor), v)
	m.velocity = v
	return m, animateCmd()
}

func (m *MainModel) handleWindowSizeMsg(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	newW := msg.Width/2 - 6
	if newW > 10 {
		m.trend.Resize(newW, 10)
	}
	return m, nil
}

func (m *MainModel) handleTickMsg(msg TickMsg) (tea.Model, tea.Cmd) {
	return m, tea.Batch(
		fetchSnapshotCmd(m.provider, m.state.Period),
		tickCmd(),
	)
}

func (m *MainModel) handleSnapshotLoadedMsg(msg SnapshotLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Period != m.state.Period {
		return m, nil // stale reply for a previous tab
	}
	if msg.Err != nil {
		m.state.Err = msg.Err
		m.appendLog(fmt.Sprintf("[%s] refresh failed: %v", time.Now().Format("15:04:05"), msg.Err))
		return m, nil
	}

	// Update State
	m.state.Err = nil
	m.state.View = msg.Snapshot.View
	m.state.P95History = msg.Snapshot.P95History
	m.state.LastUpdate = time.Now()
	m.trend.SetHistory(msg.Snapshot.P95History)

	// Update Logs
	view := msg.Snapshot.View
	logLine := fmt.Sprintf("[%s] %s: no summaries", time.Now().Format("15:04:05"), m.state.Period)
	if view.PeriodType != "" {
		logLine = fmt.Sprintf("[%s] %s %s | requests: %d | worst: %s",
			time.Now().Format("15:04:05"),
			view.PeriodType,
			view.PeriodStart.UTC().Format("2006-01-02 15:04"),
			view.TotalCount,
			view.Worst,
		)
	}
	m.appendLog(logLine)
	return m, nil
}

func (m *MainModel) appendLog(line string) {
	m.state.ConsoleLogs = append(m.state.ConsoleLogs, line)
	if len(m.state.ConsoleLogs) > 100 {
		m.state.ConsoleLogs = m.state.ConsoleLogs[1:]
	}
}

func (m *MainModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	m.mouseX = msg.X
	m.mouseY = msg.Y

	if msg.Action != tea.MouseActionRelease {
		return m, nil
	}
	for _, pt := range period.Types {
		if zone.Get(views.TabZoneID(pt)).InBounds(msg) {
			return m, m.setPeriod(pt)
		}
	}
	if m.state.CurrentPage == state.PageMenu {
		for i := range views.MenuOptions {
			if zone.Get(fmt.Sprintf("menu_%d", i)).InBounds(msg) {
				m.menuCursor = i
				m.navigateTo(i)
				return m, nil
			}
		}
	}
	return m, nil
}

func (m *MainModel) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	switch m.state.CurrentPage {
	case state.PageMenu:
		return views.RenderMenu(m.state.Period, m.width, m.height, m.menuCursor, m.animCursor, m.mouseX, m.mouseY)
	case state.PageDashboard:
		return views.RenderDashboard(m.state, m.spinner.View(), m.trend.View())
	case state.PageConsole:
		return views.RenderRawConsole(m.state, m.width, m.height, m.consoleScrollY)
	case state.PageRoutes:
		return views.RenderRoutes(m.state, m.width, m.height)
	case state.PageQueries:
		return views.RenderQueries(m.state, m.width, m.height)
	case state.PageTrend:
		return views.RenderTrend(m.state, m.trend.View(), m.width, m.height)
	default:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Bold(true).Render("Unknown page\n\nPress 'b' to go back"),
		)
	}
}

func Start(provider SnapshotProvider, pt period.Type) error {
	m := InitialModel(provider, pt)
	p := tea.NewProgram(
		&m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}
