package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pulsecheck/internal/output"
	"pulsecheck/internal/period"
	"pulsecheck/ui/tui/state"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
)

// MockSnapshotProvider for testing
type MockSnapshotProvider struct {
	snap Snapshot
	err  error
}

func (m MockSnapshotProvider) Snapshot(context.Context, period.Type) (Snapshot, error) {
	return m.snap, m.err
}

func init() {
	zone.NewGlobal()
}

func TestMenuNavigation(t *testing.T) {
	provider := MockSnapshotProvider{}
	model := InitialModel(provider, period.Hour)

	// Initial state
	if model.menuCursor != 0 {
		t.Errorf("Expected initial menu cursor 0, got %d", model.menuCursor)
	}
	if model.state.CurrentPage != state.PageMenu {
		t.Errorf("Expected initial page PageMenu, got %v", model.state.CurrentPage)
	}

	// Test Down Navigation
	cmd := tea.KeyMsg{Type: tea.KeyDown, Runes: []rune{}, Alt: false}
	updatedModel, _ := model.Update(cmd)
	m := updatedModel.(*MainModel)

	if m.menuCursor != 1 {
		t.Errorf("Expected menu cursor 1 after Down key, got %d", m.menuCursor)
	}

	// Test Up Navigation
	cmd = tea.KeyMsg{Type: tea.KeyUp, Runes: []rune{}, Alt: false}
	updatedModel, _ = m.Update(cmd)
	m = updatedModel.(*MainModel)

	if m.menuCursor != 0 {
		t.Errorf("Expected menu cursor 0 after Up key, got %d", m.menuCursor)
	}

	// Cursor stops at the last option
	for i := 0; i < 10; i++ {
		updatedModel, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = updatedModel.(*MainModel)
	}
	if m.menuCursor != 4 {
		t.Errorf("Expected menu cursor 4 at the bottom, got %d", m.menuCursor)
	}
}

func TestMenuAnimationLogic(t *testing.T) {
	provider := MockSnapshotProvider{}
	model := InitialModel(provider, period.Hour)

	// Move cursor to 1
	model.menuCursor = 1

	// Initial animation cursor should be 0
	if model.animCursor != 0 {
		t.Errorf("Expected initial animCursor 0, got %f", model.animCursor)
	}

	// The spring physics should move animCursor towards menuCursor (1.0)
	animateMsg := AnimateMsg(time.Now())
	updatedModel, _ := model.Update(animateMsg)
	m := updatedModel.(*MainModel)

	if m.animCursor <= 0 {
		t.Errorf("Expected animCursor to increase after animation frame, got %f", m.animCursor)
	}
	if m.animCursor >= 1.0 {
		t.Errorf("Expected animCursor to not reach target immediately, got %f", m.animCursor)
	}

	updatedModel, _ = m.Update(animateMsg)
	m = updatedModel.(*MainModel)
	prevCursor := m.animCursor

	updatedModel, _ = m.Update(animateMsg)
	m = updatedModel.(*MainModel)

	if m.animCursor <= prevCursor {
		t.Errorf("Expected animCursor to continue increasing, got %f (prev %f)", m.animCursor, prevCursor)
	}
}

func TestPageTransition(t *testing.T) {
	provider := MockSnapshotProvider{}
	model := InitialModel(provider, period.Hour)

	pages := []state.Page{state.PageConsole, state.PageDashboard, state.PageRoutes, state.PageQueries, state.PageTrend}
	for i, want := range pages {
		model.menuCursor = i
		updatedModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m := updatedModel.(*MainModel)
		if m.state.CurrentPage != want {
			t.Errorf("option %d: expected page %v, got %v", i, want, m.state.CurrentPage)
		}

		// Go Back
		updatedModel, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'b'}})
		m = updatedModel.(*MainModel)
		if m.state.CurrentPage != state.PageMenu {
			t.Errorf("Expected page to change back to PageMenu, got %v", m.state.CurrentPage)
		}
	}
}

func TestPeriodTabCycling(t *testing.T) {
	model := InitialModel(MockSnapshotProvider{}, period.Hour)

	updatedModel, cmd := model.Update(tea.KeyMsg{Type: tea.KeyTab})
	m := updatedModel.(*MainModel)
	if m.state.Period != period.Day {
		t.Errorf("Expected day after tab, got %s", m.state.Period)
	}
	if cmd == nil {
		t.Error("Expected a reload command after switching period")
	}

	updatedModel, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'4'}})
	m = updatedModel.(*MainModel)
	if m.state.Period != period.Month {
		t.Errorf("Expected month after '4', got %s", m.state.Period)
	}

	updatedModel, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updatedModel.(*MainModel)
	if m.state.Period != period.Hour {
		t.Errorf("Expected tab to wrap to hour, got %s", m.state.Period)
	}

	// Re-selecting the active tab does nothing
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'1'}})
	if cmd != nil {
		t.Error("Expected no command when the period is unchanged")
	}
}

func TestInitialModelDefaultsToHour(t *testing.T) {
	model := InitialModel(MockSnapshotProvider{}, period.Type("fortnight"))
	if model.state.Period != period.Hour {
		t.Errorf("Expected hour for an unknown period, got %s", model.state.Period)
	}
}

func TestSnapshotLoaded(t *testing.T) {
	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	snap := Snapshot{
		View: output.DashboardView{
			PeriodType:  "hour",
			PeriodStart: start,
			TotalCount:  42,
			Worst:       "slow",
		},
		P95History: []float64{120, 180, 240},
	}
	provider := MockSnapshotProvider{snap: snap}
	model := InitialModel(provider, period.Hour)

	msg := fetchSnapshotCmd(provider, period.Hour)()
	updatedModel, _ := model.Update(msg)
	m := updatedModel.(*MainModel)

	if m.state.View.TotalCount != 42 {
		t.Errorf("Expected total count 42, got %d", m.state.View.TotalCount)
	}
	if len(m.trend.History) != 3 || m.trend.History[2] != 240 {
		t.Errorf("Expected trend history to follow the snapshot, got %v", m.trend.History)
	}
	if len(m.state.ConsoleLogs) != 1 {
		t.Fatalf("Expected one console line, got %d", len(m.state.ConsoleLogs))
	}
	line := m.state.ConsoleLogs[0]
	if !strings.Contains(line, "requests: 42") || !strings.Contains(line, "worst: slow") {
		t.Errorf("Unexpected console line %q", line)
	}
	if m.state.LastUpdate.IsZero() {
		t.Error("Expected LastUpdate to be set")
	}
}

func TestSnapshotErrorKeepsPreviousView(t *testing.T) {
	model := InitialModel(MockSnapshotProvider{}, period.Hour)
	model.state.View.TotalCount = 7

	updatedModel, _ := model.Update(SnapshotLoadedMsg{Period: period.Hour, Err: errors.New("db locked")})
	m := updatedModel.(*MainModel)

	if m.state.Err == nil {
		t.Error("Expected the error to be recorded")
	}
	if m.state.View.TotalCount != 7 {
		t.Errorf("Expected the previous view to survive, got %d", m.state.View.TotalCount)
	}
	if len(m.state.ConsoleLogs) != 1 || !strings.Contains(m.state.ConsoleLogs[0], "db locked") {
		t.Errorf("Expected the failure in the console, got %v", m.state.ConsoleLogs)
	}
}

func TestStaleSnapshotIgnored(t *testing.T) {
	model := InitialModel(MockSnapshotProvider{}, period.Day)

	updatedModel, _ := model.Update(SnapshotLoadedMsg{Period: period.Hour, Snapshot: Snapshot{View: output.DashboardView{TotalCount: 9}}})
	m := updatedModel.(*MainModel)

	if m.state.View.TotalCount != 0 || len(m.state.ConsoleLogs) != 0 {
		t.Error("Expected a reply for another period to be dropped")
	}
}

func TestConsoleLogIsBounded(t *testing.T) {
	model := InitialModel(MockSnapshotProvider{}, period.Hour)
	for i := 0; i < 150; i++ {
		model.appendLog("line")
	}
	if len(model.state.ConsoleLogs) != 100 {
		t.Errorf("Expected 100 console lines, got %d", len(model.state.ConsoleLogs))
	}
}

func TestViewRendersEveryPage(t *testing.T) {
	model := InitialModel(MockSnapshotProvider{}, period.Hour)
	model.width, model.height = 120, 40

	pages := []state.Page{state.PageMenu, state.PageDashboard, state.PageConsole, state.PageRoutes, state.PageQueries, state.PageTrend}
	for _, p := range pages {
		model.state.CurrentPage = p
		if out := model.View(); out == "" {
			t.Errorf("page %v rendered nothing", p)
		}
	}
}
