package views

import (
	"pulsecheck/internal/output"
	"pulsecheck/internal/period"
	"pulsecheck/ui/tui/state"
)

func RenderMenu(pt period.Type, width, height, cursor int, animCursor float64, mouseX, mouseY int) string {
	v := MenuView{}
	return v.Render(state.AppState{Period: pt}, ViewProps{
		Width:      width,
		Height:     height,
		MenuCursor: cursor,
		AnimCursor: animCursor,
		MouseX:     mouseX,
		MouseY:     mouseY,
	})
}

func RenderDashboard(s state.AppState, spinnerView, chartView string) string {
	v := DashboardView{}
	return v.Render(s, ViewProps{
		SpinnerView: spinnerView,
		ChartView:   chartView,
	})
}

func RenderRawConsole(s state.AppState, width, height, scrollY int) string {
	v := ConsoleView{}
	return v.Render(s, ViewProps{
		Width:   width,
		Height:  height,
		ScrollY: scrollY,
	})
}

func RenderRoutes(s state.AppState, width, height int) string {
	v := GroupsView{Title: "Route Latency", SectionID: output.SectionRoutes}
	return v.Render(s, ViewProps{Width: width, Height: height})
}

func RenderQueries(s state.AppState, width, height int) string {
	v := GroupsView{Title: "Query Latency", SectionID: output.SectionQueries}
	return v.Render(s, ViewProps{Width: width, Height: height})
}

func RenderTrend(s state.AppState, chartView string, width, height int) string {
	v := TrendView{}
	return v.Render(s, ViewProps{
		Width:     width,
		Height:    height,
		ChartView: chartView,
	})
}
