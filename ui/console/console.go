package console

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"pulsecheck/internal/output"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

const labelWidth = 40

// Print renders the dashboard view to the writer in a compact format.
func Print(w io.Writer, view output.DashboardView) {
	title := "PULSECHECK REPORT"
	if view.PeriodType != "" {
		title += fmt.Sprintf(" · %s %s (%s)", view.PeriodType,
			view.PeriodStart.UTC().Format(time.RFC3339), humanize.Time(view.PeriodStart))
	}
	fmt.Fprintf(w, "%s■ %s%s\n", colorCyan, title, colorReset)

	for _, sec := range view.Sections {
		if len(sec.Items) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s─ %s%s\n", colorCyan, sec.Title, colorReset)

		for _, it := range sec.Items {
			label := truncate(it.Label, labelWidth)
			dots := strings.Repeat("·", labelWidth+2-len([]rune(label)))

			errStr := ""
			if it.HasStatus {
				errStr = fmt.Sprintf(" err %s%%", humanize.FormatFloat("#.#", it.ErrorRate))
			}
			fmt.Fprintf(w, "  %s%s%s%s %8s req  avg %8sms  p95 %8sms%s%s\n",
				label, colorCyan, dots, colorReset,
				humanize.Comma(it.Count),
				humanize.FormatFloat("#,###.#", it.Avg),
				humanize.FormatFloat("#,###.#", it.P95),
				errStr, statusMarker(it.Status))
			if it.Note != "" && it.Status != "healthy" {
				fmt.Fprintf(w, "    %s%s%s\n", colorFor(it.Status), it.Note, colorReset)
			}
		}
	}

	// Single-line Summary
	counts := view.CountByStatus()
	fmt.Fprintf(w, "%s─ Summary%s: %s requests | worst: %s | slow: %d very slow: %d critical: %d\n\n",
		colorCyan, colorReset, humanize.Comma(view.TotalCount), view.Worst,
		counts["slow"], counts["very_slow"], counts["critical"])
}

func statusMarker(status string) string {
	color := colorFor(status)
	switch status {
	case "healthy":
		return fmt.Sprintf(" %s✓%s", color, colorReset)
	case "slow":
		return fmt.Sprintf(" %s!%s", color, colorReset)
	case "very_slow":
		return fmt.Sprintf(" %s!!%s", color, colorReset)
	case "critical":
		return fmt.Sprintf(" %sX%s", color, colorReset)
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func colorFor(status string) string {
	switch status {
	case "slow", "very_slow":
		return colorYellow
	case "critical":
		return colorRed
	default:
		return colorGreen
	}
}
