package views

import (
	"fmt"
	"strings"

	"pulsecheck/internal/output"
	"pulsecheck/ui/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

// RenderSection renders the items of a section as aligned rows, at most limit rows (0 = all).
func RenderSection(sec *output.Section, limit int) string {
	if sec == nil || len(sec.Items) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Subtle).Render("no data")
	}
	items := sec.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	var b strings.Builder
	for _, it := range items {
		label := []rune(it.Label)
		if len(label) > 32 {
			label = append(label[:29], []rune("...")...)
		}
		row := fmt.Sprintf("%-32s %7d  avg %8.1fms  p95 %8.1fms", string(label), it.Count, it.Avg, it.P95)
		if it.HasStatus {
			row += fmt.Sprintf("  err %5.1f%%", it.ErrorRate)
		}
		if it.Status != "" {
			row += " " + ColorForStatus(it.Status).Render("["+it.Status+"]")
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func ColorForStatus(status string) lipgloss.Style {
	return styles.StatusStyle.Foreground(styles.StatusColor(status))
}
