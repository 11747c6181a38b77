package tasklist

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// columns groups tasks by status in board order, keeping the incoming
// order inside each column.
func columns(tasks []model.Task) [][]model.Task {
	cols := make([][]model.Task, len(model.Statuses))
	for _, t := range tasks {
		cols[columnOf(t.Status)] = append(cols[columnOf(t.Status)], t)
	}
	return cols
}

func columnOf(s model.Status) int {
	for i, st := range model.Statuses {
		if st == s {
			return i
		}
	}
	return 0
}

// renderCard renders one task line inside a column of the given width.
func renderCard(t model.Task, width int, selected bool) string {
	title := truncate(t.Title, width-4)
	line := title
	if a := t.Assignee(); a != "" {
		line += "\n" + lipgloss.NewStyle().Foreground(theme.ColorGray).Render(truncate("@ "+a, width-4))
	}

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// truncate shortens s to at most n cells, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 1 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > n-1 {
		r = r[:len(r)-1]
	}
	return strings.TrimSpace(string(r)) + "…"
}
