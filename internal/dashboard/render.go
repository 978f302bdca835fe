package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kanbandash/internal/kanban"
)

const columnWidth = 28

var columnColors = map[string]lipgloss.Color{
	"bg-blue-500":   lipgloss.Color("#3B82F6"),
	"bg-amber-500":  lipgloss.Color("#F59E0B"),
	"bg-green-500":  lipgloss.Color("#22C55E"),
	"bg-purple-500": lipgloss.Color("#A855F7"),
	"bg-red-500":    lipgloss.Color("#EF4444"),
}

var priorityColors = map[kanban.Priority]lipgloss.Color{
	kanban.PriorityHigh:   lipgloss.Color("#EF4444"),
	kanban.PriorityMedium: lipgloss.Color("#F59E0B"),
	kanban.PriorityLow:    lipgloss.Color("#22C55E"),
}

var (
	mutedColor = lipgloss.Color("#6B7280")
	titleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// Render draws the board as side by side columns.
func Render(v BoardView) string {
	if v.Err != nil && len(v.Columns) == 0 {
		return mutedStyle.Render("Failed to load board: " + v.Err.Error())
	}
	if len(v.Columns) == 0 {
		if v.Loading {
			return mutedStyle.Render("Loading board...")
		}
		return mutedStyle.Render("No columns")
	}

	cols := make([]string, 0, len(v.Columns))
	for _, c := range v.Columns {
		cols = append(cols, renderColumn(c))
	}
	out := titleStyle.Render(v.Title) + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	if v.Submitting {
		out += "\n" + mutedStyle.Render("Saving...")
	}
	return out
}

func renderColumn(c ColumnView) string {
	color, ok := columnColors[c.Color]
	if !ok {
		color = mutedColor
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(color).
		Render(fmt.Sprintf("● %s (%d)", c.Title, c.Count))

	lines := []string{header}
	if c.Creating {
		lines = append(lines, mutedStyle.Render("+ new task..."))
	}
	if len(c.Tasks) == 0 {
		lines = append(lines, mutedStyle.Render("No tasks"))
	}
	for _, t := range c.Tasks {
		lines = append(lines, renderTask(t))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(columnWidth).
		Render(strings.Join(lines, "\n"))
}

func renderTask(t TaskView) string {
	badge := lipgloss.NewStyle().Foreground(priorityColors[t.Priority]).Render(string(t.Priority))
	line := t.Title + " " + badge
	if t.DueLabel != "" {
		line += " " + mutedStyle.Render(t.DueLabel)
	}
	if t.Pending {
		line = mutedStyle.Render("… ") + line
	}
	return line
}
