package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderInspector shows the full detail, including chroma-highlighted JSON
// of the command document, for the currently selected event.
func (m Model) renderInspector() string {
	innerWidth := max(m.width-4, 20)
	ev := m.cursorEvent()
	if ev == nil {
		return ""
	}

	var lines []string
	lines = append(lines, "Command:   "+ev.Command)
	lines = append(lines, "Namespace: "+ev.Namespace)
	lines = append(lines, "Duration:  "+formatDuration(ev.Duration))
	lines = append(lines, "Time:      "+formatTime(ev.StartTime))
	if ev.Error != "" {
		lines = append(lines, "Error:     "+ev.Error)
	}
	if ev.Document != nil {
		lines = append(lines, "")
		lines = append(lines, highlightJSON(renderJSON(ev.Document)))
	}

	visible := max(m.height-6, 3)
	start := min(m.inspectScroll, max(len(lines)-1, 0))
	end := min(start+visible, len(lines))

	content := strings.Join(lines[start:end], "\n")

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(lipgloss.Color("240"))

	return strings.Join([]string{
		border.Render(content),
		"  q/esc: back  j/k: scroll  c: copy",
	}, "\n")
}
