package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column widths.
const (
	colMarker   = 2
	colOp       = 16
	colDuration = 10
	colTime     = 12
)

func (m Model) renderList(maxRows int) string {
	innerWidth := max(m.width-4, 20)
	colNS := max(innerWidth-colMarker-colOp-colDuration-colTime-4, 10)

	title := fmt.Sprintf(" mongofront (%d commands) ", len(m.seen))

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth)

	dataRows := max(maxRows-1, 1) // -1 for header row

	start := 0
	if len(m.seen) > dataRows {
		start = max(m.cursor-dataRows/2, 0)
		if start+dataRows > len(m.seen) {
			start = len(m.seen) - dataRows
		}
	}
	end := min(start+dataRows, len(m.seen))

	header := fmt.Sprintf("  %-*s %-*s %*s %*s",
		colOp, "Command",
		colNS, "Namespace",
		colDuration, "Duration",
		colTime, "Time",
	)

	var rows []string
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(header))
	for i := start; i < end; i++ {
		rows = append(rows, m.renderEventRow(i, i == m.cursor, colNS))
	}

	borderColor := lipgloss.Color("240")
	border = border.BorderForeground(borderColor)
	content := strings.Join(rows, "\n")

	box := border.Render(content)
	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		lines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
		box = strings.Join(lines, "\n")
	}

	return box
}

func (m Model) renderEventRow(idx int, isCursor bool, colNS int) string {
	ev := m.seen[idx]
	marker := "  "
	if isCursor {
		marker = "▶ "
	}

	cmd := ev.Command
	if cmd == "" {
		cmd = ev.OpCode
	}
	ns := truncate(ev.Namespace, colNS)
	dur := formatDuration(ev.Duration)
	t := formatTime(ev.StartTime)

	status := ""
	if ev.Error != "" {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(" E")
	}

	row := fmt.Sprintf("%s%-*s %-*s %*s %*s",
		marker,
		colOp, cmd,
		colNS, ns,
		colDuration, dur,
		colTime, t,
	) + status
	if isCursor {
		row = lipgloss.NewStyle().Bold(true).Render(row)
	}
	return row
}
