package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/preview"
)

var (
	accent = lipgloss.Color("#8BC34A")
	muted  = lipgloss.Color("#8a94a6")
	danger = lipgloss.Color("#e53935")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dayStyle     = lipgloss.NewStyle().Bold(true).MarginTop(1)
	themeStyle   = lipgloss.NewStyle().Foreground(muted).Italic(true)
	stopStyle    = lipgloss.NewStyle().PaddingLeft(2)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	errorStyle   = lipgloss.NewStyle().Foreground(danger).Bold(true)
	previewStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1)
)

// formatDuration renders minutes as "1h30m", "2h" or "45m".
func formatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

func dayMinutes(day domain.Day) int {
	total := 0
	for _, s := range day.Stops {
		total += s.DurationMinutes
	}
	return total
}

// renderDays lists every day and its stops. withIDs adds the ids the stop
// commands take.
func renderDays(days []domain.Day, withIDs bool) string {
	var b strings.Builder
	for _, day := range days {
		header := fmt.Sprintf("Day %d", day.Number)
		if day.Theme != "" {
			header += "  " + themeStyle.Render(day.Theme)
		}
		header += "  " + mutedStyle.Render(formatDuration(dayMinutes(day)))
		b.WriteString(dayStyle.Render(header))
		b.WriteByte('\n')
		for i, s := range day.Stops {
			line := fmt.Sprintf("%d. %s  %s", i+1, s.Name, mutedStyle.Render(formatDuration(s.DurationMinutes)))
			if withIDs && s.ID != "" {
				line += "  " + mutedStyle.Render("["+s.ID+"]")
			}
			b.WriteString(stopStyle.Render(line))
			b.WriteByte('\n')
			if s.Description != "" {
				b.WriteString(stopStyle.Render("   " + mutedStyle.Render(s.Description)))
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func renderItinerary(it domain.Itinerary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(it.Title))
	b.WriteByte('\n')
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s · version %d", it.ID, it.Version)))
	b.WriteByte('\n')
	b.WriteString(renderDays(it.Days, true))
	return b.String()
}

// renderSnapshot is one live-preview frame of a generation in progress.
func renderSnapshot(s preview.Snapshot) string {
	stops := countStops(s.Days)
	title := s.Title
	if title == "" {
		title = "…"
	}
	body := titleStyle.Render(title) + "\n" +
		mutedStyle.Render(fmt.Sprintf("%d days · %d stops so far", len(s.Days), stops))
	return previewStyle.Render(body)
}
