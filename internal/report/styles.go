package report

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	textColor      = lipgloss.Color("#F9FAFB") // Light gray
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 2)

	metricLabelStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Width(14)

	metricValueStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(textColor)

	metricNoteStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(primaryColor).
				Padding(0, 1)

	tableRowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// RenderMetric renders a label, a value and an optional muted note on one line
func RenderMetric(label, value, note string) string {
	parts := []string{metricLabelStyle.Render(label), metricValueStyle.Render(value)}
	if note != "" {
		parts = append(parts, metricNoteStyle.Render(" "+note))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}
