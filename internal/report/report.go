// Package report renders finished sessions and run history for the terminal.
package report

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"activity-tracker/internal/analysis"
	"activity-tracker/internal/store"
	"activity-tracker/internal/tracking"
)

const historyRowFormat = "%-16s  %-8s  %9s  %8s  %6s  %6s  %5s"

// Summary renders the result of a stopped session as a card
func Summary(r *tracking.Result) string {
	lines := []string{
		titleStyle.Render("Session complete"),
		RenderMetric("Distance", formatKm(r.Distance), ""),
		RenderMetric("Active", formatDuration(r.Active), "elapsed "+formatDuration(r.Elapsed)),
		RenderMetric("Pace", analysis.FormatPace(analysis.PacePerKm(r.Active, r.Distance))+" /km", ""),
		RenderMetric("Avg speed", fmt.Sprintf("%.2f m/s", r.AvgSpeed), fmt.Sprintf("max %.2f", r.MaxSpeed)),
		RenderMetric("Steps", fmt.Sprintf("%d", r.StepCount), ""),
		RenderMetric("Calories", fmt.Sprintf("%.0f kcal", r.Calories), ""),
	}
	if r.SessionID != "" {
		lines = append(lines, RenderMetric("Session", r.SessionID, ""))
	}

	if len(r.BestEfforts) > 0 {
		lines = append(lines, "", sectionStyle.Render("Best Efforts"))
		for _, e := range r.BestEfforts {
			lines = append(lines, RenderMetric(
				analysis.EffortLabel(e.TargetMeters),
				formatDuration(e.Duration),
				analysis.FormatPace(e.Pace())+" /km"))
		}
	}

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// History renders a page of finished runs out of total
func History(runs []store.Run, total int) string {
	if len(runs) == 0 {
		return statusStyle.Render("No runs recorded yet.")
	}

	sections := []string{
		titleStyle.Render(fmt.Sprintf("Runs (%d of %d)", len(runs), total)),
		tableHeaderStyle.Render(fmt.Sprintf(historyRowFormat,
			"Date", "Type", "Distance", "Active", "Pace", "Steps", "Kcal")),
	}
	for _, r := range runs {
		row := fmt.Sprintf(historyRowFormat,
			r.StartTime.Local().Format("2006-01-02 15:04"),
			r.ActivityType,
			formatKm(r.Distance),
			formatDuration(r.ActiveTime),
			analysis.FormatPace(analysis.PacePerKm(r.ActiveTime, r.Distance)),
			fmt.Sprintf("%d", r.StepCount),
			fmt.Sprintf("%.0f", r.Calories))
		sections = append(sections, tableRowStyle.Render(row))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func formatKm(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/1000)
}

// formatDuration renders h:mm:ss, or m:ss under an hour
func formatDuration(d time.Duration) string {
	s := int(d.Round(time.Second).Seconds())
	if s < 0 {
		s = 0
	}
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
