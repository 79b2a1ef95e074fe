package store

import "time"

// Run is the summary of one finished tracking session
type Run struct {
	ID           string        `db:"id"`
	SessionID    string        `db:"session_id"` // remote id, empty if never synced
	ActivityType string        `db:"activity_type"`
	RouteID      string        `db:"route_id"`
	StartTime    time.Time     `db:"start_time"`
	EndTime      time.Time     `db:"end_time"`
	Distance     float64       `db:"distance"` // meters
	StepCount    int           `db:"step_count"`
	AvgSpeed     float64       `db:"avg_speed"` // m/s
	MaxSpeed     float64       `db:"max_speed"` // m/s
	Calories     float64       `db:"calories"`  // kcal
	TotalTime    time.Duration `db:"total_time_ms"`
	ActiveTime   time.Duration `db:"active_time_ms"`
	PointCount   int           `db:"point_count"`
}
