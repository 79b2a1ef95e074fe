package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SaveRun inserts or replaces a finished run
func (db *DB) SaveRun(ctx context.Context, r *Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (
			id, session_id, activity_type, route_id, start_time, end_time,
			distance, step_count, avg_speed, max_speed, calories,
			total_time_ms, active_time_ms, point_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			end_time = excluded.end_time,
			distance = excluded.distance,
			step_count = excluded.step_count,
			avg_speed = excluded.avg_speed,
			max_speed = excluded.max_speed,
			calories = excluded.calories,
			total_time_ms = excluded.total_time_ms,
			active_time_ms = excluded.active_time_ms,
			point_count = excluded.point_count
	`,
		r.ID, nullString(r.SessionID), r.ActivityType, nullString(r.RouteID),
		r.StartTime.UnixMilli(), r.EndTime.UnixMilli(),
		r.Distance, r.StepCount, r.AvgSpeed, r.MaxSpeed, r.Calories,
		r.TotalTime.Milliseconds(), r.ActiveTime.Milliseconds(), r.PointCount,
	)
	return err
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, session_id, activity_type, route_id, start_time, end_time,
			distance, step_count, avg_speed, max_speed, calories,
			total_time_ms, active_time_ms, point_count
		FROM runs
		WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// ListRuns returns runs ordered by start time descending
func (db *DB) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, activity_type, route_id, start_time, end_time,
			distance, step_count, avg_speed, max_speed, calories,
			total_time_ms, active_time_ms, point_count
		FROM runs
		ORDER BY start_time DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}

	return runs, rows.Err()
}

// CountRuns returns the total number of finished runs
func (db *DB) CountRuns(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single run from a row
func scanRun(row scanner) (*Run, error) {
	var r Run
	var sessionID, routeID sql.NullString
	var start, end, totalMs, activeMs int64

	err := row.Scan(
		&r.ID, &sessionID, &r.ActivityType, &routeID, &start, &end,
		&r.Distance, &r.StepCount, &r.AvgSpeed, &r.MaxSpeed, &r.Calories,
		&totalMs, &activeMs, &r.PointCount,
	)
	if err != nil {
		return nil, err
	}

	r.SessionID = sessionID.String
	r.RouteID = routeID.String
	r.StartTime = time.UnixMilli(start)
	r.EndTime = time.UnixMilli(end)
	r.TotalTime = time.Duration(totalMs) * time.Millisecond
	r.ActiveTime = time.Duration(activeMs) * time.Millisecond

	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
