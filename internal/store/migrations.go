package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Durable key-value state (tracking flags, pause markers, result snapshot)
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Finished runs, one row per stopped session
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			activity_type TEXT NOT NULL,
			route_id TEXT,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			distance REAL NOT NULL,
			step_count INTEGER NOT NULL,
			avg_speed REAL NOT NULL,
			max_speed REAL NOT NULL,
			calories REAL NOT NULL,
			total_time_ms INTEGER NOT NULL,
			active_time_ms INTEGER NOT NULL,
			point_count INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_start_time ON runs(start_time)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
