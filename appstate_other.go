//go:build !unix

package main

import (
	"context"
	"log/slog"

	"activity-tracker/internal/tracking"
)

// watchAppState is a no-op where there is no job control; the app stays
// in the foreground for the whole session.
func watchAppState(context.Context, *tracking.Tracker, *slog.Logger) {}
