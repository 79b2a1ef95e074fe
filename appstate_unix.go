//go:build unix

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"activity-tracker/internal/tracking"
)

// watchAppState treats job-control suspension as the app going to the
// background: Ctrl+Z marks the session backgrounded before the process
// stops, and fg/bg marks it active again.
func watchAppState(ctx context.Context, tracker *tracking.Tracker, logger *slog.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTSTP, syscall.SIGCONT)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				switch sig {
				case syscall.SIGTSTP:
					tracker.AppStateChanged(tracking.AppBackground)
					logger.Info("suspended, session continues in background")
					// Notify replaced the default stop action
					if err := syscall.Kill(os.Getpid(), syscall.SIGSTOP); err != nil {
						logger.Warn("suspending process failed", "error", err)
					}
				case syscall.SIGCONT:
					tracker.AppStateChanged(tracking.AppActive)
					logger.Info("resumed in foreground")
				}
			}
		}
	}()
}
