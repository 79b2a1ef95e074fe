package tracking

import "log/slog"

// EventKind identifies what an Event reports
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventCountdown
	EventTick
)

// Event is published to the Observer. Countdown carries the remaining
// count for EventCountdown; Snapshot is set for EventTick.
type Event struct {
	Kind      EventKind
	State     State
	Countdown int
	Snapshot  Snapshot
}

// Observer receives events from tracker goroutines. It must not block or
// call back into the tracker.
type Observer func(Event)

// Notifier shows and hides the ongoing-activity notification
type Notifier interface {
	Start(activityType string)
	Stop()
}

// LogNotifier reports notification changes to a logger, for headless runs
type LogNotifier struct {
	Logger *slog.Logger
}

// Start logs that an activity of the given type is in progress
func (n LogNotifier) Start(activityType string) {
	n.logger().Info("activity in progress", "type", activityType)
}

// Stop logs that the activity has finished
func (n LogNotifier) Stop() {
	n.logger().Info("activity finished")
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}
