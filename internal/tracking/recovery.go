package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Durable keys owned by the tracker
const (
	KeyTrackingActive = "activity_tracking_active"
	KeySessionID      = "activity_session_id"
	KeyStartTime      = "activity_start_time"
	KeyIsPaused       = "activity_is_paused"
	KeyPauseStart     = "activity_pause_start"
	KeyTotalPause     = "activity_total_pause"
	KeyAppPauseTime   = "app_pause_time"
	KeyLastAppState   = "last_app_state"
)

// DefaultStalenessWindow is the longest gap since the app was last seen
// after which an interrupted session is still resumed
const DefaultStalenessWindow = 30 * time.Second

var sessionKeys = []string{
	KeyTrackingActive, KeySessionID, KeyStartTime, KeyIsPaused,
	KeyPauseStart, KeyTotalPause, KeyAppPauseTime, KeyLastAppState,
}

// KeyValueStore is the durable local string store
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	MultiGet(ctx context.Context, keys ...string) (map[string]string, error)
	MultiSet(ctx context.Context, pairs map[string]string) error
	MultiRemove(ctx context.Context, keys ...string) error
}

// Checkpoint is the persisted state of an interrupted session that is
// fresh enough to resume
type Checkpoint struct {
	SessionID       string
	StartTime       time.Time
	Paused          bool
	PauseStart      time.Time
	TotalPause      time.Duration
	BackgroundSince time.Time // zero if the app was foregrounded when it died
	LastSeen        time.Time
}

// PausedFor reconstructs accumulated pause time as of now. A pause in flight
// at kill time runs from its start; otherwise time spent in the background
// counts as paused.
func (c *Checkpoint) PausedFor(now time.Time) time.Duration {
	total := c.TotalPause
	switch {
	case c.Paused && !c.PauseStart.IsZero():
		total += max(now.Sub(c.PauseStart), 0)
	case !c.BackgroundSince.IsZero():
		total += max(now.Sub(c.BackgroundSince), 0)
	}
	return total
}

// RecoveryManager persists liveness markers so a killed session can be
// resumed on the next launch
type RecoveryManager struct {
	kv     KeyValueStore
	window time.Duration
	logger *slog.Logger
}

// NewRecoveryManager creates a manager. window <= 0 uses DefaultStalenessWindow.
func NewRecoveryManager(kv KeyValueStore, window time.Duration, logger *slog.Logger) *RecoveryManager {
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryManager{kv: kv, window: window, logger: logger}
}

// MarkStarted records a fresh session and clears stale pause markers
func (m *RecoveryManager) MarkStarted(ctx context.Context, start time.Time, sessionID string) error {
	if err := m.kv.MultiRemove(ctx, KeySessionID, KeyIsPaused, KeyPauseStart, KeyTotalPause, KeyAppPauseTime); err != nil {
		return fmt.Errorf("clearing session markers: %w", err)
	}
	pairs := map[string]string{
		KeyTrackingActive: "true",
		KeyStartTime:      formatMillis(start),
		KeyLastAppState:   formatMillis(start),
	}
	if sessionID != "" {
		pairs[KeySessionID] = sessionID
	}
	if err := m.kv.MultiSet(ctx, pairs); err != nil {
		return fmt.Errorf("saving session markers: %w", err)
	}
	return nil
}

// MarkPaused persists an open pause
func (m *RecoveryManager) MarkPaused(ctx context.Context, at time.Time) error {
	return m.kv.MultiSet(ctx, map[string]string{
		KeyIsPaused:   "true",
		KeyPauseStart: formatMillis(at),
	})
}

// MarkResumed clears the open pause and stores the new pause total
func (m *RecoveryManager) MarkResumed(ctx context.Context, totalPause time.Duration) error {
	if err := m.kv.MultiRemove(ctx, KeyIsPaused, KeyPauseStart); err != nil {
		return err
	}
	return m.kv.Set(ctx, KeyTotalPause, strconv.FormatInt(totalPause.Milliseconds(), 10))
}

// MarkRecovered rewrites markers after a successful resume so a second
// interruption starts from the reconstructed totals
func (m *RecoveryManager) MarkRecovered(ctx context.Context, now time.Time, totalPause time.Duration) error {
	if err := m.kv.Remove(ctx, KeyAppPauseTime); err != nil {
		return err
	}
	return m.kv.MultiSet(ctx, map[string]string{
		KeyTotalPause:   strconv.FormatInt(totalPause.Milliseconds(), 10),
		KeyLastAppState: formatMillis(now),
	})
}

// MarkStopped clears every session marker
func (m *RecoveryManager) MarkStopped(ctx context.Context) error {
	return m.kv.MultiRemove(ctx, sessionKeys...)
}

// MarkBackground records when the app left the foreground
func (m *RecoveryManager) MarkBackground(ctx context.Context, at time.Time) error {
	ms := formatMillis(at)
	return m.kv.MultiSet(ctx, map[string]string{
		KeyAppPauseTime: ms,
		KeyLastAppState: ms,
	})
}

// MarkForeground records the app returning to the foreground
func (m *RecoveryManager) MarkForeground(ctx context.Context, at time.Time) error {
	if err := m.kv.Remove(ctx, KeyAppPauseTime); err != nil {
		return err
	}
	return m.Heartbeat(ctx, at)
}

// Heartbeat refreshes the last-seen timestamp
func (m *RecoveryManager) Heartbeat(ctx context.Context, at time.Time) error {
	return m.kv.Set(ctx, KeyLastAppState, formatMillis(at))
}

// SaveSessionID persists the remote id once the backend assigns it
func (m *RecoveryManager) SaveSessionID(ctx context.Context, id string) error {
	return m.kv.Set(ctx, KeySessionID, id)
}

// Inspect decides on launch whether an interrupted session can be resumed.
// It returns nil when there is nothing to resume; a stale session has its
// markers cleared.
func (m *RecoveryManager) Inspect(ctx context.Context, now time.Time) (*Checkpoint, error) {
	vals, err := m.kv.MultiGet(ctx, sessionKeys...)
	if err != nil {
		return nil, fmt.Errorf("reading session markers: %w", err)
	}
	if vals[KeyTrackingActive] != "true" {
		return nil, nil
	}

	lastSeen, ok := parseMillis(vals[KeyLastAppState])
	if !ok || now.Sub(lastSeen) > m.window {
		m.logger.Info("discarding stale session",
			"session_id", vals[KeySessionID],
			"last_seen", vals[KeyLastAppState])
		if err := m.MarkStopped(ctx); err != nil {
			return nil, fmt.Errorf("clearing stale session: %w", err)
		}
		return nil, nil
	}

	cp := &Checkpoint{
		SessionID: vals[KeySessionID],
		Paused:    vals[KeyIsPaused] == "true",
		LastSeen:  lastSeen,
	}
	cp.StartTime, _ = parseMillis(vals[KeyStartTime])
	cp.PauseStart, _ = parseMillis(vals[KeyPauseStart])
	cp.BackgroundSince, _ = parseMillis(vals[KeyAppPauseTime])
	if ms, err := strconv.ParseInt(vals[KeyTotalPause], 10, 64); err == nil && ms > 0 {
		cp.TotalPause = time.Duration(ms) * time.Millisecond
	}
	return cp, nil
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
