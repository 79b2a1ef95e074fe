package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"activity-tracker/internal/activityapi"
)

// DefaultSyncInterval is how often counters are pushed to the backend
const DefaultSyncInterval = 5 * time.Second

// RemoteSessions is the backend that owns the permanent session record
type RemoteSessions interface {
	CreateSession(ctx context.Context, req activityapi.CreateSessionRequest) (string, error)
	UpdateSession(ctx context.Context, sessionID string, stats activityapi.SessionStats) error
	GetSession(ctx context.Context, sessionID string) (*activityapi.Session, error)
	AppendLocations(ctx context.Context, sessionID string, points []activityapi.LocationPoint) error
	GetLocations(ctx context.Context, sessionID string) ([]activityapi.RecordedLocation, error)
}

// Syncer pushes session counters to the backend. At most one pass runs at
// a time; failures are logged and left for the next pass.
type Syncer struct {
	remote       RemoteSessions
	recovery     *RecoveryManager
	clock        Clock
	activityType string
	routeID      string
	logger       *slog.Logger
	inFlight     chan struct{}
}

// NewSyncer creates a syncer. A nil remote makes every pass a no-op.
func NewSyncer(remote RemoteSessions, recovery *RecoveryManager, clock Clock, activityType, routeID string, logger *slog.Logger) *Syncer {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		remote:       remote,
		recovery:     recovery,
		clock:        clock,
		activityType: activityType,
		routeID:      routeID,
		logger:       logger,
		inFlight:     make(chan struct{}, 1),
	}
}

// Sync runs one pass: create the remote session if it has no id yet,
// otherwise update its counters and append points not uploaded before.
// Returns ErrSyncInFlight without doing anything if a pass is running.
func (s *Syncer) Sync(ctx context.Context, sess *Session) error {
	select {
	case s.inFlight <- struct{}{}:
	default:
		return ErrSyncInFlight
	}
	defer func() { <-s.inFlight }()

	return s.push(ctx, sess, s.clock.Now(), nil)
}

// Flush waits for any running pass, then pushes the final state with its
// end time. Without a remote id the session is created first.
func (s *Syncer) Flush(ctx context.Context, sess *Session, end time.Time) error {
	select {
	case s.inFlight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.inFlight }()

	if s.remote == nil {
		return nil
	}
	created := sess.ID() == ""
	if err := s.push(ctx, sess, end, &end); err != nil {
		return err
	}
	// a fresh create leaves its points for an update pass
	if created && len(sess.syncPayload(end).pending) > 0 {
		return s.push(ctx, sess, end, &end)
	}
	return nil
}

func (s *Syncer) push(ctx context.Context, sess *Session, now time.Time, end *time.Time) error {
	if s.remote == nil {
		return nil
	}

	p := sess.syncPayload(now)
	p.stats.EndTime = end

	if p.id == "" {
		return s.create(ctx, sess, p)
	}

	if err := s.remote.UpdateSession(ctx, p.id, p.stats); err != nil {
		s.logger.Warn("session update failed", "session_id", p.id, "error", err)
		return fmt.Errorf("updating session %s: %w", p.id, err)
	}

	if len(p.pending) == 0 {
		return nil
	}
	if err := s.remote.AppendLocations(ctx, p.id, p.pending); err != nil {
		s.logger.Warn("location upload failed", "session_id", p.id, "points", len(p.pending), "error", err)
		return fmt.Errorf("appending locations to %s: %w", p.id, err)
	}
	sess.markUploaded(p.newest)
	s.logger.Debug("synced session", "session_id", p.id, "points", len(p.pending))
	return nil
}

func (s *Syncer) create(ctx context.Context, sess *Session, p syncPayload) error {
	id, err := s.remote.CreateSession(ctx, activityapi.CreateSessionRequest{
		Type:         s.activityType,
		RouteID:      s.routeID,
		SessionStats: p.stats,
	})
	if err != nil {
		s.logger.Warn("session create failed", "error", err)
		return fmt.Errorf("creating session: %w", err)
	}
	if id == "" {
		s.logger.Warn("session create returned no id")
		return fmt.Errorf("creating session: empty session id")
	}

	sess.setID(id)
	if s.recovery != nil {
		if err := s.recovery.SaveSessionID(ctx, id); err != nil {
			s.logger.Warn("saving session id failed", "session_id", id, "error", err)
		}
	}
	s.logger.Info("created remote session", "session_id", id)
	return nil
}
