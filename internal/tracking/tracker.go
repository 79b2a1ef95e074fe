// Package tracking is the run/walk tracking engine: it fuses location and
// motion streams into session counters, keeps a pause-aware clock, syncs
// progress to the backend and resumes sessions interrupted by process death.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"activity-tracker/internal/activityapi"
	"activity-tracker/internal/analysis"
	"activity-tracker/internal/sensor"
)

// State of the control surface
type State int

const (
	StateIdle State = iota
	StateArming
	StateTracking
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArming:
		return "arming"
	case StateTracking:
		return "tracking"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// started reports whether a session is live in this state
func (s State) started() bool {
	return s == StateTracking || s == StatePaused
}

// AppState is the host application's lifecycle state
type AppState int

const (
	AppActive AppState = iota
	AppInactive
	AppBackground
)

// Defaults
const (
	DefaultTickInterval   = 100 * time.Millisecond
	DefaultCountdownSteps = 3
	DefaultCountdownStep  = time.Second
)

// Options tunes a Tracker
type Options struct {
	ActivityType      string
	RouteID           string
	SyncInterval      time.Duration
	TickInterval      time.Duration
	CountdownSteps    int
	CountdownStep     time.Duration
	StalenessWindow   time.Duration
	MaxPlausibleSpeed float64 // m/s, 0 disables the guard

	Clock    Clock
	Logger   *slog.Logger
	Notifier Notifier
	Results  ResultSink
	Observer Observer
}

// DefaultOptions returns the standard running configuration
func DefaultOptions() Options {
	return Options{
		ActivityType:    "running",
		SyncInterval:    DefaultSyncInterval,
		TickInterval:    DefaultTickInterval,
		CountdownSteps:  DefaultCountdownSteps,
		CountdownStep:   DefaultCountdownStep,
		StalenessWindow: DefaultStalenessWindow,
	}
}

// Deps are the collaborators a Tracker drives. Permission, Motion and
// Remote are optional.
type Deps struct {
	Location   sensor.LocationSource
	Motion     sensor.AccelerometerSource
	Permission sensor.PermissionRequester
	Store      KeyValueStore
	Remote     RemoteSessions
}

// Tracker is the control surface over one tracking session at a time
type Tracker struct {
	deps     Deps
	opts     Options
	clock    Clock
	logger   *slog.Logger
	recovery *RecoveryManager
	syncer   *Syncer

	// pauseMu orders pause toggles with their persisted markers
	pauseMu sync.Mutex

	mu          sync.Mutex
	state       State
	stopping    bool // StopTracking is still writing storage
	appState    AppState
	permitted   bool
	session     *Session
	locationSub sensor.Subscription
	motionSub   sensor.Subscription
	cancelLoops context.CancelFunc
	loops       sync.WaitGroup
}

// New creates an idle tracker
func New(deps Deps, opts Options) *Tracker {
	defaults := DefaultOptions()
	if opts.ActivityType == "" {
		opts.ActivityType = defaults.ActivityType
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaults.SyncInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaults.TickInterval
	}
	if opts.CountdownSteps < 0 {
		opts.CountdownSteps = 0
	}
	if opts.CountdownStep <= 0 {
		opts.CountdownStep = defaults.CountdownStep
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	recovery := NewRecoveryManager(deps.Store, opts.StalenessWindow, opts.Logger)
	return &Tracker{
		deps:     deps,
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger,
		recovery: recovery,
		syncer:   NewSyncer(deps.Remote, recovery, opts.Clock, opts.ActivityType, opts.RouteID, opts.Logger),
	}
}

// State returns the current state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// EnsurePermission asks for location permission once per tracker
func (t *Tracker) EnsurePermission(ctx context.Context) error {
	t.mu.Lock()
	permitted := t.permitted
	t.mu.Unlock()
	if permitted || t.deps.Permission == nil {
		return nil
	}

	ok, err := t.deps.Permission.RequestLocationPermission(ctx)
	if err != nil {
		return fmt.Errorf("requesting location permission: %w", err)
	}
	if !ok {
		return ErrPermissionDenied
	}

	t.mu.Lock()
	t.permitted = true
	t.mu.Unlock()
	return nil
}

// StartTracking requests permission, runs the countdown and begins a fresh
// session. It blocks until tracking has started. Cancelling ctx during the
// countdown returns the tracker to Idle.
func (t *Tracker) StartTracking(ctx context.Context) error {
	if err := t.checkIdle("start"); err != nil {
		return err
	}
	if err := t.EnsurePermission(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	if err := t.checkIdleLocked("start"); err != nil {
		t.mu.Unlock()
		return err
	}
	t.state = StateArming
	t.mu.Unlock()
	t.emit(Event{Kind: EventStateChanged, State: StateArming})

	for remaining := t.opts.CountdownSteps; remaining > 0; remaining-- {
		t.emit(Event{Kind: EventCountdown, State: StateArming, Countdown: remaining})
		timer := time.NewTimer(t.opts.CountdownStep)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.setState(StateIdle)
			return ctx.Err()
		case <-timer.C:
		}
	}

	now := t.clock.Now()
	sess := NewSession(now, t.opts.MaxPlausibleSpeed)
	if err := t.arm(sess); err != nil {
		t.setState(StateIdle)
		return err
	}

	if err := t.recovery.MarkStarted(ctx, now, ""); err != nil {
		t.logger.Warn("persisting session start failed", "error", err)
	}
	t.activate(sess, StateTracking)
	t.logger.Info("tracking started", "type", t.opts.ActivityType, "start", now)
	return nil
}

// checkIdle fails unless a new session may begin: nothing is armed or live
// and no earlier stop is still writing its final state.
func (t *Tracker) checkIdle(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkIdleLocked(op)
}

func (t *Tracker) checkIdleLocked(op string) error {
	switch {
	case t.stopping:
		return fmt.Errorf("%s while stopping: %w", op, ErrInvalidTransition)
	case t.state == StateArming || t.state.started():
		return fmt.Errorf("%s from %s: %w", op, t.state, ErrInvalidTransition)
	}
	return nil
}

// arm subscribes both sensor streams for sess. A missing accelerometer is
// not fatal; steps stay at zero.
func (t *Tracker) arm(sess *Session) error {
	locationSub, err := t.deps.Location.WatchPosition(sensor.DefaultLocationOptions(), func(f sensor.Fix) {
		sess.AddFix(f)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	var motionSub sensor.Subscription
	if t.deps.Motion != nil {
		motionSub, err = t.deps.Motion.Watch(sensor.DefaultMotionInterval, func(s sensor.Sample) {
			sess.AddSample(s, t.clock.Now())
		})
		switch {
		case errors.Is(err, sensor.ErrUnavailable):
			t.logger.Warn("accelerometer unavailable, steps will not be counted")
		case err != nil:
			t.logger.Warn("accelerometer watch failed", "error", err)
		}
	}

	t.mu.Lock()
	t.locationSub = locationSub
	t.motionSub = motionSub
	t.mu.Unlock()
	return nil
}

// activate publishes sess as the live session and starts the timers
func (t *Tracker) activate(sess *Session, state State) {
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.session = sess
	t.state = state
	t.cancelLoops = cancel
	t.loops.Add(2)
	go t.tickLoop(ctx, sess)
	go t.syncLoop(ctx, sess)
	t.mu.Unlock()

	if t.opts.Notifier != nil {
		t.opts.Notifier.Start(t.opts.ActivityType)
	}
	t.emit(Event{Kind: EventStateChanged, State: state})
}

// HandlePause toggles between Tracking and Paused
func (t *Tracker) HandlePause() error {
	t.pauseMu.Lock()
	defer t.pauseMu.Unlock()

	t.mu.Lock()
	sess, state := t.session, t.state
	if !state.started() {
		t.mu.Unlock()
		return fmt.Errorf("pause from %s: %w", state, ErrInvalidTransition)
	}

	now := t.clock.Now()
	var persist func(context.Context) error
	if state == StateTracking {
		sess.Pause(now)
		t.state = StatePaused
		persist = func(ctx context.Context) error { return t.recovery.MarkPaused(ctx, now) }
	} else {
		total := sess.Resume(now)
		t.state = StateTracking
		persist = func(ctx context.Context) error { return t.recovery.MarkResumed(ctx, total) }
	}
	next := t.state
	t.mu.Unlock()

	if err := persist(context.Background()); err != nil {
		t.logger.Warn("persisting pause state failed", "state", next, "error", err)
	}
	t.emit(Event{Kind: EventStateChanged, State: next})
	return nil
}

// StopTracking ends the session: sensors and timers are torn down before
// the final state is flushed, saved and returned. Persisted markers are
// cleared so the session is never recovered.
func (t *Tracker) StopTracking(ctx context.Context) (*Result, error) {
	// waits out a pause toggle that is still persisting
	t.pauseMu.Lock()
	t.mu.Lock()
	if !t.state.started() {
		st := t.state
		t.mu.Unlock()
		t.pauseMu.Unlock()
		return nil, fmt.Errorf("stop from %s: %w", st, ErrInvalidTransition)
	}
	sess := t.session
	locationSub, motionSub, cancel := t.locationSub, t.motionSub, t.cancelLoops
	t.session, t.locationSub, t.motionSub, t.cancelLoops = nil, nil, nil, nil
	t.state = StateStopped
	t.stopping = true
	t.mu.Unlock()
	t.pauseMu.Unlock()

	cancel()
	t.loops.Wait()
	if locationSub != nil {
		locationSub.Unsubscribe()
	}
	if motionSub != nil {
		motionSub.Unsubscribe()
	}

	result := sess.close(t.clock.Now())

	if err := t.syncer.Flush(ctx, sess, result.EndTime); err != nil {
		t.logger.Warn("final sync failed", "session_id", sess.ID(), "error", err)
	}
	result.SessionID = sess.ID()

	if err := t.recovery.MarkStopped(ctx); err != nil {
		t.logger.Warn("clearing session markers failed", "error", err)
	}
	if err := t.deps.Store.MultiSet(ctx, resultPairs(result)); err != nil {
		t.logger.Warn("saving final snapshot failed", "error", err)
	}
	if t.opts.Results != nil {
		if err := t.opts.Results.SaveResult(ctx, result); err != nil {
			t.logger.Warn("saving run history failed", "error", err)
		}
	}
	if t.opts.Notifier != nil {
		t.opts.Notifier.Stop()
	}

	t.mu.Lock()
	t.stopping = false
	t.mu.Unlock()

	result.State = StateStopped
	t.emit(Event{Kind: EventStateChanged, State: StateStopped})
	t.logger.Info("tracking stopped",
		"session_id", result.SessionID,
		"distance_m", result.Distance,
		"steps", result.StepCount,
		"active", result.Active)
	return result, nil
}

// Recover resumes a session interrupted by process death if its markers are
// fresh. Counters are restored from the backend's copy; pause time is
// rebuilt from local markers. Returns false when there was nothing to resume.
func (t *Tracker) Recover(ctx context.Context) (bool, error) {
	if err := t.checkIdle("recover"); err != nil {
		return false, err
	}

	now := t.clock.Now()
	cp, err := t.recovery.Inspect(ctx, now)
	if err != nil {
		return false, err
	}
	if cp == nil {
		return false, nil
	}

	start := cp.StartTime
	sess := NewSession(now, t.opts.MaxPlausibleSpeed)
	if cp.SessionID != "" {
		remote, points := t.fetchRemote(ctx, cp.SessionID)
		if remote != nil && !remote.StartTime.IsZero() {
			start = remote.StartTime
		}
		sess.restore(cp.SessionID, remote, points)
	}
	if start.IsZero() {
		start = cp.LastSeen
	}

	state := StateTracking
	totalPause := cp.PausedFor(now)
	if cp.Paused && !cp.PauseStart.IsZero() {
		state = StatePaused
		sess.restoreClock(start, cp.TotalPause, cp.PauseStart)
		totalPause = cp.TotalPause
	} else {
		sess.restoreClock(start, totalPause, time.Time{})
	}

	if err := t.arm(sess); err != nil {
		return false, err
	}
	if err := t.recovery.MarkRecovered(ctx, now, totalPause); err != nil {
		t.logger.Warn("persisting recovered session failed", "error", err)
	}
	t.activate(sess, state)
	t.logger.Info("recovered session",
		"session_id", cp.SessionID,
		"state", state,
		"gap", now.Sub(cp.LastSeen))
	return true, nil
}

// fetchRemote loads the backend copy of a session. Failures are logged and
// yield whatever could be read.
func (t *Tracker) fetchRemote(ctx context.Context, id string) (*activityapi.Session, []TrackedPoint) {
	if t.deps.Remote == nil {
		return nil, nil
	}

	remote, err := t.deps.Remote.GetSession(ctx, id)
	if err != nil {
		t.logger.Warn("fetching session for recovery failed", "session_id", id, "error", err)
		remote = nil
	}

	var points []TrackedPoint
	locations, err := t.deps.Remote.GetLocations(ctx, id)
	switch {
	case err == nil:
		for _, l := range locations {
			points = append(points, TrackedPoint{
				GeoPoint: analysis.GeoPoint{Latitude: l.Lat, Longitude: l.Lng},
				Time:     time.UnixMilli(l.Time),
			})
		}
	case remote != nil:
		t.logger.Warn("fetching locations for recovery failed", "session_id", id, "error", err)
		for _, l := range remote.LocationPoints {
			points = append(points, TrackedPoint{
				GeoPoint: analysis.GeoPoint{Latitude: l.Latitude, Longitude: l.Longitude},
				Time:     time.UnixMilli(l.Time),
			})
		}
	default:
		t.logger.Warn("fetching locations for recovery failed", "session_id", id, "error", err)
	}

	slices.SortStableFunc(points, func(a, b TrackedPoint) int {
		return a.Time.Compare(b.Time)
	})
	return remote, points
}

// AppStateChanged records foreground/background transitions of the host app
func (t *Tracker) AppStateChanged(state AppState) {
	t.mu.Lock()
	t.appState = state
	started := t.state.started()
	t.mu.Unlock()
	if !started {
		return
	}

	ctx := context.Background()
	now := t.clock.Now()
	var err error
	if state == AppActive {
		err = t.recovery.MarkForeground(ctx, now)
	} else {
		err = t.recovery.MarkBackground(ctx, now)
	}
	if err != nil {
		t.logger.Warn("persisting app state failed", "error", err)
	}
}

// Snapshot returns the live counters. Outside a session only State is set.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	state, sess := t.state, t.session
	t.mu.Unlock()

	if sess == nil {
		return Snapshot{State: state}
	}
	snap := sess.Snapshot(t.clock.Now())
	snap.State = state
	return snap
}

// Positions returns the tracked path of the live session
func (t *Tracker) Positions() []TrackedPoint {
	t.mu.Lock()
	sess := t.session
	t.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Positions()
}

// SyncNow runs one sync pass immediately
func (t *Tracker) SyncNow(ctx context.Context) error {
	t.mu.Lock()
	sess := t.session
	t.mu.Unlock()
	if sess == nil {
		return ErrNotTracking
	}
	return t.syncer.Sync(ctx, sess)
}

func (t *Tracker) tickLoop(ctx context.Context, sess *Session) {
	defer t.loops.Done()
	ticker := time.NewTicker(t.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// display is frozen while paused
			if sess.Paused() || t.opts.Observer == nil {
				continue
			}
			snap := sess.Snapshot(t.clock.Now())
			snap.State = t.State()
			t.emit(Event{Kind: EventTick, State: snap.State, Snapshot: snap})
		}
	}
}

func (t *Tracker) syncLoop(ctx context.Context, sess *Session) {
	defer t.loops.Done()
	ticker := time.NewTicker(t.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			foreground := t.appState == AppActive
			t.mu.Unlock()
			if foreground {
				if err := t.recovery.Heartbeat(ctx, t.clock.Now()); err != nil {
					t.logger.Warn("heartbeat failed", "error", err)
				}
			}
			// failures are logged by the syncer and retried next tick
			_ = t.syncer.Sync(ctx, sess)
		}
	}
}

func (t *Tracker) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	t.emit(Event{Kind: EventStateChanged, State: s})
}

func (t *Tracker) emit(e Event) {
	if t.opts.Observer != nil {
		t.opts.Observer(e)
	}
}
