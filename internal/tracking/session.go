package tracking

import (
	"sync"
	"time"

	"activity-tracker/internal/activityapi"
	"activity-tracker/internal/analysis"
	"activity-tracker/internal/sensor"
)

// TrackedPoint is a fix stamped with its capture time
type TrackedPoint = analysis.TrackPoint

// Snapshot is a read-only view of a session's counters
type Snapshot struct {
	State        State
	SessionID    string
	StartTime    time.Time
	Elapsed      time.Duration
	Active       time.Duration
	TotalPause   time.Duration // completed pauses plus any open one
	Distance     float64       // meters
	StepCount    int
	CurrentSpeed float64 // m/s
	MaxSpeed     float64 // m/s
	AvgSpeed     float64 // m/s over active time
	Calories     float64 // kcal
	PointCount   int
	Current      *analysis.GeoPoint
}

// Result is the final state of a stopped session
type Result struct {
	Snapshot
	EndTime     time.Time
	Positions   []TrackedPoint
	BestEfforts []analysis.BestEffort
}

// Session is the mutable aggregate built during one tracking run. It is
// shared by the sensor callbacks, the display tick and the sync scheduler,
// so every access goes through its own lock.
type Session struct {
	mu sync.Mutex

	id                string
	clock             SessionClock
	positions         []TrackedPoint
	steps             int
	distance          float64
	currentSpeed      float64
	maxSpeed          float64
	maxPlausibleSpeed float64
	rejectedFixes     int
	detector          *analysis.StepDetector
	motion            analysis.MotionAccumulator
	lastSynced        time.Time // time of the newest uploaded point
	closed            bool
}

// NewSession starts a session at the given instant. A positive
// maxPlausibleSpeed (m/s) keeps implausible jumps out of distance and speed.
func NewSession(start time.Time, maxPlausibleSpeed float64) *Session {
	s := &Session{
		maxPlausibleSpeed: maxPlausibleSpeed,
		detector:          analysis.NewStepDetector(),
	}
	s.clock.Start(start)
	return s
}

// AddFix feeds one location fix, in arrival order
func (s *Session) AddFix(f sensor.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	p := TrackedPoint{GeoPoint: f.Point, Time: f.Time}
	if n := len(s.positions); n > 0 {
		prev := s.positions[n-1]
		distance := analysis.DistanceBetween(prev.GeoPoint, p.GeoPoint)
		dt := p.Time.Sub(prev.Time).Seconds()

		if !s.clock.Paused() && dt > 0 && distance > 0 {
			speed := distance / dt
			if s.maxPlausibleSpeed > 0 && speed > s.maxPlausibleSpeed {
				s.rejectedFixes++
			} else {
				s.currentSpeed = speed
				s.maxSpeed = max(s.maxSpeed, speed)
				s.distance += distance
			}
		}
	}

	// paused fixes still extend the path
	s.positions = append(s.positions, p)
}

// AddSample feeds one accelerometer reading. Samples keep the detector warm
// while paused but only count steps and motion while running.
func (s *Session) AddSample(sample sensor.Sample, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	at := sample.Time
	if at.IsZero() {
		at = now
	}
	counting := !s.clock.Paused()
	if s.detector.Add(sample.Vector3, at, counting) {
		s.steps++
	}
	if counting {
		s.motion.Add(sample.Magnitude())
	}
}

// Pause opens a pause interval. Returns false if already paused.
func (s *Session) Pause(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Pause(now)
}

// Resume closes the open pause and returns the new total pause time
func (s *Session) Resume(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Resume(now)
	return s.clock.TotalPause()
}

// Paused reports whether the session is paused
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Paused()
}

// ID returns the remote session id, empty until the first successful sync
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// RejectedFixes counts fixes dropped by the plausibility guard
func (s *Session) RejectedFixes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejectedFixes
}

// Snapshot returns the counters as of now
func (s *Session) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(now)
}

// Positions returns a copy of the tracked path
func (s *Session) Positions() []TrackedPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TrackedPoint(nil), s.positions...)
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	active := s.clock.Active(now)
	snap := Snapshot{
		SessionID:    s.id,
		StartTime:    s.clock.StartTime(),
		Elapsed:      s.clock.Elapsed(now),
		Active:       active,
		TotalPause:   s.clock.PausedFor(now),
		Distance:     s.distance,
		StepCount:    s.steps,
		CurrentSpeed: s.currentSpeed,
		MaxSpeed:     s.maxSpeed,
		Calories:     s.motion.Calories(active),
		PointCount:   len(s.positions),
	}
	if secs := active.Seconds(); secs > 0 {
		snap.AvgSpeed = s.distance / secs
	}
	if n := len(s.positions); n > 0 {
		cur := s.positions[n-1].GeoPoint
		snap.Current = &cur
	}
	return snap
}

// syncPayload is what one sync pass uploads
type syncPayload struct {
	id      string
	stats   activityapi.SessionStats
	pending []activityapi.LocationPoint
	newest  time.Time
}

func (s *Session) syncPayload(now time.Time) syncPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked(now)
	start := snap.StartTime
	p := syncPayload{
		id: s.id,
		stats: activityapi.SessionStats{
			DistanceKm:    snap.Distance / 1000,
			StepCount:     snap.StepCount,
			AvgSpeed:      snap.AvgSpeed,
			MaxSpeed:      snap.MaxSpeed,
			Kcal:          snap.Calories,
			TotalTimeMin:  snap.Elapsed.Minutes(),
			ActiveTimeMin: snap.Active.Minutes(),
			StartTime:     &start,
		},
	}
	for _, pt := range s.positions {
		if !pt.Time.After(s.lastSynced) {
			continue
		}
		p.pending = append(p.pending, activityapi.LocationPoint{
			Latitude:  pt.Latitude,
			Longitude: pt.Longitude,
			Time:      pt.Time.UnixMilli(),
		})
		p.newest = pt.Time
	}
	return p
}

func (s *Session) setID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		s.id = id
	}
}

func (s *Session) markUploaded(newest time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newest.After(s.lastSynced) {
		s.lastSynced = newest
	}
}

// restore repopulates counters from the remote copy of a recovered session
func (s *Session) restore(id string, remote *activityapi.Session, points []TrackedPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = id
	if remote != nil {
		s.distance = remote.DistanceKm * 1000
		s.steps = remote.StepCount
		s.maxSpeed = remote.MaxSpeed
	}
	s.positions = points
	if n := len(points); n > 0 {
		s.lastSynced = points[n-1].Time
	}
}

func (s *Session) restoreClock(start time.Time, totalPause time.Duration, pauseStart time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Restore(start, totalPause, pauseStart)
}

// close freezes the session and returns its final state. Later sensor
// callbacks are ignored.
func (s *Session) close(end time.Time) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	positions := append([]TrackedPoint(nil), s.positions...)
	return &Result{
		Snapshot:    s.snapshotLocked(end),
		EndTime:     end,
		Positions:   positions,
		BestEfforts: analysis.FindBestEfforts(positions),
	}
}
