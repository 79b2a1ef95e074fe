package tracking

import (
	"testing"
	"time"

	"activity-tracker/internal/analysis"
	"activity-tracker/internal/sensor"
)

func fixAt(lat, lng float64, at time.Time) sensor.Fix {
	return sensor.Fix{Point: analysis.GeoPoint{Latitude: lat, Longitude: lng}, Time: at}
}

func TestSessionDistanceMonotonic(t *testing.T) {
	s := NewSession(t0, 0)
	track := []sensor.Fix{
		fixAt(21.0, 105.0, t0),
		fixAt(21.0, 105.0003, t0.Add(2*time.Second)),
		fixAt(21.0, 105.0003, t0.Add(4*time.Second)), // stationary
		fixAt(21.0002, 105.0003, t0.Add(6*time.Second)),
		fixAt(21.0002, 105.0003, t0.Add(6*time.Second)), // duplicate timestamp
		fixAt(21.0001, 105.0001, t0.Add(8*time.Second)),
	}

	last := 0.0
	for i, f := range track {
		s.AddFix(f)
		snap := s.Snapshot(f.Time)
		if snap.Distance < last {
			t.Fatalf("distance decreased at fix %d: %v < %v", i, snap.Distance, last)
		}
		if snap.MaxSpeed < snap.CurrentSpeed {
			t.Errorf("fix %d: max %v < current %v", i, snap.MaxSpeed, snap.CurrentSpeed)
		}
		last = snap.Distance
	}

	if got := s.Snapshot(t0.Add(8 * time.Second)).PointCount; got != len(track) {
		t.Errorf("PointCount = %d, want %d", got, len(track))
	}
}

func TestSessionPausedFixesExtendPathOnly(t *testing.T) {
	s := NewSession(t0, 0)
	s.AddFix(fixAt(21.0, 105.0, t0))
	s.AddFix(fixAt(21.0, 105.0009, t0.Add(2*time.Second)))
	moving := s.Snapshot(t0.Add(2 * time.Second))

	s.Pause(t0.Add(2 * time.Second))
	s.AddFix(fixAt(21.0, 105.0018, t0.Add(4*time.Second)))
	paused := s.Snapshot(t0.Add(4 * time.Second))

	if paused.Distance != moving.Distance {
		t.Errorf("Distance while paused = %v, want %v", paused.Distance, moving.Distance)
	}
	if paused.PointCount != 3 {
		t.Errorf("PointCount = %d, want 3", paused.PointCount)
	}
	if paused.Current == nil || paused.Current.Longitude != 105.0018 {
		t.Errorf("Current = %+v, want last paused fix", paused.Current)
	}
}

func TestSessionPlausibilityGuard(t *testing.T) {
	s := NewSession(t0, 15)
	s.AddFix(fixAt(21.0, 105.0, t0))
	s.AddFix(fixAt(21.0, 105.0002, t0.Add(2*time.Second))) // ~10 m/s
	s.AddFix(fixAt(21.1, 105.0002, t0.Add(4*time.Second))) // ~5.5 km/s

	snap := s.Snapshot(t0.Add(4 * time.Second))
	if snap.MaxSpeed > 15 {
		t.Errorf("MaxSpeed = %v, want <= 15", snap.MaxSpeed)
	}
	if snap.Distance > 50 {
		t.Errorf("Distance = %v, implausible jump counted", snap.Distance)
	}
	if snap.PointCount != 3 {
		t.Errorf("PointCount = %d, want 3", snap.PointCount)
	}
	if got := s.RejectedFixes(); got != 1 {
		t.Errorf("RejectedFixes() = %d, want 1", got)
	}
}

func TestSessionStepsOnlyWhileRunning(t *testing.T) {
	feed := func(s *Session, start time.Time) time.Time {
		at := start
		for i := 0; i < 8*25; i++ {
			z := 9.81
			switch i % 25 {
			case 23:
				z += 3
			case 24:
				z -= 2
			}
			s.AddSample(sensor.Sample{Vector3: analysis.Vector3{Z: z}, Time: at}, at)
			at = at.Add(20 * time.Millisecond)
		}
		return at
	}

	s := NewSession(t0, 0)
	s.Pause(t0)
	end := feed(s, t0)
	paused := s.Snapshot(end)
	if paused.StepCount != 0 {
		t.Errorf("StepCount while paused = %d, want 0", paused.StepCount)
	}
	if paused.Calories != 0 {
		t.Errorf("Calories while paused = %v, want 0", paused.Calories)
	}

	s.Resume(end)
	end = feed(s, end)
	snap := s.Snapshot(end)
	if snap.StepCount == 0 {
		t.Error("StepCount = 0 after resume")
	}
	if snap.Calories <= 0 {
		t.Errorf("Calories = %v, want > 0", snap.Calories)
	}
}

func TestSessionClosedIgnoresInput(t *testing.T) {
	s := NewSession(t0, 0)
	s.AddFix(fixAt(21.0, 105.0, t0))
	r := s.close(t0.Add(time.Second))

	s.AddFix(fixAt(21.0, 105.001, t0.Add(2*time.Second)))
	if got := s.Snapshot(t0.Add(2 * time.Second)).PointCount; got != 1 {
		t.Errorf("PointCount after close = %d, want 1", got)
	}
	if len(r.Positions) != 1 || !r.EndTime.Equal(t0.Add(time.Second)) {
		t.Errorf("Result = %+v", r)
	}
}

func TestSyncPayloadUnits(t *testing.T) {
	s := NewSession(t0, 0)
	s.AddFix(fixAt(21.0, 105.0, t0))
	s.AddFix(fixAt(21.0, 105.0009, t0.Add(2*time.Second)))

	p := s.syncPayload(t0.Add(2 * time.Minute))
	if !near(p.stats.DistanceKm, 0.0934, 0.001) {
		t.Errorf("DistanceKm = %v, want ~0.0934", p.stats.DistanceKm)
	}
	if p.stats.TotalTimeMin != 2 || p.stats.ActiveTimeMin != 2 {
		t.Errorf("times = (%v, %v) min, want (2, 2)", p.stats.TotalTimeMin, p.stats.ActiveTimeMin)
	}
	if len(p.pending) != 2 || p.pending[1].Time != t0.Add(2*time.Second).UnixMilli() {
		t.Errorf("pending = %+v", p.pending)
	}

	s.markUploaded(p.newest)
	if got := s.syncPayload(t0.Add(2 * time.Minute)).pending; len(got) != 0 {
		t.Errorf("pending after upload = %d points, want 0", len(got))
	}
}
