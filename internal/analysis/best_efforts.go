package analysis

import (
	"fmt"
	"time"
)

// BestEffort represents the fastest segment of a given distance within a track
type BestEffort struct {
	TargetMeters   float64
	DistanceMeters float64
	Duration       time.Duration
	Start          time.Time
	End            time.Time
}

// Pace returns the effort's pace per kilometer
func (e BestEffort) Pace() time.Duration {
	return PacePerKm(e.Duration, e.DistanceMeters)
}

// Standard effort distances in meters
const (
	Distance400m       = 400
	Distance1K         = 1000
	Distance1Mile      = 1609.34
	Distance5K         = 5000
	Distance10K        = 10000
	MinPointsForEffort = 2
)

// EffortDistances defines the standard best effort distances to track
var EffortDistances = []float64{
	Distance400m,
	Distance1K,
	Distance1Mile,
	Distance5K,
	Distance10K,
}

// TrackPoint is a position stamped with its capture time
type TrackPoint struct {
	GeoPoint
	Time time.Time
}

// CumulativeDistance returns the running haversine distance at each point
func CumulativeDistance(track []TrackPoint) []float64 {
	out := make([]float64, len(track))
	for i := 1; i < len(track); i++ {
		out[i] = out[i-1] + DistanceBetween(track[i-1].GeoPoint, track[i].GeoPoint)
	}
	return out
}

// FindBestEffort finds the fastest segment of at least targetDistance meters.
// Two-pointer scan, O(n). Returns nil if the track is shorter than the target.
func FindBestEffort(track []TrackPoint, targetDistance float64) *BestEffort {
	if len(track) < MinPointsForEffort || targetDistance <= 0 {
		return nil
	}

	dist := CumulativeDistance(track)
	if dist[len(dist)-1] < targetDistance {
		return nil
	}

	var best *BestEffort
	left := 0
	for right := 1; right < len(track); right++ {
		// shrink from the left while the window still covers the target
		for left+1 < right && dist[right]-dist[left+1] >= targetDistance {
			left++
		}
		covered := dist[right] - dist[left]
		if covered < targetDistance {
			continue
		}
		duration := track[right].Time.Sub(track[left].Time)
		if duration <= 0 {
			continue
		}
		if best == nil || duration < best.Duration {
			best = &BestEffort{
				TargetMeters:   targetDistance,
				DistanceMeters: covered,
				Duration:       duration,
				Start:          track[left].Time,
				End:            track[right].Time,
			}
		}
	}
	return best
}

// FindBestEfforts returns the best effort for every standard distance the
// track covers
func FindBestEfforts(track []TrackPoint) []BestEffort {
	var efforts []BestEffort
	for _, d := range EffortDistances {
		if e := FindBestEffort(track, d); e != nil {
			efforts = append(efforts, *e)
		}
	}
	return efforts
}

// PacePerKm returns time per kilometer, 0 when undefined
func PacePerKm(d time.Duration, meters float64) time.Duration {
	if meters <= 0 || d <= 0 {
		return 0
	}
	return time.Duration(float64(d) / (meters / 1000))
}

// FormatPace renders a per-km pace as m:ss, "-" when undefined
func FormatPace(pace time.Duration) string {
	if pace <= 0 {
		return "-"
	}
	secs := int(pace.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// EffortLabel names a standard effort distance
func EffortLabel(meters float64) string {
	switch meters {
	case Distance400m:
		return "400m"
	case Distance1K:
		return "1K"
	case Distance1Mile:
		return "1 mile"
	case Distance5K:
		return "5K"
	case Distance10K:
		return "10K"
	default:
		return fmt.Sprintf("%.0fm", meters)
	}
}
