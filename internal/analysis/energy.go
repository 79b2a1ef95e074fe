package analysis

import "time"

// Linear model for energy expenditure: kcal/hour = slope*avgMV + intercept,
// where avgMV is the mean accelerometer vector magnitude while active.
const (
	CalorieSlope     = 4.83
	CalorieIntercept = 122.02
)

// Calories converts a mean motion magnitude and active time into kilocalories.
// Returns 0 when there is no active time.
func Calories(avgMV, activeSeconds float64) float64 {
	if activeSeconds <= 0 {
		return 0
	}
	perSecond := (CalorieSlope*avgMV + CalorieIntercept) / 3600
	return perSecond * activeSeconds
}

// MotionAccumulator sums raw accelerometer magnitudes observed while active
type MotionAccumulator struct {
	Sum   float64
	Count int
}

// Add records one magnitude sample
func (m *MotionAccumulator) Add(magnitude float64) {
	m.Sum += magnitude
	m.Count++
}

// Average returns the mean magnitude, or 0 if nothing was recorded
func (m *MotionAccumulator) Average() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.Sum / float64(m.Count)
}

// Calories estimates kilocalories burned over the given active time
func (m *MotionAccumulator) Calories(active time.Duration) float64 {
	if m.Count == 0 {
		return 0
	}
	return Calories(m.Average(), active.Seconds())
}

// Reset clears the accumulator
func (m *MotionAccumulator) Reset() {
	m.Sum = 0
	m.Count = 0
}
