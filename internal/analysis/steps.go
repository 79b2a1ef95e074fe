package analysis

import (
	"math"
	"time"
)

// Step detector tuning
const (
	MagnitudeSmoothing = 0.1  // EMA factor for the magnitude baseline
	NoiseSmoothing     = 0.1  // EMA factor for the |net| noise floor
	NoiseFloor         = 0.02 // below this the signal is treated as stationary jitter
	BaseStepThreshold  = 0.02
	ThresholdGain      = 0.8
	FallingRatio       = 0.5
	PeakConfirmRatio   = 1.4
	StepRefractory     = 400 * time.Millisecond
)

// Vector3 is one 3-axis accelerometer reading
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the vector
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

type peakCandidate struct {
	value float64
	at    time.Time
}

// StepDetector counts strides from raw accelerometer magnitude using an
// adaptive double-threshold peak detector. Samples must be fed in arrival order.
type StepDetector struct {
	seeded    bool
	ema       float64
	absNetEma float64
	lastNet   float64
	candidate *peakCandidate
	lastStep  time.Time
}

// NewStepDetector creates a detector with a cold baseline
func NewStepDetector() *StepDetector {
	return &StepDetector{}
}

// Add consumes one sample taken at the given instant and reports whether it
// completed an accepted step. When counting is false the filters still update
// but no step is ever accepted.
func (d *StepDetector) Add(v Vector3, at time.Time, counting bool) bool {
	mag := v.Magnitude()
	if !d.seeded {
		d.ema = mag
		d.seeded = true
	} else {
		d.ema = MagnitudeSmoothing*mag + (1-MagnitudeSmoothing)*d.ema
	}

	net := mag - d.ema
	d.absNetEma = NoiseSmoothing*math.Abs(net) + (1-NoiseSmoothing)*d.absNetEma

	if d.absNetEma < NoiseFloor {
		d.lastNet = net
		return false
	}

	upTh := math.Max(math.Max(BaseStepThreshold, d.absNetEma*ThresholdGain), NoiseFloor)
	downTh := -FallingRatio * upTh

	if net > upTh {
		if d.lastNet <= upTh {
			d.candidate = &peakCandidate{value: net, at: at}
		} else if d.candidate != nil && net > d.candidate.value {
			d.candidate.value = net
		}
	}

	stepped := false
	if net < downTh && d.lastNet >= downTh {
		if d.candidate != nil && counting &&
			at.Sub(d.lastStep) >= StepRefractory &&
			d.candidate.value >= upTh*PeakConfirmRatio {
			d.lastStep = at
			stepped = true
		}
		d.candidate = nil
	}

	d.lastNet = net
	return stepped
}

// Reset drops all filter state
func (d *StepDetector) Reset() {
	*d = StepDetector{}
}
