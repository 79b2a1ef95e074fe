package sensor

import (
	"math"
	"sync"
	"time"

	"activity-tracker/internal/analysis"
)

// Replay plays back a recorded track as a live location stream.
// Fix times are rebased so the first fix is stamped with the watch start.
type Replay struct {
	fixes []Fix
	speed float64 // playback multiplier, <= 0 plays without delay
	now   func() time.Time

	mu   sync.Mutex
	done chan struct{}
}

// NewReplay creates a replay source. speed 1 is real time.
func NewReplay(fixes []Fix, speed float64) *Replay {
	done := make(chan struct{})
	return &Replay{fixes: fixes, speed: speed, now: time.Now, done: done}
}

// Done is closed once the most recently started playback has emitted its
// last fix or was stopped
func (r *Replay) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// WatchPosition starts playback. Fixes closer together than opts.MinInterval
// are dropped, mirroring a platform location service.
func (r *Replay) WatchPosition(opts LocationOptions, fn func(Fix)) (Subscription, error) {
	stop := make(chan struct{})
	var once sync.Once
	done := make(chan struct{})

	r.mu.Lock()
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		if len(r.fixes) == 0 {
			return
		}

		base := r.now()
		first := r.fixes[0].Time
		var last time.Time

		for i, f := range r.fixes {
			if i > 0 && f.Time.Sub(last) < opts.MinInterval {
				continue
			}
			if i > 0 && r.speed > 0 {
				wait := time.Duration(float64(f.Time.Sub(last)) / r.speed)
				select {
				case <-time.After(wait):
				case <-stop:
					return
				}
			}
			select {
			case <-stop:
				return
			default:
			}
			last = f.Time
			fn(Fix{Point: f.Point, Time: base.Add(f.Time.Sub(first))})
		}
	}()

	return SubscriptionFunc(func() {
		once.Do(func() { close(stop) })
		<-done
	}), nil
}

// Duration reports the length of the recorded track
func (r *Replay) Duration() time.Duration {
	if len(r.fixes) < 2 {
		return 0
	}
	return r.fixes[len(r.fixes)-1].Time.Sub(r.fixes[0].Time)
}

// StrideSimulator synthesises an accelerometer stream with one stride impulse
// per cadence period on top of gravity.
type StrideSimulator struct {
	Cadence   time.Duration // time between strides
	Amplitude float64       // peak acceleration above gravity
}

// Watch starts emitting samples every interval
func (s StrideSimulator) Watch(interval time.Duration, fn func(Sample)) (Subscription, error) {
	if interval <= 0 {
		interval = DefaultMotionInterval
	}
	cadence := s.Cadence
	if cadence <= 0 {
		cadence = 500 * time.Millisecond
	}
	amp := s.Amplitude
	if amp == 0 {
		amp = 3
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		start := time.Now()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				phase := math.Mod(float64(now.Sub(start)), float64(cadence)) / float64(cadence)
				z := 9.81
				if phase < 0.1 {
					z += amp * math.Sin(phase*10*math.Pi)
				} else if phase < 0.2 {
					z -= amp * 0.7 * math.Sin((phase-0.1)*10*math.Pi)
				}
				fn(Sample{Vector3: analysis.Vector3{Z: z}, Time: now})
			}
		}
	}()

	return SubscriptionFunc(func() {
		once.Do(func() { close(stop) })
		<-done
	}), nil
}
