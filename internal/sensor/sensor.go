// Package sensor defines the location and accelerometer stream contracts the
// tracker consumes, plus concrete sources backed by recorded tracks and MQTT.
package sensor

import (
	"context"
	"errors"
	"time"

	"activity-tracker/internal/analysis"
)

// ErrUnavailable is returned when a sensor is not present on the device
var ErrUnavailable = errors.New("sensor unavailable")

// Accuracy is the requested location accuracy class
type Accuracy string

const (
	AccuracyBestForNavigation Accuracy = "best-for-navigation"
	AccuracyBalanced          Accuracy = "balanced"
)

// Sampling defaults
const (
	DefaultMinInterval    = 2 * time.Second
	DefaultMotionInterval = 30 * time.Millisecond
)

// LocationOptions configures a position watch
type LocationOptions struct {
	Accuracy    Accuracy
	MinInterval time.Duration
	MinDistance float64 // meters, 0 reports every fix
}

// DefaultLocationOptions returns the options used for activity tracking
func DefaultLocationOptions() LocationOptions {
	return LocationOptions{
		Accuracy:    AccuracyBestForNavigation,
		MinInterval: DefaultMinInterval,
		MinDistance: 0,
	}
}

// Fix is one GPS sample
type Fix struct {
	Point analysis.GeoPoint
	Time  time.Time
}

// Sample is one accelerometer reading. A zero Time means "now" to the consumer.
type Sample struct {
	analysis.Vector3
	Time time.Time
}

// Subscription stops a running stream
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription
type SubscriptionFunc func()

// Unsubscribe calls f
func (f SubscriptionFunc) Unsubscribe() { f() }

// LocationSource delivers fixes to fn, one at a time and in arrival order
type LocationSource interface {
	WatchPosition(opts LocationOptions, fn func(Fix)) (Subscription, error)
}

// AccelerometerSource delivers samples to fn at roughly the given interval.
// Returns ErrUnavailable when the device has no accelerometer.
type AccelerometerSource interface {
	Watch(interval time.Duration, fn func(Sample)) (Subscription, error)
}

// PermissionRequester asks the platform for location permission
type PermissionRequester interface {
	RequestLocationPermission(ctx context.Context) (bool, error)
}

// StaticPermission always answers with the same decision
type StaticPermission bool

// RequestLocationPermission returns the fixed decision
func (p StaticPermission) RequestLocationPermission(context.Context) (bool, error) {
	return bool(p), nil
}
