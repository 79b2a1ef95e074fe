package tracking

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"activity-tracker/internal/activityapi"
	"activity-tracker/internal/analysis"
	"activity-tracker/internal/sensor"
)

var errBackend = errors.New("backend unavailable")

// t0 is an arbitrary fixed start instant
var t0 = time.Date(2025, 3, 14, 7, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mapKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapKV() *mapKV { return &mapKV{data: map[string]string{}} }

func (m *mapKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mapKV) MultiGet(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *mapKV) MultiSet(_ context.Context, pairs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.data, pairs)
	return nil
}

func (m *mapKV) MultiRemove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type fakeSubscription struct {
	mu           sync.Mutex
	unsubscribed bool
}

func (s *fakeSubscription) Unsubscribe() {
	s.mu.Lock()
	s.unsubscribed = true
	s.mu.Unlock()
}

func (s *fakeSubscription) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

// fakeLocation delivers fixes synchronously from the test goroutine
type fakeLocation struct {
	err  error
	opts sensor.LocationOptions
	fn   func(sensor.Fix)
	sub  *fakeSubscription
}

func (f *fakeLocation) WatchPosition(opts sensor.LocationOptions, fn func(sensor.Fix)) (sensor.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.opts, f.fn = opts, fn
	f.sub = &fakeSubscription{}
	return f.sub, nil
}

func (f *fakeLocation) emit(lat, lng float64, at time.Time) {
	f.fn(sensor.Fix{Point: analysis.GeoPoint{Latitude: lat, Longitude: lng}, Time: at})
}

type fakeMotion struct {
	err      error
	interval time.Duration
	fn       func(sensor.Sample)
	sub      *fakeSubscription
}

func (f *fakeMotion) Watch(interval time.Duration, fn func(sensor.Sample)) (sensor.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.interval, f.fn = interval, fn
	f.sub = &fakeSubscription{}
	return f.sub, nil
}

type fakeRemote struct {
	mu sync.Mutex

	nextID     string
	createErr  error
	updateErr  error
	appendErr  error
	getErr     error
	session    *activityapi.Session
	locations  []activityapi.RecordedLocation
	blockEnter chan struct{} // signalled when CreateSession is entered
	release    chan struct{} // CreateSession waits on this when set

	creates []activityapi.CreateSessionRequest
	updates []activityapi.SessionStats
	appends [][]activityapi.LocationPoint
}

func (f *fakeRemote) CreateSession(ctx context.Context, req activityapi.CreateSessionRequest) (string, error) {
	if f.release != nil {
		f.blockEnter <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.nextID, nil
}

func (f *fakeRemote) UpdateSession(ctx context.Context, id string, stats activityapi.SessionStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, stats)
	return f.updateErr
}

func (f *fakeRemote) GetSession(ctx context.Context, id string) (*activityapi.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.session, nil
}

func (f *fakeRemote) AppendLocations(ctx context.Context, id string, points []activityapi.LocationPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends = append(f.appends, points)
	return nil
}

func (f *fakeRemote) GetLocations(ctx context.Context, id string) ([]activityapi.RecordedLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.locations, nil
}

func (f *fakeRemote) counts() (creates, updates, appends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates), len(f.updates), len(f.appends)
}

func near(got, want, tol float64) bool {
	d := got - want
	return d <= tol && d >= -tol
}
