package activityapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu        sync.Mutex
	created   []CreateSessionRequest
	updates   []SessionStats
	locations []LocationPoint
	authz     []string
	requestID []string
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /activity-sessions", func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.created = append(f.created, req)
		f.authz = append(f.authz, r.Header.Get("Authorization"))
		f.requestID = append(f.requestID, r.Header.Get("X-Request-ID"))
		f.mu.Unlock()
		w.Write([]byte(`{"sessionId": 42}`))
	})

	mux.HandleFunc("PUT /activity-sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "42" {
			http.Error(w, "no such session", http.StatusNotFound)
			return
		}
		var stats SessionStats
		json.NewDecoder(r.Body).Decode(&stats)
		f.mu.Lock()
		f.updates = append(f.updates, stats)
		f.mu.Unlock()
		w.Write([]byte(`{"success": true}`))
	})

	mux.HandleFunc("GET /activity-sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"startTime": "2024-01-15T10:00:00Z",
			"endTime": "2024-01-15T10:05:00Z",
			"distanceKm": 1.2,
			"stepCount": 900,
			"avgSpeed": 4.0,
			"maxSpeed": 5.5,
			"totalTime": 5,
			"activeTime": 5,
			"locationPoints": [{"latitude": 21.0, "longitude": 105.0, "time": 1705312800000}]
		}`))
	})

	mux.HandleFunc("POST /activity-sessions/{id}/locations", func(w http.ResponseWriter, r *http.Request) {
		var pts []LocationPoint
		json.NewDecoder(r.Body).Decode(&pts)
		f.mu.Lock()
		f.locations = append(f.locations, pts...)
		f.mu.Unlock()
		w.Header().Set("X-RateLimit-Remaining", "99")
		w.Write([]byte(`{"success": true}`))
	})

	mux.HandleFunc("GET /activity-sessions/{id}/locations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": 21.0, "lng": 105.0, "time": 1705312800000}, {"lat": 21.0, "lng": 105.0009, "time": 1705312802000}]`))
	})

	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", StaticToken("secret"), Options{Timeout: 5 * time.Second}), backend
}

func TestClientSessionLifecycle(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	id, err := client.CreateSession(ctx, CreateSessionRequest{
		Type: "running",
		SessionStats: SessionStats{
			DistanceKm: 0.1,
			StepCount:  12,
			StartTime:  &start,
		},
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if id != "42" {
		t.Errorf("CreateSession() id = %q, want 42", id)
	}

	if err := client.UpdateSession(ctx, id, SessionStats{DistanceKm: 0.2, StepCount: 30}); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}

	pts := []LocationPoint{{Latitude: 21, Longitude: 105, Time: 1705312800000}}
	if err := client.AppendLocations(ctx, id, pts); err != nil {
		t.Fatalf("AppendLocations() error = %v", err)
	}
	if client.rateLimiter.Remaining() != 99 {
		t.Errorf("Remaining() = %d, want 99", client.rateLimiter.Remaining())
	}

	session, err := client.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session.StepCount != 900 || session.DistanceKm != 1.2 {
		t.Errorf("GetSession() = %+v", session)
	}
	if !session.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", session.StartTime, start)
	}

	locs, err := client.GetLocations(ctx, id)
	if err != nil {
		t.Fatalf("GetLocations() error = %v", err)
	}
	if len(locs) != 2 || locs[1].Lng != 105.0009 {
		t.Errorf("GetLocations() = %+v", locs)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.created) != 1 || backend.created[0].Type != "running" {
		t.Errorf("created = %+v", backend.created)
	}
	if backend.authz[0] != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", backend.authz[0], "Bearer secret")
	}
	if backend.requestID[0] == "" {
		t.Error("missing X-Request-ID header")
	}
	if len(backend.updates) != 1 || backend.updates[0].StepCount != 30 {
		t.Errorf("updates = %+v", backend.updates)
	}
	if len(backend.locations) != 1 {
		t.Errorf("locations = %+v", backend.locations)
	}
}

func TestClientAPIError(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.UpdateSession(context.Background(), "7", SessionStats{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("UpdateSession() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
}

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  ID
	}{
		{`42`, "42"},
		{`"abc-123"`, "abc-123"},
		{`null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var id ID
			if err := json.Unmarshal([]byte(tt.input), &id); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if id != tt.want {
				t.Errorf("id = %q, want %q", id, tt.want)
			}
		})
	}

	var id ID
	if err := json.Unmarshal([]byte(`{}`), &id); err == nil {
		t.Error("expected error for object id")
	}
}

func TestRateLimiterMinInterval(t *testing.T) {
	rl := NewRateLimiter(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("3 calls took %v, want >= 60ms", elapsed)
	}
}

func TestRateLimiterExhaustedBudget(t *testing.T) {
	rl := NewRateLimiter(0)
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", "60")
	rl.UpdateFromHeaders(h)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}
