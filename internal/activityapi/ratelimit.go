package activityapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter paces requests to the activity backend. It enforces a minimum
// gap between calls and backs off when the server reports an exhausted budget
// through X-RateLimit-Remaining / X-RateLimit-Reset.
type RateLimiter struct {
	mu sync.Mutex

	minInterval time.Duration
	lastRequest time.Time

	remaining int // -1 when unknown
	resetsAt  time.Time
}

// NewRateLimiter creates a limiter with the given minimum interval
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		minInterval: minInterval,
		remaining:   -1,
	}
}

// Wait blocks until a request can be made
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if r.remaining == 0 && now.Before(r.resetsAt) {
		if err := r.sleep(ctx, r.resetsAt.Sub(now)); err != nil {
			return err
		}
		r.remaining = -1
	}

	// Enforce minimum interval between requests
	elapsed := time.Since(r.lastRequest)
	if elapsed < r.minInterval {
		if err := r.sleep(ctx, r.minInterval-elapsed); err != nil {
			return err
		}
	}

	r.lastRequest = time.Now()
	if r.remaining > 0 {
		r.remaining--
	}
	return nil
}

// sleep releases the lock while waiting; callers hold r.mu
func (r *RateLimiter) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Unlock()
	defer r.mu.Lock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateFromHeaders updates the budget from response headers.
// X-RateLimit-Reset is seconds until the window resets.
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			r.resetsAt = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}
}

// Remaining returns the last reported budget, or -1 if unknown
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}
