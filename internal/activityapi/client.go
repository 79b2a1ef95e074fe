// Package activityapi is a client for the remote activity-session backend.
package activityapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Options tunes the HTTP client
type Options struct {
	Timeout     time.Duration
	MinInterval time.Duration
}

// Client is an activity backend API client
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// StaticToken returns a token source for a fixed bearer token
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

// NewClient creates a new API client. A nil tokenSource sends unauthenticated requests.
func NewClient(baseURL string, tokenSource oauth2.TokenSource, opts Options) *Client {
	httpClient := &http.Client{}
	if tokenSource != nil {
		httpClient = oauth2.NewClient(context.Background(), tokenSource)
	}
	httpClient.Timeout = opts.Timeout

	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  httpClient,
		rateLimiter: NewRateLimiter(opts.MinInterval),
	}
}

// CreateSession registers a new session and returns its id
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (string, error) {
	var resp CreateSessionResponse
	if err := c.do(ctx, http.MethodPost, "/activity-sessions", req, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("create session: response has no sessionId")
	}
	return string(resp.SessionID), nil
}

// UpdateSession overwrites the counters of an existing session
func (c *Client) UpdateSession(ctx context.Context, sessionID string, stats SessionStats) error {
	var resp successResponse
	path := "/activity-sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodPut, path, stats, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("update session %s: backend reported failure", sessionID)
	}
	return nil
}

// GetSession fetches the stored snapshot of a session
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	path := "/activity-sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// AppendLocations uploads additional fixes for a session
func (c *Client) AppendLocations(ctx context.Context, sessionID string, points []LocationPoint) error {
	var resp successResponse
	path := "/activity-sessions/" + url.PathEscape(sessionID) + "/locations"
	if err := c.do(ctx, http.MethodPost, path, points, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("append locations to %s: backend reported failure", sessionID)
	}
	return nil
}

// GetLocations lists all fixes stored for a session
func (c *Client) GetLocations(ctx context.Context, sessionID string) ([]RecordedLocation, error) {
	var locs []RecordedLocation
	path := "/activity-sessions/" + url.PathEscape(sessionID) + "/locations"
	if err := c.do(ctx, http.MethodGet, path, nil, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.rateLimiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
