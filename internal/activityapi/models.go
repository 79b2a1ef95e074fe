package activityapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is a remote session identifier. The backend may encode it as a JSON
// number or string; it is always handled as a string locally.
type ID string

// UnmarshalJSON accepts both numbers and strings
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// SessionStats are the counters sent on create and update.
// Distance is in km, times in minutes, speeds in m/s.
type SessionStats struct {
	DistanceKm    float64    `json:"distanceKm"`
	StepCount     int        `json:"stepCount"`
	AvgSpeed      float64    `json:"avgSpeed"`
	MaxSpeed      float64    `json:"maxSpeed"`
	Kcal          float64    `json:"kcal"`
	TotalTimeMin  float64    `json:"totalTimeMin"`
	ActiveTimeMin float64    `json:"activeTimeMin"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	EndTime       *time.Time `json:"endTime,omitempty"`
}

// CreateSessionRequest is the body of the create-session call
type CreateSessionRequest struct {
	Type    string `json:"type"`
	RouteID string `json:"routeId,omitempty"`
	SessionStats
}

// CreateSessionResponse carries the id assigned by the backend
type CreateSessionResponse struct {
	SessionID ID `json:"sessionId"`
}

// successResponse is returned by update and append calls
type successResponse struct {
	Success bool `json:"success"`
}

// LocationPoint is one uploaded fix
type LocationPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Time      int64   `json:"time"` // epoch ms
}

// RecordedLocation is one fix as returned by the locations listing
type RecordedLocation struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Time int64   `json:"time"` // epoch ms
}

// Session is the remote snapshot of a tracking session
type Session struct {
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
	DistanceKm     float64         `json:"distanceKm"`
	StepCount      int             `json:"stepCount"`
	AvgSpeed       float64         `json:"avgSpeed"`
	MaxSpeed       float64         `json:"maxSpeed"`
	TotalTime      float64         `json:"totalTime"`  // minutes
	ActiveTime     float64         `json:"activeTime"` // minutes
	LocationPoints []LocationPoint `json:"locationPoints"`
}
