package tracking

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"activity-tracker/internal/store"
)

// Keys of the final snapshot written at stop for the summary screen
const (
	KeyResultSessionID  = "activity_result_session_id"
	KeyResultStartTime  = "activity_result_start_time"
	KeyResultEndTime    = "activity_result_end_time"
	KeyResultDistance   = "activity_result_distance"
	KeyResultSteps      = "activity_result_steps"
	KeyResultAvgSpeed   = "activity_result_avg_speed"
	KeyResultMaxSpeed   = "activity_result_max_speed"
	KeyResultCalories   = "activity_result_calories"
	KeyResultTotalTime  = "activity_result_total_time"
	KeyResultActiveTime = "activity_result_active_time"
)

// resultPairs flattens a result into string pairs. Times are epoch ms,
// durations ms, distance meters.
func resultPairs(r *Result) map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		KeyResultSessionID:  r.SessionID,
		KeyResultStartTime:  formatMillis(r.StartTime),
		KeyResultEndTime:    formatMillis(r.EndTime),
		KeyResultDistance:   f(r.Distance),
		KeyResultSteps:      strconv.Itoa(r.StepCount),
		KeyResultAvgSpeed:   f(r.AvgSpeed),
		KeyResultMaxSpeed:   f(r.MaxSpeed),
		KeyResultCalories:   f(r.Calories),
		KeyResultTotalTime:  strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
		KeyResultActiveTime: strconv.FormatInt(r.Active.Milliseconds(), 10),
	}
}

// ResultSink receives every finished session
type ResultSink interface {
	SaveResult(ctx context.Context, r *Result) error
}

// RunWriter is the part of the local database used for run history
type RunWriter interface {
	SaveRun(ctx context.Context, r *store.Run) error
}

// HistorySink appends finished sessions to the local run history
type HistorySink struct {
	runs         RunWriter
	activityType string
	routeID      string
}

// NewHistorySink creates a sink tagging runs with the activity type and route
func NewHistorySink(runs RunWriter, activityType, routeID string) *HistorySink {
	return &HistorySink{runs: runs, activityType: activityType, routeID: routeID}
}

// SaveResult stores the result as a new run
func (h *HistorySink) SaveResult(ctx context.Context, r *Result) error {
	run := &store.Run{
		ID:           uuid.NewString(),
		SessionID:    r.SessionID,
		ActivityType: h.activityType,
		RouteID:      h.routeID,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Distance:     r.Distance,
		StepCount:    r.StepCount,
		AvgSpeed:     r.AvgSpeed,
		MaxSpeed:     r.MaxSpeed,
		Calories:     r.Calories,
		TotalTime:    r.Elapsed,
		ActiveTime:   r.Active,
		PointCount:   len(r.Positions),
	}
	if err := h.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}
