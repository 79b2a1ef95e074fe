package tracking

import "errors"

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("location watch unavailable")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrNotTracking         = errors.New("not tracking")
	ErrSyncInFlight        = errors.New("sync already in flight")
)
