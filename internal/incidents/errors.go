package incidents

import "errors"

// Engine errors.
var (
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrSegmentNotFound   = errors.New("trip segment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotResolved       = errors.New("incident is not resolved yet")
	ErrAlreadyRated      = errors.New("incident already rated")
	ErrInvalidArgument   = errors.New("invalid argument")
)
