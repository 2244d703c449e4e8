package itinerary

import "errors"

// Sentinel errors for itinerary operations.
var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrSegmentNotFound = errors.New("segment not found")
	ErrServiceNotFound = errors.New("service not found")
	ErrInvalidArgument = errors.New("invalid argument")
)
