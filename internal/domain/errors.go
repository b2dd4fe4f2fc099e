package domain

import "errors"

var (
	// ErrInvalidItinerary marks untrusted itinerary data that does not
	// normalize to at least one day-shaped record.
	ErrInvalidItinerary = errors.New("invalid itinerary")

	// ErrNotFound marks a lookup for a record that does not exist.
	ErrNotFound = errors.New("not found")
)
