package domain

import "time"

// Trip holds the per-trip state the engine tracks outside the message log
// and the itinerary document.
type Trip struct {
	ID          string `json:"trip_id"`
	Destination string `json:"destination,omitempty"`
}

// Membership records that a user belongs to a trip.
type Membership struct {
	TripID      string    `json:"trip_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name,omitempty"`
	Destination string    `json:"destination,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// MediaItem is one photo or video attached to a trip.
type MediaItem struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	URI       string    `json:"uri"`
	Type      string    `json:"type"` // image | video
	CreatedAt time.Time `json:"created_at"`
}
