package domain

import "context"

// Store is the persistence collaborator. The engine only needs append/get
// for the message log and get/set for per-trip documents; durability is
// whatever the implementation provides.
type Store interface {
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	Messages(ctx context.Context, tripID string, limit int) ([]Message, error)

	Itinerary(ctx context.Context, tripID string) (*Itinerary, error)
	SetItinerary(ctx context.Context, tripID string, it *Itinerary) error

	Trip(ctx context.Context, tripID string) (Trip, error)
	SetDestination(ctx context.Context, tripID, destination string) error

	RegisterCode(ctx context.Context, tripID string) (string, error)
	ResolveCode(ctx context.Context, code string) (string, error)

	AddMembership(ctx context.Context, m Membership) error
	UserTrips(ctx context.Context, userID string) ([]Membership, error)

	AddMedia(ctx context.Context, tripID, uri, mediaType string) (MediaItem, error)
	TripMedia(ctx context.Context, tripID string) ([]MediaItem, error)

	Close() error
}
