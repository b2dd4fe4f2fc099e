package domain

import "time"

// Message is one chat message in a trip's conversation. Messages are
// append-only: the engine never mutates or deletes them once persisted.
// Ordering is by CreatedAt, then ID.
type Message struct {
	ID          string       `json:"id"`
	TripID      string       `json:"trip_id"`
	UserID      string       `json:"user_id,omitempty"`
	UserName    string       `json:"user_name"`
	Content     string       `json:"content"`
	IsAI        bool         `json:"is_ai"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
