package domain

import "context"

// Tool is the interface for external lookup collaborators exposed to the
// planner (place search, flight search, hotel search, directions).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}
