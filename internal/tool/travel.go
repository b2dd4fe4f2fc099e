package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tripchat/internal/domain"
	"tripchat/internal/lookup"
)

// PlacesAPI is the subset of the Google Maps client the place tools need.
type PlacesAPI interface {
	SearchPlaces(ctx context.Context, query string, maxResults int) ([]lookup.Place, error)
	PlaceDetails(ctx context.Context, placeID string) (*lookup.PlaceDetails, error)
	Directions(ctx context.Context, origin, destination, mode string, waypoints []string) (*lookup.Route, error)
}

// TravelAPI is the subset of the Amadeus client the travel tools need.
type TravelAPI interface {
	SearchFlights(ctx context.Context, origin, destination, date string, adults int) ([]lookup.FlightOffer, error)
	SearchHotels(ctx context.Context, city, checkIn, checkOut string, adults int) ([]lookup.HotelOffer, error)
}

// RegisterTravelTools wires the lookup clients into the registry. Nil
// clients skip their tools so the assistant still works without keys.
func RegisterTravelTools(r *Registry, places PlacesAPI, travel TravelAPI) error {
	var tools []domain.Tool
	if places != nil {
		tools = append(tools,
			&searchPlacesTool{api: places},
			&placeDetailsTool{api: places},
			&directionsTool{api: places},
		)
	}
	if travel != nil {
		tools = append(tools,
			&searchFlightsTool{api: travel},
			&searchHotelsTool{api: travel},
		)
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func requireString(args map[string]any, key string) (string, error) {
	s := stringArg(args, key)
	if s == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return s, nil
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type searchPlacesTool struct{ api PlacesAPI }

func (t *searchPlacesTool) Name() string { return "search_places" }
func (t *searchPlacesTool) Description() string {
	return "Search for real places (restaurants, museums, attractions) by free-text query, e.g. 'ramen near Shibuya'."
}
func (t *searchPlacesTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"query":       stringProp("Free-text search, ideally including the city or area."),
		"max_results": intProp("Maximum number of results, default 5."),
	}, "query")
}
func (t *searchPlacesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return "", err
	}
	places, err := t.api.SearchPlaces(ctx, query, intArg(args, "max_results", 5))
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"places": places})
}

type placeDetailsTool struct{ api PlacesAPI }

func (t *placeDetailsTool) Name() string { return "get_place_details" }
func (t *placeDetailsTool) Description() string {
	return "Get details for one place, including opening hours. Use a place_id from search_places."
}
func (t *placeDetailsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"place_id": stringProp("The place id returned by search_places."),
	}, "place_id")
}
func (t *placeDetailsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	placeID, err := requireString(args, "place_id")
	if err != nil {
		return "", err
	}
	details, err := t.api.PlaceDetails(ctx, placeID)
	if err != nil {
		return "", err
	}
	return toJSON(details)
}

type directionsTool struct{ api PlacesAPI }

func (t *directionsTool) Name() string { return "get_directions" }
func (t *directionsTool) Description() string {
	return "Get travel time and distance between two places, optionally via waypoints."
}
func (t *directionsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"origin":      stringProp("Start address or place name."),
		"destination": stringProp("End address or place name."),
		"mode":        stringProp("driving, walking, bicycling, or transit. Default driving."),
		"waypoints":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Intermediate stops, in order."},
	}, "origin", "destination")
}
func (t *directionsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	origin, err := requireString(args, "origin")
	if err != nil {
		return "", err
	}
	destination, err := requireString(args, "destination")
	if err != nil {
		return "", err
	}
	var waypoints []string
	if raw, ok := args["waypoints"].([]any); ok {
		for _, w := range raw {
			if s, ok := w.(string); ok {
				waypoints = append(waypoints, s)
			}
		}
	}
	route, err := t.api.Directions(ctx, origin, destination, stringArg(args, "mode"), waypoints)
	if err != nil {
		return "", err
	}
	return toJSON(route)
}

type searchFlightsTool struct{ api TravelAPI }

func (t *searchFlightsTool) Name() string { return "search_flights" }
func (t *searchFlightsTool) Description() string {
	return "Search for flight offers between two cities on a date."
}
func (t *searchFlightsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"origin":      stringProp("Origin city name or IATA code."),
		"destination": stringProp("Destination city name or IATA code."),
		"date":        stringProp("Departure date, YYYY-MM-DD."),
		"adults":      intProp("Number of adult travelers, default 1."),
	}, "origin", "destination", "date")
}
func (t *searchFlightsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	origin, err := requireString(args, "origin")
	if err != nil {
		return "", err
	}
	destination, err := requireString(args, "destination")
	if err != nil {
		return "", err
	}
	date, err := requireString(args, "date")
	if err != nil {
		return "", err
	}
	offers, err := t.api.SearchFlights(ctx, origin, destination, date, intArg(args, "adults", 1))
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"flights": offers})
}

type searchHotelsTool struct{ api TravelAPI }

func (t *searchHotelsTool) Name() string { return "search_hotels" }
func (t *searchHotelsTool) Description() string {
	return "Search for hotel offers in a city for a date range."
}
func (t *searchHotelsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"city":      stringProp("City name or IATA city code."),
		"check_in":  stringProp("Check-in date, YYYY-MM-DD."),
		"check_out": stringProp("Check-out date, YYYY-MM-DD."),
		"adults":    intProp("Number of adult guests, default 1."),
	}, "city", "check_in", "check_out")
}
func (t *searchHotelsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	city, err := requireString(args, "city")
	if err != nil {
		return "", err
	}
	checkIn, err := requireString(args, "check_in")
	if err != nil {
		return "", err
	}
	checkOut, err := requireString(args, "check_out")
	if err != nil {
		return "", err
	}
	offers, err := t.api.SearchHotels(ctx, city, checkIn, checkOut, intArg(args, "adults", 1))
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"hotels": offers})
}
