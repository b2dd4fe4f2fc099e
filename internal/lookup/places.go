package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
)

const (
	defaultPlacesSearchURL  = "https://places.googleapis.com/v1/places:searchText"
	defaultPlacesLegacyURL  = "https://maps.googleapis.com/maps/api/place"
	defaultDirectionsURL    = "https://maps.googleapis.com/maps/api/directions/json"
	placesTimeout           = 10 * time.Second
	directionsTimeout       = 15 * time.Second
	detailsCacheTTL         = 5 * time.Minute
	maxPlaceResults         = 20
)

// PlacesClient talks to the Google Maps/Places APIs: text search, place
// details (opening hours), and directions. Place details are cached
// briefly since the planner tends to re-check the same place within a run.
type PlacesClient struct {
	apiKey        string
	searchURL     string
	legacyURL     string
	directionsURL string
	client        *http.Client
	cache         *gocache.Cache
	logger        *slog.Logger
}

type PlacesConfig struct {
	APIKey        string
	SearchURL     string // test override
	LegacyURL     string // test override
	DirectionsURL string // test override
	Logger        *slog.Logger
}

func NewPlacesClient(cfg PlacesConfig) *PlacesClient {
	if cfg.SearchURL == "" {
		cfg.SearchURL = defaultPlacesSearchURL
	}
	if cfg.LegacyURL == "" {
		cfg.LegacyURL = defaultPlacesLegacyURL
	}
	if cfg.DirectionsURL == "" {
		cfg.DirectionsURL = defaultDirectionsURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PlacesClient{
		apiKey:        cfg.APIKey,
		searchURL:     cfg.SearchURL,
		legacyURL:     cfg.LegacyURL,
		directionsURL: cfg.DirectionsURL,
		client:        &http.Client{Timeout: directionsTimeout},
		cache:         gocache.New(detailsCacheTTL, 2*detailsCacheTTL),
		logger:        cfg.Logger,
	}
}

// Place is one text-search result.
type Place struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	Rating           float64 `json:"rating,omitempty"`
	UserRatingCount  int     `json:"user_ratings_total,omitempty"`
}

// PlaceDetails adds opening hours to a place.
type PlaceDetails struct {
	Place
	OpenNow     *bool    `json:"open_now,omitempty"`
	WeekdayText []string `json:"weekday_text,omitempty"`
}

// Route is a directions result with totals summed over legs.
type Route struct {
	Origin               string     `json:"origin"`
	Destination          string     `json:"destination"`
	Mode                 string     `json:"mode"`
	TotalDurationText    string     `json:"total_duration_text"`
	TotalDurationSeconds int        `json:"total_duration_seconds"`
	TotalDistanceText    string     `json:"total_distance_text"`
	TotalDistanceMeters  int        `json:"total_distance_meters"`
	Legs                 []RouteLeg `json:"legs"`
}

type RouteLeg struct {
	StartAddress    string `json:"start_address"`
	EndAddress      string `json:"end_address"`
	DurationText    string `json:"duration_text"`
	DurationSeconds int    `json:"duration_seconds"`
	DistanceText    string `json:"distance_text"`
	DistanceMeters  int    `json:"distance_meters"`
}

// SearchPlaces runs a text search ("coffee shop Austin") against the
// Places API (New).
func (c *PlacesClient) SearchPlaces(ctx context.Context, query string, maxResults int) ([]Place, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("google maps api key not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if maxResults < 1 || maxResults > maxPlaceResults {
		maxResults = 5
	}

	body, _ := json.Marshal(map[string]any{
		"textQuery": query,
		"pageSize":  maxResults,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask",
		"places.id,places.displayName,places.formattedAddress,places.rating,places.userRatingCount")

	ctx, cancel := context.WithTimeout(ctx, placesTimeout)
	defer cancel()
	type apiPlace struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string  `json:"formattedAddress"`
		Rating           float64 `json:"rating"`
		UserRatingCount  int     `json:"userRatingCount"`
	}
	var decoded struct {
		Places []apiPlace `json:"places"`
	}
	if err := c.do(req.WithContext(ctx), &decoded); err != nil {
		return nil, fmt.Errorf("places text search: %w", err)
	}

	places := lo.Map(decoded.Places, func(p apiPlace, _ int) Place {
		return Place{
			PlaceID:          strings.TrimPrefix(p.ID, "places/"),
			Name:             p.DisplayName.Text,
			FormattedAddress: p.FormattedAddress,
			Rating:           p.Rating,
			UserRatingCount:  p.UserRatingCount,
		}
	})
	if len(places) > maxResults {
		places = places[:maxResults]
	}
	return places, nil
}

// PlaceDetails fetches details for one place id, including opening hours
// when available.
func (c *PlacesClient) PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("google maps api key not configured")
	}
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, fmt.Errorf("place_id is required")
	}
	if cached, ok := c.cache.Get("details:" + placeID); ok {
		d := cached.(PlaceDetails)
		return &d, nil
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "name,formatted_address,opening_hours,rating,user_ratings_total")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.legacyURL+"/details/json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, placesTimeout)
	defer cancel()
	var decoded struct {
		Status string `json:"status"`
		Result struct {
			Name             string  `json:"name"`
			FormattedAddress string  `json:"formatted_address"`
			Rating           float64 `json:"rating"`
			UserRatingsTotal int     `json:"user_ratings_total"`
			OpeningHours     *struct {
				OpenNow     bool     `json:"open_now"`
				WeekdayText []string `json:"weekday_text"`
			} `json:"opening_hours"`
		} `json:"result"`
	}
	if err := c.do(req.WithContext(ctx), &decoded); err != nil {
		return nil, fmt.Errorf("place details: %w", err)
	}
	if decoded.Status != "OK" {
		return nil, fmt.Errorf("place details: %s", decoded.Status)
	}

	details := PlaceDetails{
		Place: Place{
			PlaceID:          placeID,
			Name:             decoded.Result.Name,
			FormattedAddress: decoded.Result.FormattedAddress,
			Rating:           decoded.Result.Rating,
			UserRatingCount:  decoded.Result.UserRatingsTotal,
		},
	}
	if oh := decoded.Result.OpeningHours; oh != nil {
		open := oh.OpenNow
		details.OpenNow = &open
		details.WeekdayText = oh.WeekdayText
	}
	c.cache.Set("details:"+placeID, details, gocache.DefaultExpiration)
	return &details, nil
}

// Directions returns a route between two places with totals summed over
// legs (the API does not return totals itself).
func (c *PlacesClient) Directions(ctx context.Context, origin, destination, mode string, waypoints []string) (*Route, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("google maps api key not configured")
	}
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return nil, fmt.Errorf("origin and destination are required")
	}
	if mode == "" {
		mode = "driving"
	}
	mode = strings.ToLower(mode)

	params := url.Values{}
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("mode", mode)
	params.Set("key", c.apiKey)
	if cleaned := lo.Filter(waypoints, func(w string, _ int) bool {
		return strings.TrimSpace(w) != ""
	}); len(cleaned) > 0 {
		params.Set("waypoints", strings.Join(cleaned, "|"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.directionsURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, directionsTimeout)
	defer cancel()
	var decoded struct {
		Status string `json:"status"`
		Routes []struct {
			Legs []struct {
				StartAddress string `json:"start_address"`
				EndAddress   string `json:"end_address"`
				Duration     struct {
					Text  string `json:"text"`
					Value int    `json:"value"`
				} `json:"duration"`
				Distance struct {
					Text  string `json:"text"`
					Value int    `json:"value"`
				} `json:"distance"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := c.do(req.WithContext(ctx), &decoded); err != nil {
		return nil, fmt.Errorf("directions: %w", err)
	}
	if decoded.Status != "OK" {
		return nil, fmt.Errorf("directions: %s", decoded.Status)
	}
	if len(decoded.Routes) == 0 {
		return nil, fmt.Errorf("directions: no route found")
	}

	route := &Route{Origin: origin, Destination: destination, Mode: mode}
	for _, leg := range decoded.Routes[0].Legs {
		route.TotalDurationSeconds += leg.Duration.Value
		route.TotalDistanceMeters += leg.Distance.Value
		route.Legs = append(route.Legs, RouteLeg{
			StartAddress:    leg.StartAddress,
			EndAddress:      leg.EndAddress,
			DurationText:    leg.Duration.Text,
			DurationSeconds: leg.Duration.Value,
			DistanceText:    leg.Distance.Text,
			DistanceMeters:  leg.Distance.Value,
		})
	}
	route.TotalDurationText = formatDuration(route.TotalDurationSeconds)
	route.TotalDistanceText = formatDistance(route.TotalDistanceMeters)
	return route, nil
}

func (c *PlacesClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatDuration(seconds int) string {
	if seconds < 60 {
		return strconv.Itoa(seconds) + " sec"
	}
	mins := seconds / 60
	if mins < 60 {
		return strconv.Itoa(mins) + " min"
	}
	hours, rem := mins/60, mins%60
	if rem == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return strconv.Itoa(hours) + " hours"
	}
	return fmt.Sprintf("%d h %d min", hours, rem)
}

func formatDistance(meters int) string {
	if meters < 1000 {
		return strconv.Itoa(meters) + " m"
	}
	km := float64(meters) / 1000.0
	if km < 10 {
		return fmt.Sprintf("%.1f km", km)
	}
	return fmt.Sprintf("%d km", int(km+0.5))
}
