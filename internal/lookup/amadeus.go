package lookup

import (
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
	defaultAmadeusBaseURL = "https://test.api.amadeus.com"
	amadeusTimeout        = 15 * time.Second
	tokenCacheKey         = "amadeus:token"
	cityCacheTTL          = time.Hour
	maxFlightOffers       = 5
	maxHotelOffers        = 5
)

// AmadeusClient talks to the Amadeus self-service APIs for flight and
// hotel offers. OAuth tokens and city-to-IATA resolutions are cached.
type AmadeusClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	cache     *gocache.Cache
	logger    *slog.Logger
}

type AmadeusConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // test override
	Logger    *slog.Logger
}

func NewAmadeusClient(cfg AmadeusConfig) *AmadeusClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAmadeusBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AmadeusClient{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: amadeusTimeout},
		cache:     gocache.New(cityCacheTTL, 2*cityCacheTTL),
		logger:    cfg.Logger,
	}
}

// FlightOffer is one priced flight option, flattened from the v2
// flight-offers response.
type FlightOffer struct {
	Price         string `json:"price"`
	Currency      string `json:"currency"`
	Departure     string `json:"departure"`
	Arrival       string `json:"arrival"`
	Carrier       string `json:"carrier"`
	Duration      string `json:"duration"`
	SegmentsCount int    `json:"segments_count"`
}

// HotelOffer is one priced hotel option.
type HotelOffer struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	RoomType string `json:"room_type,omitempty"`
}

// token fetches (or reuses) an OAuth client-credentials token. Tokens are
// cached slightly shorter than their reported lifetime.
func (c *AmadeusClient) token(ctx context.Context) (string, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return "", fmt.Errorf("amadeus credentials not configured")
	}
	if cached, ok := c.cache.Get(tokenCacheKey); ok {
		return cached.(string), nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.apiKey)
	form.Set("client_secret", c.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.do(req, &decoded); err != nil {
		return "", fmt.Errorf("amadeus auth: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", fmt.Errorf("amadeus auth: empty token")
	}

	ttl := time.Duration(decoded.ExpiresIn)*time.Second - time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}
	c.cache.Set(tokenCacheKey, decoded.AccessToken, ttl)
	return decoded.AccessToken, nil
}

// ResolveCity turns a free-form city name into an IATA city code.
// Three-letter uppercase inputs are assumed to already be codes.
func (c *AmadeusClient) ResolveCity(ctx context.Context, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}
	if len(city) == 3 && city == strings.ToUpper(city) {
		return city, nil
	}
	cacheKey := "city:" + strings.ToLower(city)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	tok, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("keyword", city)
	params.Set("subType", "CITY")
	params.Set("page[limit]", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/reference-data/locations?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	var decoded struct {
		Data []struct {
			IataCode string `json:"iataCode"`
		} `json:"data"`
	}
	if err := c.do(req, &decoded); err != nil {
		return "", fmt.Errorf("resolve city %q: %w", city, err)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].IataCode == "" {
		return "", fmt.Errorf("no airport code found for %q", city)
	}
	code := decoded.Data[0].IataCode
	c.cache.Set(cacheKey, code, gocache.DefaultExpiration)
	return code, nil
}

// SearchFlights finds flight offers between two cities on a date
// (YYYY-MM-DD). City names are resolved to IATA codes first.
func (c *AmadeusClient) SearchFlights(ctx context.Context, origin, destination, date string, adults int) ([]FlightOffer, error) {
	originCode, err := c.ResolveCity(ctx, origin)
	if err != nil {
		return nil, err
	}
	destCode, err := c.ResolveCity(ctx, destination)
	if err != nil {
		return nil, err
	}
	if date == "" {
		return nil, fmt.Errorf("departure date is required")
	}
	if adults < 1 {
		adults = 1
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("originLocationCode", originCode)
	params.Set("destinationLocationCode", destCode)
	params.Set("departureDate", date)
	params.Set("adults", strconv.Itoa(adults))
	params.Set("max", strconv.Itoa(maxFlightOffers))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v2/shopping/flight-offers?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	var decoded struct {
		Data []struct {
			Price struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			} `json:"price"`
			Itineraries []struct {
				Duration string `json:"duration"`
				Segments []struct {
					CarrierCode string `json:"carrierCode"`
					Departure   struct {
						At string `json:"at"`
					} `json:"departure"`
					Arrival struct {
						At string `json:"at"`
					} `json:"arrival"`
				} `json:"segments"`
			} `json:"itineraries"`
		} `json:"data"`
	}
	if err := c.do(req, &decoded); err != nil {
		return nil, fmt.Errorf("flight offers: %w", err)
	}

	var offers []FlightOffer
	for _, d := range decoded.Data {
		if len(d.Itineraries) == 0 || len(d.Itineraries[0].Segments) == 0 {
			continue
		}
		it := d.Itineraries[0]
		first, last := it.Segments[0], it.Segments[len(it.Segments)-1]
		offers = append(offers, FlightOffer{
			Price:         d.Price.Total,
			Currency:      d.Price.Currency,
			Departure:     first.Departure.At,
			Arrival:       last.Arrival.At,
			Carrier:       first.CarrierCode,
			Duration:      it.Duration,
			SegmentsCount: len(it.Segments),
		})
	}
	return offers, nil
}

// SearchHotels finds hotel offers in a city for a date range. The city is
// resolved to a code, its hotel list fetched, then priced offers requested
// for the first batch of hotel ids.
func (c *AmadeusClient) SearchHotels(ctx context.Context, city, checkIn, checkOut string, adults int) ([]HotelOffer, error) {
	cityCode, err := c.ResolveCity(ctx, city)
	if err != nil {
		return nil, err
	}
	if checkIn == "" || checkOut == "" {
		return nil, fmt.Errorf("check-in and check-out dates are required")
	}
	if adults < 1 {
		adults = 1
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	hotelIDs, err := c.hotelsByCity(ctx, tok, cityCode)
	if err != nil {
		return nil, err
	}
	if len(hotelIDs) == 0 {
		return nil, fmt.Errorf("no hotels found in %s", city)
	}

	params := url.Values{}
	params.Set("hotelIds", strings.Join(hotelIDs, ","))
	params.Set("checkInDate", checkIn)
	params.Set("checkOutDate", checkOut)
	params.Set("adults", strconv.Itoa(adults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v3/shopping/hotel-offers?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	var decoded struct {
		Data []struct {
			Hotel struct {
				Name string `json:"name"`
			} `json:"hotel"`
			Offers []struct {
				CheckInDate  string `json:"checkInDate"`
				CheckOutDate string `json:"checkOutDate"`
				Room         struct {
					TypeEstimated struct {
						Category string `json:"category"`
					} `json:"typeEstimated"`
				} `json:"room"`
				Price struct {
					Total    string `json:"total"`
					Currency string `json:"currency"`
				} `json:"price"`
			} `json:"offers"`
		} `json:"data"`
	}
	if err := c.do(req, &decoded); err != nil {
		return nil, fmt.Errorf("hotel offers: %w", err)
	}

	var offers []HotelOffer
	for _, d := range decoded.Data {
		if len(d.Offers) == 0 {
			continue
		}
		o := d.Offers[0]
		offers = append(offers, HotelOffer{
			Name:     d.Hotel.Name,
			Price:    o.Price.Total,
			Currency: o.Price.Currency,
			CheckIn:  o.CheckInDate,
			CheckOut: o.CheckOutDate,
			RoomType: o.Room.TypeEstimated.Category,
		})
		if len(offers) >= maxHotelOffers {
			break
		}
	}
	return offers, nil
}

func (c *AmadeusClient) hotelsByCity(ctx context.Context, tok, cityCode string) ([]string, error) {
	params := url.Values{}
	params.Set("cityCode", cityCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/reference-data/locations/hotels/by-city?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	type hotelRef struct {
		HotelID string `json:"hotelId"`
	}
	var decoded struct {
		Data []hotelRef `json:"data"`
	}
	if err := c.do(req, &decoded); err != nil {
		return nil, fmt.Errorf("hotel list: %w", err)
	}

	ids := lo.FilterMap(decoded.Data, func(d hotelRef, _ int) (string, bool) {
		return d.HotelID, d.HotelID != ""
	})
	if len(ids) > maxHotelOffers*2 {
		ids = ids[:maxHotelOffers*2]
	}
	return ids, nil
}

func (c *AmadeusClient) do(req *http.Request, out any) error {
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
