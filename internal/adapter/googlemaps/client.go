// Package googlemaps wraps the Google Maps Geocoding and Places web APIs
// as signal providers.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
)

// Provider IDs under which this client's providers register.
const (
	ProviderGeocode   = "geocode"
	ProviderHospitals = "hospitals"
)

// Client calls the Google Maps web services.
type Client struct {
	apiKey     string
	httpClient *http.Client
	geocodeURL string
	placesURL  string
	logger     *slog.Logger
}

// NewClient creates a Google Maps client sharing one API key across the
// geocoding and places services.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		geocodeURL: "https://maps.googleapis.com/maps/api/geocode/json",
		placesURL:  "https://maps.googleapis.com/maps/api/place/nearbysearch/json",
		logger:     logger,
	}
}

// Geocode resolves params["location_name"] to coordinates and a formatted
// address. It implements the fetch contract for the "geocode" provider.
func (c *Client) Geocode(ctx context.Context, params map[string]string) ([]domain.Signal, error) {
	q := url.Values{
		"address": {params["location_name"]},
		"key":     {c.apiKey},
	}

	var resp geocodeResponse
	if err := c.get(ctx, ProviderGeocode, c.geocodeURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if err := apiStatus(ProviderGeocode, resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}

	signals := make([]domain.Signal, 0, len(resp.Results))
	for _, r := range resp.Results {
		raw, _ := json.Marshal(r)
		signals = append(signals, domain.Signal{
			ID:               r.PlaceID,
			Provider:         ProviderGeocode,
			Title:            params["location_name"],
			Lat:              r.Geometry.Location.Lat,
			Lon:              r.Geometry.Location.Lng,
			FormattedAddress: r.FormattedAddress,
			Payload:          raw,
		})
	}
	return signals, nil
}

// Hospitals lists hospitals near params["lat"],params["lng"] using a places
// nearby search with a fixed 5km radius.
func (c *Client) Hospitals(ctx context.Context, params map[string]string) ([]domain.Signal, error) {
	q := url.Values{
		"location": {params["lat"] + "," + params["lng"]},
		"radius":   {"5000"},
		"type":     {"hospital"},
		"key":      {c.apiKey},
	}

	var resp placesResponse
	if err := c.get(ctx, ProviderHospitals, c.placesURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if err := apiStatus(ProviderHospitals, resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}

	signals := make([]domain.Signal, 0, len(resp.Results))
	for _, r := range resp.Results {
		raw, _ := json.Marshal(r)
		signals = append(signals, domain.Signal{
			ID:               r.PlaceID,
			Provider:         ProviderHospitals,
			Title:            r.Name,
			Lat:              r.Geometry.Location.Lat,
			Lon:              r.Geometry.Location.Lng,
			FormattedAddress: r.Vicinity,
			Payload:          raw,
		})
	}
	return signals, nil
}

func (c *Client) get(ctx context.Context, provider, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	if err := httpStatus(provider, resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusMalformedResponse, Err: err}
	}
	return nil
}

// httpStatus maps a non-200 HTTP response to the upstream error taxonomy.
func httpStatus(provider string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusRateLimited}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusUnauthorized}
	case code == http.StatusBadRequest:
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusBadRequest}
	case code >= 500:
		return &domain.UpstreamError{
			Provider: provider,
			Status:   domain.StatusNetworkFailure,
			Err:      fmt.Errorf("status %d", code),
		}
	default:
		return &domain.UpstreamError{
			Provider: provider,
			Status:   domain.StatusMalformedResponse,
			Err:      fmt.Errorf("unexpected status %d", code),
		}
	}
}

// apiStatus maps the body-level status code Google services return alongside
// HTTP 200. ZERO_RESULTS is not an error.
func apiStatus(provider, status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT":
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusRateLimited, Err: fmt.Errorf("%s", message)}
	case "REQUEST_DENIED":
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusUnauthorized, Err: fmt.Errorf("%s", message)}
	case "INVALID_REQUEST":
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusBadRequest, Err: fmt.Errorf("%s", message)}
	default:
		return &domain.UpstreamError{
			Provider: provider,
			Status:   domain.StatusMalformedResponse,
			Err:      fmt.Errorf("api status %q: %s", status, message),
		}
	}
}

// Google Maps API response types.

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	PlaceID          string   `json:"place_id"`
	FormattedAddress string   `json:"formatted_address"`
	Geometry         geometry `json:"geometry"`
}

type placesResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Geometry geometry `json:"geometry"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
