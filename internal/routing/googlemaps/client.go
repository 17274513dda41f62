// Package googlemaps implements the routing.Provider contract against the
// Google Maps Directions and Geocoding web APIs.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "google_maps"

	// DefaultBaseURL is the Google Maps web service base URL.
	DefaultBaseURL = "https://maps.googleapis.com"
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Google Maps client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL overrides the API base URL (optional).
	BaseURL string

	// HTTPClient overrides the default resilient client (optional).
	HTTPClient HTTPDoer

	// Timeout is the per-call timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry tracks provider health (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Maps provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a Google Maps provider client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:     ProviderName,
			Timeout:  cfg.Timeout,
			Registry: cfg.Registry,
		})
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetDirections requests driving candidates between two points.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) ([]routing.Candidate, error) {
	query := url.Values{
		"origin":      {fmt.Sprintf("%f,%f", req.Origin.Lat, req.Origin.Lon)},
		"destination": {fmt.Sprintf("%f,%f", req.Destination.Lat, req.Destination.Lon)},
		"mode":        {"driving"},
		"key":         {c.apiKey},
	}
	if req.Alternatives {
		query.Set("alternatives", "true")
	}

	decoded := directionsResponse{}
	if err := c.getJSON(ctx, "/maps/api/directions/json", query, &decoded); err != nil {
		return nil, err
	}

	if err := c.mapStatus(decoded.Status, decoded.ErrorMessage); err != nil {
		return nil, err
	}

	candidates := make([]routing.Candidate, 0, len(decoded.Routes))
	for i := range decoded.Routes {
		route := &decoded.Routes[i]
		if len(route.Legs) == 0 {
			continue
		}

		// Directions between two waypoints always come back as one leg.
		leg := &route.Legs[0]
		candidate := routing.Candidate{
			Provider:         ProviderName,
			GeometryPolyline: route.OverviewPolyline.Points,
			DistanceMeters:   leg.Distance.Value,
			DurationSeconds:  leg.Duration.Value,
			Summary:          route.Summary,
			FetchedAt:        time.Now(),
		}
		for j := range leg.Steps {
			step := &leg.Steps[j]
			candidate.Instructions = append(candidate.Instructions, routing.Instruction{
				Text:           stripTags(step.HTMLInstructions),
				DistanceMeters: step.Distance.Value,
				DurationSecs:   step.Duration.Value,
			})
		}
		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "empty route set",
			Err:      routing.ErrNoRouteFound,
		}
	}

	c.logger.Debug().Int("candidates", len(candidates)).Msg("received directions from Google Maps")
	return candidates, nil
}

// Geocode resolves an address via the Geocoding API.
func (c *Client) Geocode(ctx context.Context, address string) (geo.Coordinate, error) {
	query := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}

	decoded := geocodeResponse{}
	if err := c.getJSON(ctx, "/maps/api/geocode/json", query, &decoded); err != nil {
		return geo.Coordinate{}, err
	}

	if decoded.Status == statusZeroResults || len(decoded.Results) == 0 {
		return geo.Coordinate{}, &routing.Error{
			Provider: ProviderName,
			Code:     "NOT_FOUND",
			Message:  "no geocode match",
			Err:      routing.ErrAddressNotFound,
		}
	}
	if err := c.mapStatus(decoded.Status, ""); err != nil {
		return geo.Coordinate{}, err
	}

	loc := decoded.Results[0].Geometry.Location
	return geo.NewCoordinate(loc.Lat, loc.Lng)
}

// getJSON executes a GET against the given path and decodes the body.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded",
			Err:      routing.ErrRateLimited,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  "provider returned non-OK status",
			Err:      routing.ErrProviderUnavailable,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// mapStatus translates the Google API status field into the routing error
// taxonomy. Google reports failures in-band with HTTP 200.
func (c *Client) mapStatus(status, message string) error {
	switch status {
	case statusOK:
		return nil
	case statusZeroResults, statusNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  "no route found",
			Err:      routing.ErrNoRouteFound,
		}
	case statusOverQueryLimit:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  "query limit exceeded",
			Err:      routing.ErrRateLimited,
		}
	case statusRequestDenied:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  "request denied - check API key configuration",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags removes the HTML markup Google embeds in instruction text.
func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}
