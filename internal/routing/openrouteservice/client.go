// Package openrouteservice implements the routing.Provider contract against
// the OpenRouteService directions and geocoding APIs.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the public ORS API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// defaultProfile is the driving profile used for delivery routing.
	defaultProfile = "driving-car"
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the ORS client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
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

// Client is an OpenRouteService provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates an ORS provider client.
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
	body := orsRequest{
		// ORS takes [lon, lat] pairs (GeoJSON order).
		Coordinates: [][]float64{
			{req.Origin.Lon, req.Origin.Lat},
			{req.Destination.Lon, req.Destination.Lat},
		},
		Instructions: true,
		Geometry:     true,
		Units:        "m",
		Language:     "en",
	}
	if req.Alternatives {
		body.AlternativeRoutes = &alternativeRoutesOpts{TargetCount: 3}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, defaultProfile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Msg("requesting directions from ORS")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapError(resp.StatusCode, respBody)
	}

	var decoded orsResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	candidates := c.toCandidates(&decoded)
	if len(candidates) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "empty route set",
			Err:      routing.ErrNoRouteFound,
		}
	}

	c.logger.Debug().Int("candidates", len(candidates)).Msg("received directions from ORS")
	return candidates, nil
}

// Geocode resolves an address via ORS /geocode/search.
func (c *Client) Geocode(ctx context.Context, address string) (geo.Coordinate, error) {
	endpoint := fmt.Sprintf("%s/geocode/search?%s", c.baseURL, url.Values{
		"api_key": {c.apiKey},
		"text":    {address},
		"size":    {"1"},
	}.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return geo.Coordinate{}, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach geocoding provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return geo.Coordinate{}, c.mapError(resp.StatusCode, respBody)
	}

	var decoded geocodeResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decoding geocode response: %w", err)
	}

	if len(decoded.Features) == 0 || len(decoded.Features[0].Geometry.Coordinates) != 2 {
		return geo.Coordinate{}, &routing.Error{
			Provider: ProviderName,
			Code:     "NOT_FOUND",
			Message:  "no geocode match",
			Err:      routing.ErrAddressNotFound,
		}
	}

	coords := decoded.Features[0].Geometry.Coordinates
	return geo.NewCoordinate(coords[1], coords[0])
}

// mapError translates ORS status codes into the routing error taxonomy.
func (c *Client) mapError(statusCode int, body []byte) error {
	var orsErr orsErrorResponse
	_ = json.Unmarshal(body, &orsErr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded",
			Err:      routing.ErrRateLimited,
		}
	case statusCode == http.StatusNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route found",
			Err:      routing.ErrNoRouteFound,
		}
	case statusCode == http.StatusBadRequest && orsErr.Error.Code == orsErrorCodeNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  orsErr.Error.Message,
			Err:      routing.ErrNoRouteFound,
		}
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "AUTH",
			Message:  "API access denied - check API key configuration",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  orsErr.Error.Message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toCandidates normalizes ORS routes into the common candidate shape.
func (c *Client) toCandidates(resp *orsResponse) []routing.Candidate {
	candidates := make([]routing.Candidate, 0, len(resp.Routes))

	for i := range resp.Routes {
		route := &resp.Routes[i]
		candidate := routing.Candidate{
			Provider:         ProviderName,
			GeometryPolyline: route.Geometry,
			DistanceMeters:   int(route.Summary.Distance),
			DurationSeconds:  int(route.Summary.Duration),
			FetchedAt:        time.Now(),
		}

		for j := range route.Segments {
			for k := range route.Segments[j].Steps {
				step := &route.Segments[j].Steps[k]
				candidate.Instructions = append(candidate.Instructions, routing.Instruction{
					Text:           step.Instruction,
					DistanceMeters: int(step.Distance),
					DurationSecs:   int(step.Duration),
				})
			}
		}

		candidate.Summary = summarize(candidate.Instructions)
		candidates = append(candidates, candidate)
	}

	return candidates
}

// summarize picks the longest step's road name as a human-readable summary.
func summarize(instructions []routing.Instruction) string {
	best := ""
	bestDistance := 0
	for _, inst := range instructions {
		if inst.DistanceMeters > bestDistance && inst.Text != "" {
			best = inst.Text
			bestDistance = inst.DistanceMeters
		}
	}
	return best
}
