// Package osrm implements the routing.Provider contract against a
// self-hosted OSRM route service instance.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	defaultProfile = "driving"
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OSRM client.
type ClientConfig struct {
	// BaseURL is the OSRM instance base URL (required, e.g. http://osrm:5000).
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

// Client is an OSRM provider.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates an OSRM provider client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:     ProviderName,
			Timeout:  cfg.Timeout,
			Registry: cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetDirections requests driving candidates between two points. OSRM takes
// coordinates as lon,lat pairs in the URL path.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) ([]routing.Candidate, error) {
	endpoint := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=full&steps=true",
		c.baseURL, defaultProfile,
		req.Origin.Lon, req.Origin.Lat,
		req.Destination.Lon, req.Destination.Lat)
	if req.Alternatives {
		endpoint += "&alternatives=true"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach OSRM instance",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	decoded := osrmResponse{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	// OSRM reports routing failures in-band with non-200 status codes and a
	// code field carrying the detail.
	if decoded.Code != codeOK {
		return nil, c.mapCode(decoded.Code, decoded.Message, resp.StatusCode)
	}
	if len(decoded.Routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "empty route set",
			Err:      routing.ErrNoRouteFound,
		}
	}

	candidates := make([]routing.Candidate, 0, len(decoded.Routes))
	for i := range decoded.Routes {
		candidates = append(candidates, c.toCandidate(&decoded.Routes[i]))
	}

	c.logger.Debug().Int("candidates", len(candidates)).Msg("received directions from OSRM")
	return candidates, nil
}

// Geocode is not supported by OSRM. The error wraps the not-found sentinel so
// the orchestrator falls through to a provider that can resolve addresses.
func (c *Client) Geocode(_ context.Context, _ string) (geo.Coordinate, error) {
	return geo.Coordinate{}, &routing.Error{
		Provider: ProviderName,
		Code:     "UNSUPPORTED",
		Message:  "OSRM does not provide geocoding",
		Err:      routing.ErrAddressNotFound,
	}
}

func (c *Client) toCandidate(route *osrmRoute) routing.Candidate {
	candidate := routing.Candidate{
		Provider:         ProviderName,
		GeometryPolyline: route.Geometry,
		DistanceMeters:   int(route.Distance),
		DurationSeconds:  int(route.Duration),
		FetchedAt:        time.Now(),
	}

	for i := range route.Legs {
		leg := &route.Legs[i]
		if candidate.Summary == "" {
			candidate.Summary = leg.Summary
		}
		for j := range leg.Steps {
			step := &leg.Steps[j]
			candidate.Instructions = append(candidate.Instructions, routing.Instruction{
				Text:           describeStep(step),
				DistanceMeters: int(step.Distance),
				DurationSecs:   int(step.Duration),
			})
		}
	}
	return candidate
}

func (c *Client) mapCode(code, message string, status int) error {
	switch {
	case code == codeNoRoute || code == codeNoMatch:
		return &routing.Error{
			Provider: ProviderName,
			Code:     code,
			Message:  "no route found",
			Err:      routing.ErrNoRouteFound,
		}
	case status == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     code,
			Message:  "rate limit exceeded",
			Err:      routing.ErrRateLimited,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     code,
			Message:  message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// describeStep renders a human readable instruction from an OSRM maneuver.
func describeStep(step *osrmStep) string {
	verb := step.Maneuver.Type
	if step.Maneuver.Modifier != "" {
		verb += " " + step.Maneuver.Modifier
	}
	if step.Name == "" {
		return verb
	}
	return verb + " onto " + step.Name
}
