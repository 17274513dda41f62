// Package resilience wraps outbound provider HTTP calls with a per-provider
// circuit breaker and bounded retry. Fallback across providers is the maps
// orchestrator's job; this package only decides whether a single provider
// call is worth retrying at all.
package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without touching the network when the provider's
// circuit breaker is open.
var ErrCircuitOpen = errors.New("provider circuit breaker is open")

// ClientConfig configures a resilient provider client.
type ClientConfig struct {
	// Name identifies the provider for breaker naming and health tracking.
	Name string

	// Timeout applies per HTTP call, not per logical operation (default 10s).
	Timeout time.Duration

	// MaxRetries bounds retry attempts for transient failures (default 2).
	MaxRetries uint64

	// InitialInterval is the first retry backoff step (default 100ms).
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff (default 2s).
	MaxInterval time.Duration

	// BreakerTimeout is how long the breaker stays open before probing
	// half-open (default 30s).
	BreakerTimeout time.Duration

	// Registry receives success/failure reports for ops visibility. Optional.
	Registry *Registry
}

// Client is an HTTP client guarded by a circuit breaker with retry on
// transient failures. Rate-limit responses (429) are returned immediately:
// retrying a throttled provider only digs the hole deeper, and the
// orchestrator will fall back to the next provider anyway.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	cfg        ClientConfig
	registry   *Registry
}

// NewClient builds a resilient client, filling zero-value config fields
// with defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		cfg:        cfg,
		registry:   cfg.Registry,
	}

	if cfg.Registry != nil {
		cfg.Registry.register(cfg.Name, c)
	}

	return c
}

// Do executes the request, retrying transient failures with exponential
// backoff. The caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	var finalResp *http.Response

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			// 5xx counts as a breaker failure; everything else passes through.
			if r.StatusCode >= 500 {
				return r, &serverError{status: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			c.report(err)
			if resp != nil {
				finalResp = resp
			}
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			finalResp = resp
			c.report(errors.New("rate limited"))
			return nil
		}

		finalResp = resp
		c.report(nil)
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		// A 5xx response that exhausted retries is still useful to the
		// caller's error mapping.
		if finalResp != nil {
			return finalResp, nil
		}
		return nil, err
	}

	return finalResp, nil
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the circuit breaker counters.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

func (c *Client) report(err error) {
	if c.registry != nil {
		c.registry.record(c.name, err)
	}
}

type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return "server error: " + http.StatusText(e.status)
}
