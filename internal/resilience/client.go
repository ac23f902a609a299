// Package resilience wraps outbound HTTP calls with a circuit breaker and
// exponential-backoff retries. The report worker only talks to one external
// HTTP service (the artifact store), so there is a single client, tuned for
// large uploads rather than chatty API traffic.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the client for circuit breaker state.
	Name string

	// Timeout bounds each individual attempt. Default: 60s (uploads).
	Timeout time.Duration

	// MaxRetries bounds retry attempts. Default: 3.
	MaxRetries uint64

	// InitialInterval is the first retry backoff. Default: 500ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff. Default: 10s.
	MaxInterval time.Duration
}

// Client is an HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		config:     cfg,
	}
}

// Do executes the request, retrying transient failures (network errors and
// 5xx responses) with exponential backoff. Requests with a body must set
// GetBody (http.NewRequest does this for common reader types) so retries can
// rewind it. Returns ErrCircuitOpen without attempting when the breaker is
// open.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries are bounded by count, not wall time

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			attemptReq := req.Clone(ctx)
			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, bodyErr
				}
				attemptReq.Body = body
			}

			r, doErr := c.httpClient.Do(attemptReq)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 {
				_ = r.Body.Close() //nolint:errcheck // response is discarded before retry
				return nil, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			return err
		}

		lastResp = resp
		return nil
	}

	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}
	return lastResp, nil
}

// ServerError represents an HTTP 5xx response treated as retryable.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// State returns the current circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
