package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrBodyNotReplayable is returned when a request with a body cannot be retried.
	ErrBodyNotReplayable = errors.New("request body cannot be replayed for retry")
)

// Provider names used by the outbound clients.
const (
	ProviderCropCatalog  = "crop-catalog"
	ProviderSyncUpload   = "sync-upload"
	ProviderConnectivity = "connectivity"
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming and the registry.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries uint64

	// DisableRetries sends each request exactly once.
	DisableRetries bool

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the breaker policy.
	// If nil, uses BreakerConfigFor(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the client and its success/failure outcomes.
	Registry *Registry

	// Metrics, when set, records per-request outcomes.
	Metrics *ProviderMetrics

	Logger zerolog.Logger
}

// DefaultClientConfig returns the client defaults and the breaker policy for name.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := BreakerConfigFor(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cbConfig,
		Logger:          zerolog.Nop(),
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
	logger         zerolog.Logger
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	logger := cfg.Logger.With().Str("provider", cfg.Name).Logger()

	cbConfig := BreakerConfigFor(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	if cbConfig.Name == "" {
		cbConfig.Name = cfg.Name
	}
	if cbConfig.OnStateChange == nil {
		cbConfig.OnStateChange = logStateChange(logger)
	}
	cb := NewCircuitBreaker[*http.Response](cbConfig) //nolint:bodyclose // type param, not response

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: cb,
		config:         cfg,
		logger:         logger,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes an HTTP request with circuit breaker protection and retry logic.
// The request is retried on transient failures (5xx, network errors) with exponential backoff.
// Returns immediately with ErrCircuitOpen if the circuit breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
// Requests with a body are replayed through req.GetBody on retry.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil && !c.config.DisableRetries {
		return nil, ErrBodyNotReplayable
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if !c.config.DisableRetries {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.config.InitialInterval
		bo.MaxInterval = c.config.MaxInterval
		bo.MaxElapsedTime = 0 // bounded by MaxRetries
		policy = backoff.WithMaxRetries(bo, c.config.MaxRetries)
	}
	policy = backoff.WithContext(policy, ctx)

	start := time.Now()
	attempt := 0
	var lastResp *http.Response

	operation := func() error {
		attempt++
		if lastResp != nil {
			_ = lastResp.Body.Close()
			lastResp = nil
		}

		reqClone := req.Clone(ctx)
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(fmt.Errorf("replay body: %w", err))
			}
			reqClone.Body = body
		}

		// 5xx responses are returned as errors so they count against the breaker.
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller is responsible for closing
			r, err := c.httpClient.Do(reqClone)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			c.logger.Debug().Err(err).Int("attempt", attempt).Str("url", req.URL.Redacted()).Msg("provider request failed")
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	c.observe(ctx, start, lastResp, err)

	if err != nil {
		// A 5xx that exhausted retries is handed back to the caller.
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}
	return lastResp, nil
}

func (c *Client) observe(ctx context.Context, start time.Time, resp *http.Response, err error) {
	outcome := "success"
	switch {
	case errors.Is(err, ErrCircuitOpen):
		outcome = "circuit_open"
	case err != nil:
		outcome = "error"
	case resp != nil && resp.StatusCode >= 400:
		outcome = "http_error"
	}

	if c.config.Registry != nil {
		if outcome == "success" {
			c.config.Registry.RecordSuccess(c.config.Name)
		} else {
			failure := err
			if failure == nil && resp != nil {
				failure = fmt.Errorf("http status %d", resp.StatusCode)
			}
			c.config.Registry.RecordFailure(c.config.Name, failure)
		}
	}
	if c.config.Metrics != nil {
		c.config.Metrics.Record(ctx, c.config.Name, outcome, time.Since(start))
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
