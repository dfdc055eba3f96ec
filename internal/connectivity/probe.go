// Package connectivity reports whether the remote side is reachable.
package connectivity

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/provider/resilience"
)

// Probe reports whether the network is currently usable.
type Probe interface {
	IsOnline(ctx context.Context) bool
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProbeConfig configures an HTTPProbe.
type HTTPProbeConfig struct {
	// URL is requested with HEAD; any non-5xx response counts as online.
	URL string

	// Timeout bounds a single probe (default: 3s).
	Timeout time.Duration

	// HTTPClient defaults to a single-attempt resilient client.
	HTTPClient HTTPDoer

	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// HTTPProbe checks reachability of a URL.
type HTTPProbe struct {
	url        string
	timeout    time.Duration
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewHTTPProbe creates an HTTPProbe.
func NewHTTPProbe(cfg HTTPProbeConfig) *HTTPProbe {
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = resilience.NewClient(resilience.ClientConfig{
			Name:           resilience.ProviderConnectivity,
			Timeout:        cfg.Timeout,
			DisableRetries: true,
			Registry:       cfg.Registry,
			Logger:         cfg.Logger,
		})
	}
	return &HTTPProbe{
		url:        cfg.URL,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// IsOnline issues one HEAD request. Errors and 5xx responses mean offline.
func (p *HTTPProbe) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, http.NoBody)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", p.url).Msg("invalid connectivity probe url")
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug().Err(err).Msg("connectivity probe failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

// StaticProbe reports a fixed, switchable state.
type StaticProbe struct {
	online atomic.Bool
}

// NewStaticProbe creates a StaticProbe with the given initial state.
func NewStaticProbe(online bool) *StaticProbe {
	p := &StaticProbe{}
	p.online.Store(online)
	return p
}

// IsOnline returns the current state.
func (p *StaticProbe) IsOnline(context.Context) bool {
	return p.online.Load()
}

// Set changes the reported state.
func (p *StaticProbe) Set(online bool) {
	p.online.Store(online)
}

// Verify interface compliance.
var (
	_ Probe = (*HTTPProbe)(nil)
	_ Probe = (*StaticProbe)(nil)
)
