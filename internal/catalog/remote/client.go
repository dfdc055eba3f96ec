// Package remote fetches the authoritative crop catalog over HTTP.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/catalog"
	"github.com/cropadvisor/cropadvisor/internal/crop"
	"github.com/cropadvisor/cropadvisor/internal/provider/resilience"
)

// maxCatalogBytes bounds the response body read from the catalog endpoint.
const maxCatalogBytes = 8 << 20

// ClientConfig holds configuration for the remote catalog client.
type ClientConfig struct {
	// BaseURL is the catalog service base URL. The catalog is read from BaseURL + "/crops".
	BaseURL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 15s).
	Timeout time.Duration

	Registry *resilience.Registry
	Metrics  *resilience.ProviderMetrics
	Logger   zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches the crop catalog from a remote service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new remote catalog client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            resilience.ProviderCropCatalog,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
			Metrics:         cfg.Metrics,
			Logger:          cfg.Logger,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Fetch downloads and validates the catalog.
func (c *Client) Fetch(ctx context.Context) (*catalog.FetchResult, error) {
	url := c.baseURL + "/crops"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", catalog.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from catalog endpoint", catalog.ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", catalog.ErrFetchFailed, err)
	}

	crops, err := crop.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrFetchFailed, err)
	}

	c.logger.Info().Int("crops", crops.Len()).Str("url", url).Msg("fetched remote crop catalog")

	return &catalog.FetchResult{
		Catalog:   crops,
		Source:    url,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Verify interface compliance.
var _ catalog.Fetcher = (*Client)(nil)
