// Package catalog supplies authoritative crop catalogs to the offline cache.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/cropadvisor/cropadvisor/internal/crop"
)

// ErrFetchFailed is returned (wrapped) when a catalog could not be obtained.
var ErrFetchFailed = errors.New("crop catalog fetch failed")

// FetchResult is a successfully fetched catalog.
type FetchResult struct {
	Catalog   crop.Catalog
	Source    string
	FetchedAt time.Time
}

// Fetcher obtains the current crop catalog.
type Fetcher interface {
	Fetch(ctx context.Context) (*FetchResult, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*FetchResult, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (*FetchResult, error) {
	return f(ctx)
}
