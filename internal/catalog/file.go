package catalog

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cropadvisor/cropadvisor/internal/crop"
)

//go:embed data/crops.yaml
var embedded embed.FS

const embeddedPath = "data/crops.yaml"

// FileFetcher reads a catalog from a YAML or JSON file.
type FileFetcher struct {
	Path string
	now  func() time.Time
}

// NewFileFetcher creates a fetcher for path. The format is chosen by extension;
// .json is decoded as JSON and anything else as YAML.
func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{Path: path, now: time.Now}
}

// Fetch reads and validates the file.
func (f *FileFetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetchFailed, f.Path, err)
	}

	var c crop.Catalog
	if strings.EqualFold(filepath.Ext(f.Path), ".json") {
		c, err = crop.Decode(data)
	} else {
		c, err = DecodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, f.Path, err)
	}

	return &FetchResult{Catalog: c, Source: "file:" + f.Path, FetchedAt: f.now().UTC()}, nil
}

// EmbeddedFetcher serves the catalog bundled with the binary.
type EmbeddedFetcher struct{}

// Fetch decodes the bundled catalog.
func (EmbeddedFetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := embedded.ReadFile(embeddedPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	c, err := DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%w: bundled catalog: %w", ErrFetchFailed, err)
	}
	return &FetchResult{Catalog: c, Source: "embedded", FetchedAt: time.Now().UTC()}, nil
}

// DecodeYAML parses a YAML catalog, with or without the top-level "crops" key, and validates it.
func DecodeYAML(data []byte) (crop.Catalog, error) {
	var envelope struct {
		Crops crop.Catalog `yaml:"crops"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding yaml catalog: %w", err)
	}

	c := envelope.Crops
	if len(c) == 0 {
		var bare crop.Catalog
		if err := yaml.Unmarshal(data, &bare); err != nil {
			return nil, fmt.Errorf("decoding yaml catalog: %w", err)
		}
		delete(bare, "crops")
		c = bare
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Verify interface compliance.
var (
	_ Fetcher = (*FileFetcher)(nil)
	_ Fetcher = EmbeddedFetcher{}
)
