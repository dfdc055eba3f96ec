package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropadvisor/cropadvisor/internal/catalog"
	"github.com/cropadvisor/cropadvisor/internal/crop"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileFetcher_YAML(t *testing.T) {
	path := writeFile(t, "crops.yaml", `
crops:
  Rice:
    temperature_range: [20, 35]
    ph_range: [5.5, 7.5]
    water_requirement: high
    market_demand: Very High
    seasons: [Kharif]
`)

	result, err := catalog.NewFileFetcher(path).Fetch(context.Background())
	require.NoError(t, err)

	rice, ok := result.Catalog.Get("Rice")
	require.True(t, ok)
	assert.Equal(t, "Rice", rice.Name)
	assert.Equal(t, crop.LevelHigh, rice.WaterRequirement)
	assert.Equal(t, crop.LevelVeryHigh, rice.MarketDemand)
	require.NotNil(t, rice.PHRange)
	assert.Equal(t, 7.5, rice.PHRange.Max)
	assert.Nil(t, rice.RainfallRange)
	assert.Equal(t, "file:"+path, result.Source)
}

func TestFileFetcher_BareYAML(t *testing.T) {
	path := writeFile(t, "crops.yml", `
Wheat:
  water_requirement: Medium
`)

	result, err := catalog.NewFileFetcher(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Wheat"}, result.Catalog.Names())
}

func TestFileFetcher_JSON(t *testing.T) {
	path := writeFile(t, "crops.json", `{"crops": {"Maize": {"temperature_range": [18, 32]}}}`)

	result, err := catalog.NewFileFetcher(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Maize"}, result.Catalog.Names())
}

func TestFileFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"empty catalog", "crops.yaml", "crops: {}\n"},
		{"inverted range", "crops.yaml", "crops:\n  Rice:\n    ph_range: [8, 5]\n"},
		{"bad score", "crops.json", `{"Rice": {"sustainability_score": 42}}`},
		{"not yaml", "crops.yaml", "crops: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := catalog.NewFileFetcher(path).Fetch(context.Background())
			assert.ErrorIs(t, err, catalog.ErrFetchFailed)
		})
	}
}

func TestFileFetcher_MissingFile(t *testing.T) {
	_, err := catalog.NewFileFetcher(filepath.Join(t.TempDir(), "nope.yaml")).Fetch(context.Background())
	assert.ErrorIs(t, err, catalog.ErrFetchFailed)
}

func TestEmbeddedFetcher(t *testing.T) {
	result, err := catalog.EmbeddedFetcher{}.Fetch(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Catalog.Len(), 10)
	rice, ok := result.Catalog.Get("Rice")
	require.True(t, ok)
	assert.Equal(t, crop.LevelHigh, rice.WaterRequirement)
	assert.Equal(t, []string{"Kharif"}, rice.Seasons)
	assert.Equal(t, "embedded", result.Source)
}

func TestFetcherFunc(t *testing.T) {
	called := false
	f := catalog.FetcherFunc(func(context.Context) (*catalog.FetchResult, error) {
		called = true
		return &catalog.FetchResult{Catalog: crop.Catalog{"Rice": {}}}, nil
	})

	result, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 1, result.Catalog.Len())
}
