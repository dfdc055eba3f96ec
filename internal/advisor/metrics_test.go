package advisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cropadvisor/cropadvisor/internal/advisor"
	"github.com/cropadvisor/cropadvisor/internal/catalog"
	"github.com/cropadvisor/cropadvisor/internal/connectivity"
	"github.com/cropadvisor/cropadvisor/internal/offline"
	"github.com/cropadvisor/cropadvisor/internal/syncer"
)

func TestService_RecordsOutcomeMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	metrics, err := advisor.NewMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	cache := offline.NewCache(offline.CacheConfig{Now: func() time.Time { return fixedNow }})
	coord := syncer.New(syncer.Config{
		Cache: cache,
		Probe: connectivity.NewStaticProbe(true),
		Fetcher: catalog.FetcherFunc(func(context.Context) (*catalog.FetchResult, error) {
			return &catalog.FetchResult{Catalog: riceCatalog(), Source: "test", FetchedAt: fixedNow}, nil
		}),
	})
	svc := advisor.NewService(advisor.Config{Cache: cache, Syncer: coord, Metrics: metrics})

	assert.False(t, svc.GetOfflineRecommendation(ctx, delhiRequest()).Success)
	require.True(t, svc.DownloadOfflineData(ctx).Success)
	require.True(t, svc.GetOfflineRecommendation(ctx, delhiRequest()).Success)
	require.True(t, svc.SyncCachedRecommendations(ctx).Success)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	outcomes := map[string]int64{}
	var synced int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch m.Name {
				case "cropadvisor.recommendations":
					v, _ := dp.Attributes.Value(attribute.Key("outcome"))
					outcomes[v.AsString()] += dp.Value
				case "cropadvisor.records.synced":
					synced += dp.Value
				}
			}
		}
	}

	assert.Equal(t, map[string]int64{
		"success":                  1,
		"offline_data_unavailable": 1,
	}, outcomes)
	assert.Equal(t, int64(1), synced)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	f := newFixture(t, nil, nil)
	res := f.svc.GetOfflineRecommendation(context.Background(), delhiRequest())
	assert.Equal(t, advisor.ErrorTypeOfflineDataUnavailable, res.ErrorType)
}
