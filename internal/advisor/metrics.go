package advisor

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cropadvisor/cropadvisor/internal/telemetry"
)

const instrumentationName = "github.com/cropadvisor/cropadvisor/internal/advisor"

// Metrics holds the facade instruments. A nil *Metrics records nothing.
type Metrics struct {
	recommendations metric.Int64Counter
	downloads       metric.Int64Counter
	synced          metric.Int64Counter
}

// NewMetrics creates the facade instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := telemetry.Meter(instrumentationName)

	recommendations, err := meter.Int64Counter(
		"cropadvisor.recommendations",
		metric.WithDescription("Offline recommendation requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	downloads, err := meter.Int64Counter(
		"cropadvisor.snapshot.downloads",
		metric.WithDescription("Offline snapshot download attempts by outcome"),
		metric.WithUnit("{download}"),
	)
	if err != nil {
		return nil, err
	}

	synced, err := meter.Int64Counter(
		"cropadvisor.records.synced",
		metric.WithDescription("Cached recommendations marked synced"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{recommendations: recommendations, downloads: downloads, synced: synced}, nil
}

func (m *Metrics) recordRecommendation(ctx context.Context, res RecommendationResult) {
	if m == nil {
		return
	}
	outcome := "success"
	if !res.Success {
		outcome = string(res.ErrorType)
	}
	m.recommendations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordDownload(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.downloads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", ok)))
}

func (m *Metrics) recordSynced(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.synced.Add(ctx, int64(n))
}
