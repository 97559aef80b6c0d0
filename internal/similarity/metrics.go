package similarity

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/example/go-textsim/internal/similarity"

// scoreMetrics records score outcomes. With no SDK installed the global meter
// provider is a no-op.
type scoreMetrics struct {
	scores   metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

func newScoreMetrics(meter metric.Meter) *scoreMetrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	m := &scoreMetrics{}

	// Instrument creation only fails for invalid names; a nil instrument is skipped.
	m.scores, _ = meter.Int64Counter("textsim.score.requests",
		metric.WithDescription("Similarity comparisons attempted"))
	m.failures, _ = meter.Int64Counter("textsim.score.failures",
		metric.WithDescription("Similarity comparisons that collapsed to zero"))
	m.duration, _ = meter.Float64Histogram("textsim.score.duration",
		metric.WithDescription("Similarity comparison latency"),
		metric.WithUnit("ms"))

	return m
}

func (m *scoreMetrics) record(ctx context.Context, kind string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))

	if m.scores != nil {
		m.scores.Add(ctx, 1, attrs)
	}

	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}

	if err != nil && m.failures != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("reason", FailureReason(err)),
		))
	}
}
