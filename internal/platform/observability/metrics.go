package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "finitefield.org/toolskit"

// Metrics holds the counters recorded by the tool handlers. The zero value is
// unusable; build one with NewMetrics.
type Metrics struct {
	calculations       metric.Int64Counter
	validationFailures metric.Int64Counter
	conversions        metric.Int64Counter
	scores             metric.Int64Counter
}

// NewMetrics registers the counters on provider, or the global provider when nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.calculations, err = meter.Int64Counter("toolskit.calculations",
		metric.WithDescription("Completed calculations by tool."),
		metric.WithUnit("{calculation}")); err != nil {
		return nil, err
	}
	if m.validationFailures, err = meter.Int64Counter("toolskit.validation_failures",
		metric.WithDescription("Submissions rejected by field validation."),
		metric.WithUnit("{submission}")); err != nil {
		return nil, err
	}
	if m.conversions, err = meter.Int64Counter("toolskit.conversions",
		metric.WithDescription("Stateless unit conversions by category."),
		metric.WithUnit("{conversion}")); err != nil {
		return nil, err
	}
	if m.scores, err = meter.Int64Counter("toolskit.scores",
		metric.WithDescription("Timed-test scores recorded, split by new best."),
		metric.WithUnit("{score}")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Calculation counts a successful calculation.
func (m *Metrics) Calculation(ctx context.Context, tool string) {
	if m == nil {
		return
	}
	m.calculations.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// ValidationFailure counts a rejected submission.
func (m *Metrics) ValidationFailure(ctx context.Context, tool string, fields int) {
	if m == nil {
		return
	}
	m.validationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Int("fields", fields),
	))
}

// Conversion counts a stateless conversion.
func (m *Metrics) Conversion(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.conversions.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

// Score counts a recorded score.
func (m *Metrics) Score(ctx context.Context, tool string, improved bool) {
	if m == nil {
		return
	}
	m.scores.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("new_best", improved),
	))
}
