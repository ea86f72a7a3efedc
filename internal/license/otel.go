package license

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments for the activation protocol.
type Metrics struct {
	Activations   metric.Int64Counter
	Verifications metric.Int64Counter
	BindRetries   metric.Int64Counter
}

// NewMetrics registers the protocol counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	activations, err := meter.Int64Counter("license_activations_total",
		metric.WithDescription("Activation attempts by outcome code"))
	if err != nil {
		return nil, err
	}
	verifications, err := meter.Int64Counter("license_verifications_total",
		metric.WithDescription("Domain verification lookups by result"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("license_bind_retries_total",
		metric.WithDescription("Domain binding CAS retries"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		Activations:   activations,
		Verifications: verifications,
		BindRetries:   retries,
	}, nil
}

// RecordActivation counts one activation attempt with its outcome code.
func (m *Metrics) RecordActivation(ctx context.Context, code Code) {
	if m == nil {
		return
	}
	m.Activations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", string(code)),
	))
}

// RecordBindRetry counts one lost binding race.
func (m *Metrics) RecordBindRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.BindRetries.Add(ctx, 1)
}

// RecordVerification counts one domain lookup.
func (m *Metrics) RecordVerification(ctx context.Context, found, verified bool) {
	if m == nil {
		return
	}
	m.Verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("found", found),
		attribute.Bool("verified", verified),
	))
}
