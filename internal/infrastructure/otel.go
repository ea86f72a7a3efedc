package infrastructure

import (
	"context"
	"fmt"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry bundles the OTel meter provider wired to the Prometheus exporter.
// Instruments registered on Meter surface on the default Prometheus registry,
// which the /metrics handler exposes.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	Meter    metric.Meter
}

// NewTelemetry builds the metrics pipeline.
func NewTelemetry() (*Telemetry, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &Telemetry{
		provider: provider,
		Meter:    provider.Meter("licensegate"),
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
