// Package telemetry provides OpenTelemetry metrics with a Prometheus
// exporter for the upload service.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Module holds the OTel MeterProvider and exposes a Meter for creating
// metric instruments.
type Module struct {
	provider *sdkmetric.MeterProvider
	meter    otelmetric.Meter
}

// New configures a Prometheus exporter as the metric reader, creates a
// MeterProvider and installs it as the global OTel provider. The
// serviceName becomes the meter scope name.
func New(serviceName string) (*Module, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return &Module{
		provider: provider,
		meter:    provider.Meter(serviceName),
	}, nil
}

// Shutdown flushes and stops the MeterProvider.
func (m *Module) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// MetricsHandler returns the Prometheus exposition handler. Mount it at
// /metrics.
func (m *Module) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Meter returns the OTel Meter for creating metric instruments.
func (m *Module) Meter() otelmetric.Meter {
	return m.meter
}
