package telemetry

import (
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments shared across the service.
// Instruments are created once at startup and handed to middleware and
// handlers; a nil *Metrics disables recording everywhere it is accepted.
type Metrics struct {
	// HTTP metrics
	HTTPRequestDuration otelmetric.Float64Histogram
	HTTPRequestTotal    otelmetric.Int64Counter
	HTTPRequestErrors   otelmetric.Int64Counter

	// Credential metrics
	KeyValidations otelmetric.Int64Counter
	TokenExchanges otelmetric.Int64Counter

	// Upload metrics
	UploadBytes   otelmetric.Int64Counter
	BuildsCreated otelmetric.Int64Counter
}

// NewMetrics creates all metric instruments from the given Meter.
func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"scry.http.request.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestTotal, err = meter.Int64Counter(
		"scry.http.requests",
		otelmetric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestErrors, err = meter.Int64Counter(
		"scry.http.request.errors",
		otelmetric.WithDescription("HTTP request errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, err
	}

	m.KeyValidations, err = meter.Int64Counter(
		"scry.key.validations",
		otelmetric.WithDescription("API key validations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.TokenExchanges, err = meter.Int64Counter(
		"scry.token.exchanges",
		otelmetric.WithDescription("OAuth2 token exchanges run by the document backend"),
	)
	if err != nil {
		return nil, err
	}

	m.UploadBytes, err = meter.Int64Counter(
		"scry.upload.bytes",
		otelmetric.WithUnit("By"),
		otelmetric.WithDescription("Bytes accepted by file uploads"),
	)
	if err != nil {
		return nil, err
	}

	m.BuildsCreated, err = meter.Int64Counter(
		"scry.builds.created",
		otelmetric.WithDescription("Storybook builds created"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
