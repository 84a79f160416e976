package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	provider := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("scry-test"))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if m.HTTPRequestTotal == nil || m.KeyValidations == nil || m.TokenExchanges == nil || m.UploadBytes == nil {
		t.Error("instruments missing after NewMetrics")
	}
}

func TestHTTPMetricsNilPassesThrough(t *testing.T) {
	handler := HTTPMetrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/hello", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
}

// The module installs a Prometheus exporter on the default registry, so
// it is created once for the whole test binary.
func TestModuleServesRecordedMetrics(t *testing.T) {
	module, err := New("scry-test")
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	t.Cleanup(func() { _ = module.Shutdown(context.Background()) })

	metrics, err := NewMetrics(module.Meter())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	exp := httptest.NewRecorder()
	module.MetricsHandler().ServeHTTP(exp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(exp.Result().Body)
	if err != nil {
		t.Fatalf("read exposition: %v", err)
	}
	text := string(body)

	if !strings.Contains(text, "scry_http_requests") {
		t.Error("exposition missing request counter")
	}
	if !strings.Contains(text, "scry_http_request_errors") {
		t.Error("exposition missing error counter for 404 response")
	}
	if !strings.Contains(text, `route="/missing"`) {
		t.Error("exposition missing route label")
	}
}
