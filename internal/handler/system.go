package handler

import (
	"context"
	"net/http"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/server/middleware"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/storage"
)

// SystemHandler serves the service's own endpoints: liveness, readiness,
// and the identity echo for key holders.
type SystemHandler struct {
	keys    apikey.Store
	objects storage.ObjectStore
	version string
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(keys apikey.Store, objects storage.ObjectStore, version string) *SystemHandler {
	return &SystemHandler{
		keys:    keys,
		objects: objects,
		version: version,
	}
}

// pinger is implemented by store backends that can verify their upstream
// is reachable. Not part of the store contract; probed by assertion.
type pinger interface {
	Ping(ctx context.Context) error
}

// Healthz reports process liveness. Always 200 while the process serves.
// GET /healthz
func (h *SystemHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// Readyz reports whether the service can do useful work: every backend
// that knows how to answer must answer.
// GET /readyz
func (h *SystemHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if p, ok := h.keys.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			checks["keystore"] = err.Error()
			ready = false
		} else {
			checks["keystore"] = "ok"
		}
	}

	if h.objects != nil {
		if err := h.objects.Ping(r.Context()); err != nil {
			checks["storage"] = err.Error()
			ready = false
		} else {
			checks["storage"] = "ok"
		}
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}

// Me echoes the identity behind the presented API key, for CI pipelines
// verifying their credential works before an upload.
// GET /api/v1/me
func (h *SystemHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key_id":     p.KeyID,
		"name":       p.Name,
		"prefix":     p.Prefix,
		"project_id": p.ProjectID,
	})
}
