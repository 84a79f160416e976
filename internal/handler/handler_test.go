package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey/sqlstore"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/server/middleware"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/service"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/storage"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	keys    apikey.Store
	objects *storage.Local
	router  chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory key store,
// a local object store under a temp dir, and a chi router with routes
// mounted (no auth middleware).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	keys, err := sqlstore.New("sqlite", "") // in-memory SQLite
	if err != nil {
		t.Fatalf("sqlstore.New: %v", err)
	}
	t.Cleanup(func() { keys.Close() })

	objects, err := storage.NewLocal(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("storage.NewLocal: %v", err)
	}

	keyHandler := NewKeyHandler(keys, quietLogger())
	buildHandler := NewBuildHandler(objects, quietLogger(), nil, 0)
	sysHandler := NewSystemHandler(keys, objects, "test")

	// Mount routes without auth middleware for direct handler testing.
	r := chi.NewRouter()
	r.Get("/healthz", sysHandler.Healthz)
	r.Get("/readyz", sysHandler.Readyz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", sysHandler.Me)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Post("/keys", keyHandler.CreateKey)
			r.Get("/keys", keyHandler.ListKeys)
			r.Post("/keys/{keyID}/revoke", keyHandler.RevokeKey)
			r.Delete("/keys/{keyID}", keyHandler.DeleteKey)

			r.Post("/builds", buildHandler.CreateBuild)
			r.Get("/builds", buildHandler.ListBuilds)
			r.Put("/builds/{buildID}/files/*", buildHandler.UploadFile)
			r.Get("/builds/{buildID}/files", buildHandler.ListFiles)
			r.Get("/builds/{buildID}/files/*", buildHandler.GetFile)
			r.Delete("/builds/{buildID}", buildHandler.DeleteBuild)
		})
	})
	r.Get("/storybooks/{projectID}/{buildID}", buildHandler.ServeViewer)
	r.Get("/storybooks/{projectID}/{buildID}/*", buildHandler.ServeViewer)

	return &testEnv{
		keys:    keys,
		objects: objects,
		router:  r,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// doAsAdmin executes a request carrying an operator identity, the way the
// admin bearer gate attaches it.
func (e *testEnv) doAsAdmin(t *testing.T, operator, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := context.WithValue(req.Context(), middleware.AdminPrincipalKey, &service.AdminPrincipal{Name: operator})
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req.WithContext(ctx))
	return rr
}

// upload PUTs raw file content into a build and asserts it was accepted.
func (e *testEnv) upload(t *testing.T, projectID, buildID, filePath, content string) {
	t.Helper()
	url := "/api/v1/projects/" + projectID + "/builds/" + buildID + "/files/" + filePath
	req := httptest.NewRequest("PUT", url, bytes.NewReader([]byte(content)))
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload %s: status = %d, body = %s", filePath, rr.Code, rr.Body.String())
	}
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}
