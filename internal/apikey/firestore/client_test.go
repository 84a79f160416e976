package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

// recordingHandler captures the last request and replies with a fixed
// status and body.
type recordingHandler struct {
	status int
	body   string

	method string
	path   string
	query  map[string][]string
	auth   string
	reqDoc Document
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.Query()
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&h.reqDoc)
	}

	if h.status != 0 {
		w.WriteHeader(h.status)
	}
	fmt.Fprint(w, h.body)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens, _, _ := newTestTokens(t, 3600)
	client, err := newClient(srv.URL+"/documents", tokens, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestSetDocumentReplacesWithoutMask(t *testing.T) {
	h := &recordingHandler{body: "{}"}
	client, _ := newTestClient(t, h)

	fields := map[string]Value{
		"displayName": stringValue("ci uploader"),
		"status":      stringValue("active"),
	}
	err := client.SetDocument(context.Background(), "projects/proj-a/apiKeys/k1", fields)
	if err != nil {
		t.Fatalf("set document: %v", err)
	}

	if h.method != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", h.method)
	}
	if h.path != "/documents/projects/proj-a/apiKeys/k1" {
		t.Errorf("path = %s", h.path)
	}
	if len(h.query["updateMask.fieldPaths"]) != 0 {
		t.Errorf("unexpected update mask %v on full replace", h.query["updateMask.fieldPaths"])
	}
	if len(h.query["currentDocument.exists"]) != 0 {
		t.Errorf("unexpected precondition %v on create-or-replace", h.query["currentDocument.exists"])
	}
	if !strings.HasPrefix(h.auth, "Bearer token-") {
		t.Errorf("authorization = %q, want bearer token", h.auth)
	}
	if got := h.reqDoc.Fields["displayName"].stringOr(""); got != "ci uploader" {
		t.Errorf("displayName sent = %q", got)
	}
}

func TestPatchDocumentMasksExactlyNamedFields(t *testing.T) {
	h := &recordingHandler{body: "{}"}
	client, _ := newTestClient(t, h)

	fields := map[string]Value{
		"status":    stringValue("revoked"),
		"revokedAt": timestampValue(time.Now()),
		"revokedBy": stringValue("admin@example.com"),
	}
	err := client.PatchDocument(context.Background(), "projects/proj-a/apiKeys/k1", fields)
	if err != nil {
		t.Fatalf("patch document: %v", err)
	}

	want := []string{"revokedAt", "revokedBy", "status"}
	if got := h.query["updateMask.fieldPaths"]; !reflect.DeepEqual(got, want) {
		t.Errorf("updateMask.fieldPaths = %v, want %v", got, want)
	}
	if got := h.query["currentDocument.exists"]; !reflect.DeepEqual(got, []string{"true"}) {
		t.Errorf("currentDocument.exists = %v, want [true]", got)
	}
}

func TestDeleteDocumentTargetsPath(t *testing.T) {
	h := &recordingHandler{body: "{}"}
	client, _ := newTestClient(t, h)

	err := client.DeleteDocument(context.Background(), "projects/proj-a/apiKeys/k1")
	if err != nil {
		t.Fatalf("delete document: %v", err)
	}
	if h.method != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", h.method)
	}
	if h.path != "/documents/projects/proj-a/apiKeys/k1" {
		t.Errorf("path = %s", h.path)
	}
	if got := h.query["currentDocument.exists"]; !reflect.DeepEqual(got, []string{"true"}) {
		t.Errorf("currentDocument.exists = %v, want [true]", got)
	}
}

func TestRunQueryDropsEntriesWithoutDocument(t *testing.T) {
	body := `[
		{"readTime": "2026-01-02T03:04:05Z"},
		{"document": {"name": "projects/x/databases/(default)/documents/projects/proj-a/apiKeys/k1",
			"fields": {"displayName": {"stringValue": "ci uploader"}}}},
		{"readTime": "2026-01-02T03:04:06Z"}
	]`
	h := &recordingHandler{body: body}
	client, _ := newTestClient(t, h)

	docs, err := client.RunQuery(context.Background(), "projects/proj-a", &StructuredQuery{
		From: []CollectionSelector{{CollectionID: "apiKeys"}},
	})
	if err != nil {
		t.Fatalf("run query: %v", err)
	}

	if h.method != http.MethodPost {
		t.Errorf("method = %s, want POST", h.method)
	}
	if h.path != "/documents/projects/proj-a:runQuery" {
		t.Errorf("path = %s", h.path)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	if got := docs[0].Fields["displayName"].stringOr(""); got != "ci uploader" {
		t.Errorf("displayName = %q", got)
	}
}

func TestErrorCarriesStatusAndBody(t *testing.T) {
	h := &recordingHandler{status: http.StatusForbidden, body: `{"error":{"status":"PERMISSION_DENIED"}}`}
	client, _ := newTestClient(t, h)

	err := client.DeleteDocument(context.Background(), "projects/proj-a/apiKeys/k1")
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %q, want status text", err)
	}
	if !strings.Contains(err.Error(), "PERMISSION_DENIED") {
		t.Errorf("error = %q, want response body", err)
	}
}

func TestValueFallbacks(t *testing.T) {
	var unset Value
	if got := unset.stringOr("active"); got != "active" {
		t.Errorf("stringOr on unset = %q, want active", got)
	}
	if unset.timePtr() != nil {
		t.Error("timePtr on unset should be nil")
	}

	fallback := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := unset.timeOr(fallback); !got.Equal(fallback) {
		t.Errorf("timeOr on unset = %v, want fallback", got)
	}

	garbage := "yesterday-ish"
	bad := Value{TimestampValue: &garbage}
	if bad.timePtr() != nil {
		t.Error("timePtr on unparseable timestamp should be nil")
	}

	stamp := timestampValue(fallback)
	if got := stamp.timeOr(time.Now()); !got.Equal(fallback) {
		t.Errorf("timestamp round trip = %v, want %v", got, fallback)
	}
}
