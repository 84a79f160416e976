package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
)

// fakeFirestore is an in-memory document endpoint. It honors update
// masks, evaluates equality filters and ordering, and pads runQuery
// responses with documentless progress entries the way the real endpoint
// does.
type fakeFirestore struct {
	mu       sync.Mutex
	docs     map[string]map[string]Value
	lastMask []string
	requests int
}

func newFakeFirestore() *fakeFirestore {
	return &fakeFirestore{docs: make(map[string]map[string]Value)}
}

func (f *fakeFirestore) seed(path string, fields map[string]Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[path] = fields
}

func (f *fakeFirestore) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeFirestore) mask() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMask
}

func (f *fakeFirestore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	path := strings.TrimPrefix(r.URL.Path, "/documents/")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":runQuery"):
		f.runQuery(w, r, strings.TrimSuffix(path, ":runQuery"))
	case r.Method == http.MethodPatch:
		f.patch(w, r, path)
	case r.Method == http.MethodDelete:
		if f.preconditionFails(w, r, path) {
			return
		}
		delete(f.docs, path)
		fmt.Fprint(w, "{}")
	default:
		http.NotFound(w, r)
	}
}

// preconditionFails enforces currentDocument.exists=true the way the real
// endpoint does: the write is rejected with NOT_FOUND when the document
// is missing.
func (f *fakeFirestore) preconditionFails(w http.ResponseWriter, r *http.Request, path string) bool {
	if r.URL.Query().Get("currentDocument.exists") != "true" {
		return false
	}
	if _, ok := f.docs[path]; ok {
		return false
	}
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `{"error":{"code":404,"status":"NOT_FOUND","message":"no entity to update: %s"}}`, path)
	return true
}

func (f *fakeFirestore) patch(w http.ResponseWriter, r *http.Request, path string) {
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mask := r.URL.Query()["updateMask.fieldPaths"]
	f.lastMask = mask

	if f.preconditionFails(w, r, path) {
		return
	}

	if len(mask) == 0 {
		f.docs[path] = doc.Fields
	} else {
		existing, ok := f.docs[path]
		if !ok {
			existing = make(map[string]Value)
			f.docs[path] = existing
		}
		for _, name := range mask {
			if v, ok := doc.Fields[name]; ok {
				existing[name] = v
			}
		}
	}
	fmt.Fprint(w, "{}")
}

func (f *fakeFirestore) runQuery(w http.ResponseWriter, r *http.Request, parent string) {
	var req runQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	query := req.StructuredQuery
	prefix := parent + "/" + query.From[0].CollectionID + "/"

	type entry struct {
		path   string
		fields map[string]Value
	}
	var matches []entry
	for path, fields := range f.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(strings.TrimPrefix(path, prefix), "/") {
			continue
		}
		if !matchesFilter(fields, query.Where) {
			continue
		}
		matches = append(matches, entry{path: path, fields: fields})
	}

	if len(query.OrderBy) > 0 {
		ob := query.OrderBy[0]
		desc := ob.Direction == "DESCENDING"
		sort.Slice(matches, func(i, j int) bool {
			ti := matches[i].fields[ob.Field.FieldPath].timeOr(time.Time{})
			tj := matches[j].fields[ob.Field.FieldPath].timeOr(time.Time{})
			if desc {
				return ti.After(tj)
			}
			return ti.Before(tj)
		})
	}
	if query.Limit > 0 && len(matches) > query.Limit {
		matches = matches[:query.Limit]
	}

	out := make([]map[string]interface{}, 0, len(matches)+1)
	for _, m := range matches {
		out = append(out, map[string]interface{}{
			"document": Document{
				Name:   "projects/scry-test/databases/(default)/documents/" + m.path,
				Fields: m.fields,
			},
		})
	}
	out = append(out, map[string]interface{}{"readTime": time.Now().UTC().Format(time.RFC3339Nano)})

	_ = json.NewEncoder(w).Encode(out)
}

func matchesFilter(fields map[string]Value, filter *Filter) bool {
	if filter == nil {
		return true
	}
	if filter.CompositeFilter != nil {
		for _, sub := range filter.CompositeFilter.Filters {
			if !matchesFilter(fields, &sub) {
				return false
			}
		}
		return true
	}
	if ff := filter.FieldFilter; ff != nil {
		v, ok := fields[ff.Field.FieldPath]
		if !ok || v.StringValue == nil || ff.Value.StringValue == nil {
			return false
		}
		return *v.StringValue == *ff.Value.StringValue
	}
	return false
}

type storeFixture struct {
	store  apikey.Store
	fs     *fakeFirestore
	tokens *fakeTokenEndpoint
}

func newTestStore(t *testing.T) *storeFixture {
	return newTestStoreTTL(t, 3600)
}

func newTestStoreTTL(t *testing.T, tokenTTL int64) *storeFixture {
	t.Helper()

	_, pemKey := testSigningKey(t)
	tokens := &fakeTokenEndpoint{expiresIn: tokenTTL}
	tokenSrv := httptest.NewServer(tokens)
	t.Cleanup(tokenSrv.Close)

	fs := newFakeFirestore()
	docSrv := httptest.NewServer(fs)
	t.Cleanup(docSrv.Close)

	account := map[string]string{
		"type":         "service_account",
		"project_id":   "scry-test",
		"client_email": "uploader@scry-test.iam.gserviceaccount.com",
		"private_key":  pemKey,
		"token_uri":    tokenSrv.URL,
	}
	data, err := json.Marshal(account)
	if err != nil {
		t.Fatalf("marshal service account: %v", err)
	}
	creds := filepath.Join(t.TempDir(), "service-account.json")
	if err := os.WriteFile(creds, data, 0o600); err != nil {
		t.Fatalf("write service account: %v", err)
	}

	store, err := Open(apikey.Config{
		Backend:         "firestore",
		CredentialsFile: creds,
		DocumentsURL:    docSrv.URL + "/documents",
	}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return &storeFixture{store: store, fs: fs, tokens: tokens}
}

func TestIssueValidateRoundTrip(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	rec, rawKey, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{
		DisplayName: "ci uploader",
		IssuedBy:    "admin@example.com",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(rawKey, "scry_proj-a_") {
		t.Errorf("raw key %q missing scheme and project", rawKey)
	}
	if rec.KeyHash != "" {
		t.Error("issued record exposes the key hash")
	}

	got, err := fx.store.Validate(ctx, "proj-a", rawKey)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("validated id = %s, want %s", got.ID, rec.ID)
	}
	if got.DisplayName != "ci uploader" {
		t.Errorf("validated name = %q", got.DisplayName)
	}
	if got.Prefix != rawKey[:12] {
		t.Errorf("prefix = %q, want %q", got.Prefix, rawKey[:12])
	}
	if got.KeyHash != "" {
		t.Error("validated record exposes the key hash")
	}
}

func TestValidateFailureReasons(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	if _, err := fx.store.Validate(ctx, "proj-a", "not-a-real-key"); !errors.Is(err, apikey.ErrMalformedKey) {
		t.Errorf("malformed key: err = %v, want ErrMalformedKey", err)
	}
	if got := fx.fs.requestCount(); got != 0 {
		t.Errorf("malformed key reached the document endpoint (%d requests)", got)
	}
	if got := fx.tokens.count(); got != 0 {
		t.Errorf("malformed key triggered %d token exchanges", got)
	}

	unknown, err := apikey.Generate("proj-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := fx.store.Validate(ctx, "proj-a", unknown); !errors.Is(err, apikey.ErrKeyInvalid) {
		t.Errorf("unknown key: err = %v, want ErrKeyInvalid", err)
	}

	_, rawKey, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{DisplayName: "ci uploader"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := fx.store.Validate(ctx, "proj-b", rawKey); !errors.Is(err, apikey.ErrKeyInvalid) {
		t.Errorf("wrong project: err = %v, want ErrKeyInvalid", err)
	}
}

func TestRevokeCollapsesToInvalid(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	rec, rawKey, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{DisplayName: "ci uploader"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := fx.store.Revoke(ctx, "proj-a", rec.ID, "admin@example.com"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := fx.store.Validate(ctx, "proj-a", rawKey); !errors.Is(err, apikey.ErrKeyInvalid) {
		t.Errorf("revoked key: err = %v, want ErrKeyInvalid", err)
	}

	wantMask := []string{"revokedAt", "revokedBy", "status"}
	if got := fx.fs.mask(); !reflect.DeepEqual(got, wantMask) {
		t.Errorf("revoke mask = %v, want %v", got, wantMask)
	}

	keys, err := fx.store.List(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	got := keys[0]
	if got.Status != model.KeyStatusRevoked {
		t.Errorf("status = %q, want revoked", got.Status)
	}
	if got.RevokedAt == nil {
		t.Error("revokedAt not set")
	}
	if got.RevokedBy != "admin@example.com" {
		t.Errorf("revokedBy = %q", got.RevokedBy)
	}
	if got.DisplayName != "ci uploader" {
		t.Errorf("masked revoke clobbered displayName: %q", got.DisplayName)
	}
}

func TestManagementOpsOnMissingKey(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	// The existence precondition on writes makes the missing-id behavior
	// line up with the SQL backend: no read round-trip, still ErrNotFound.
	if err := fx.store.Revoke(ctx, "proj-a", "no-such-id", "admin@example.com"); !errors.Is(err, apikey.ErrNotFound) {
		t.Errorf("Revoke missing: got %v, want ErrNotFound", err)
	}
	if err := fx.store.Delete(ctx, "proj-a", "no-such-id"); !errors.Is(err, apikey.ErrNotFound) {
		t.Errorf("Delete missing: got %v, want ErrNotFound", err)
	}
	if err := fx.store.TouchLastUsed(ctx, "proj-a", "no-such-id"); !errors.Is(err, apikey.ErrNotFound) {
		t.Errorf("TouchLastUsed missing: got %v, want ErrNotFound", err)
	}

	// Scoping: an id that exists under another project is missing here.
	rec, _, err := fx.store.Issue(ctx, "proj-b", apikey.IssueParams{DisplayName: "ci uploader"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := fx.store.Revoke(ctx, "proj-a", rec.ID, "admin@example.com"); !errors.Is(err, apikey.ErrNotFound) {
		t.Errorf("Revoke cross-project: got %v, want ErrNotFound", err)
	}
}

func TestExpiredKeyFailsDistinctly(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	expired := time.Now().Add(-time.Hour)
	_, rawKey, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{
		DisplayName: "stale key",
		ExpiresAt:   &expired,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := fx.store.Validate(ctx, "proj-a", rawKey); !errors.Is(err, apikey.ErrKeyExpired) {
		t.Errorf("expired key: err = %v, want ErrKeyExpired", err)
	}

	// Expiry is a validation verdict, not a lifecycle change.
	keys, err := fx.store.List(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0].Status != model.KeyStatusActive {
		t.Errorf("expired key should stay listed as active, got %+v", keys)
	}
}

func TestListNewestFirstWithoutHashes(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	names := []string{"first", "second", "third"}
	for _, name := range names {
		if _, _, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{DisplayName: name}); err != nil {
			t.Fatalf("issue %s: %v", name, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, _, err := fx.store.Issue(ctx, "proj-b", apikey.IssueParams{DisplayName: "other project"}); err != nil {
		t.Fatalf("issue other project: %v", err)
	}

	keys, err := fx.store.List(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	for i, want := range []string{"third", "second", "first"} {
		if keys[i].DisplayName != want {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i].DisplayName, want)
		}
		if keys[i].KeyHash != "" {
			t.Errorf("keys[%d] exposes the key hash", i)
		}
	}
}

func TestTouchLastUsed(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	rec, _, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{DisplayName: "ci uploader"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := fx.store.TouchLastUsed(ctx, "proj-a", rec.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	if got := fx.fs.mask(); !reflect.DeepEqual(got, []string{"lastUsedAt"}) {
		t.Errorf("touch mask = %v, want [lastUsedAt]", got)
	}

	keys, err := fx.store.List(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0].LastUsedAt == nil {
		t.Error("lastUsedAt not recorded")
	}
}

func TestDeleteRemovesPermanently(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	rec, rawKey, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{DisplayName: "ci uploader"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := fx.store.Delete(ctx, "proj-a", rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := fx.store.Validate(ctx, "proj-a", rawKey); !errors.Is(err, apikey.ErrKeyInvalid) {
		t.Errorf("deleted key: err = %v, want ErrKeyInvalid", err)
	}
	keys, err := fx.store.List(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("got %d keys after delete, want 0", len(keys))
	}
}

func TestDecodeRepairsMissingFields(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	rawKey, err := apikey.Generate("proj-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// A document written by an earlier tool: hash and status only.
	fx.fs.seed("projects/proj-a/apiKeys/legacy-key", map[string]Value{
		"keyHash": stringValue(apikey.Hash(rawKey)),
		"status":  stringValue(model.KeyStatusActive),
	})

	rec, err := fx.store.Validate(ctx, "proj-a", rawKey)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rec.ID != "legacy-key" {
		t.Errorf("id = %q, want legacy-key", rec.ID)
	}
	if rec.DisplayName != "" {
		t.Errorf("displayName = %q, want empty fallback", rec.DisplayName)
	}
	if age := time.Since(rec.CreatedAt); age < 0 || age > time.Minute {
		t.Errorf("createdAt fallback = %v, want roughly now", rec.CreatedAt)
	}

	// Status falls back to active when the field is missing entirely.
	fx.fs.seed("projects/proj-a/apiKeys/statusless", map[string]Value{
		"displayName": stringValue("no status"),
		"createdAt":   timestampValue(time.Now().UTC()),
	})
	keys, err := fx.store.List(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var found bool
	for _, k := range keys {
		if k.ID == "statusless" {
			found = true
			if k.Status != model.KeyStatusActive {
				t.Errorf("status fallback = %q, want active", k.Status)
			}
		}
	}
	if !found {
		t.Error("seeded document missing from list")
	}
}

func TestValidateReusesCachedToken(t *testing.T) {
	fx := newTestStore(t)
	ctx := context.Background()

	_, rawKey, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{DisplayName: "ci uploader"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := fx.store.Validate(ctx, "proj-a", rawKey); err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
	}

	// Issue plus both validations ride the same cached token.
	if got := fx.tokens.count(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
}

func TestValidateRefreshesExpiredToken(t *testing.T) {
	fx := newTestStoreTTL(t, 1)
	ctx := context.Background()

	_, rawKey, err := fx.store.Issue(ctx, "proj-a", apikey.IssueParams{DisplayName: "ci uploader"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	before := fx.tokens.count()
	if _, err := fx.store.Validate(ctx, "proj-a", rawKey); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if got := fx.tokens.count(); got != before+1 {
		t.Errorf("exchanges = %d, want %d", got, before+1)
	}
}
