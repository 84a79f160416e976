package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAPIKeyKeyHashNotInJSON(t *testing.T) {
	key := APIKey{
		ID:          "0192b2f0-0000-7000-8000-000000000001",
		DisplayName: "ci uploader",
		KeyHash:     "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		Prefix:      "scry_proj-a_",
		Status:      KeyStatusActive,
		CreatedAt:   time.Now(),
	}

	b, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if _, ok := m["key_hash"]; ok {
		t.Error("key_hash should NOT appear in JSON output (json:\"-\" tag)")
	}
	if _, ok := m["prefix"]; !ok {
		t.Error("prefix should be present in JSON output")
	}
	if _, ok := m["display_name"]; !ok {
		t.Error("display_name should be present in JSON output")
	}

	// Optional revocation metadata is omitted while the key is active.
	if _, ok := m["revoked_at"]; ok {
		t.Error("revoked_at should be omitted when nil")
	}
	if _, ok := m["revoked_by"]; ok {
		t.Error("revoked_by should be omitted when empty")
	}
}

func TestAPIKeyRevoked(t *testing.T) {
	key := APIKey{Status: KeyStatusActive}
	if key.Revoked() {
		t.Error("active key reported as revoked")
	}
	key.Status = KeyStatusRevoked
	if !key.Revoked() {
		t.Error("revoked key not reported as revoked")
	}
}

func TestAPIKeyExpiredAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	key := APIKey{}
	if key.ExpiredAt(now) {
		t.Error("key without expiry reported as expired")
	}

	past := now.Add(-time.Hour)
	key.ExpiresAt = &past
	if !key.ExpiredAt(now) {
		t.Error("key expired an hour ago not reported as expired")
	}

	future := now.Add(time.Hour)
	key.ExpiresAt = &future
	if key.ExpiredAt(now) {
		t.Error("key expiring in an hour reported as expired")
	}
}

func TestErrorResponseJSON(t *testing.T) {
	er := ErrorResponse{
		Error: ErrorDetail{
			Code:    403,
			Kind:    "project_mismatch",
			Message: "API key does not belong to this project",
		},
	}

	b, err := json.Marshal(er)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	errObj, ok := m["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected 'error' key to be an object")
	}
	if errObj["code"] != float64(403) {
		t.Errorf("error.code = %v, want 403", errObj["code"])
	}
	if errObj["kind"] != "project_mismatch" {
		t.Errorf("error.kind = %v, want %q", errObj["kind"], "project_mismatch")
	}

	// Kind and context are omitted when unset.
	er2 := ErrorResponse{Error: ErrorDetail{Code: 500, Message: "internal error"}}
	b2, err := json.Marshal(er2)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m2 map[string]interface{}
	if err := json.Unmarshal(b2, &m2); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	errObj2 := m2["error"].(map[string]interface{})
	if _, ok := errObj2["kind"]; ok {
		t.Error("kind should be omitted when empty")
	}
	if _, ok := errObj2["context"]; ok {
		t.Error("context should be omitted when nil")
	}
}

func TestListResponseJSON(t *testing.T) {
	lr := ListResponse{
		Resource: []map[string]interface{}{
			{"id": "a", "prefix": "scry_demo_ab"},
			{"id": "b", "prefix": "scry_demo_cd"},
		},
		Meta: &ResponseMeta{Count: 2, TookMs: 0.4},
	}

	b, err := json.Marshal(lr)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	resource, ok := m["resource"].([]interface{})
	if !ok {
		t.Fatal("resource should be an array")
	}
	if len(resource) != 2 {
		t.Errorf("resource length = %d, want 2", len(resource))
	}
	meta, ok := m["meta"].(map[string]interface{})
	if !ok {
		t.Fatal("meta should be an object")
	}
	if meta["count"] != float64(2) {
		t.Errorf("meta.count = %v, want 2", meta["count"])
	}

	lr2 := ListResponse{Resource: []map[string]interface{}{}}
	b2, err := json.Marshal(lr2)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m2 map[string]interface{}
	if err := json.Unmarshal(b2, &m2); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if _, ok := m2["meta"]; ok {
		t.Error("meta should be omitted when nil")
	}
}
