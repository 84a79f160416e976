package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/server/middleware"
)

// KeyHandler manages the lifecycle of project-scoped upload credentials.
// All routes sit behind the admin bearer gate; the acting operator is
// recorded on issue and revoke.
type KeyHandler struct {
	store  apikey.Store
	logger *slog.Logger
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(store apikey.Store, logger *slog.Logger) *KeyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyHandler{
		store:  store,
		logger: logger,
	}
}

// createKeyRequest is the expected payload for CreateKey. Expiry can be
// given absolutely or as a day count; absolute wins when both are set.
type createKeyRequest struct {
	DisplayName string     `json:"display_name"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	TTLDays     int        `json:"ttl_days,omitempty"`
}

// createKeyResponse includes the plaintext key (shown once only).
type createKeyResponse struct {
	ID          string     `json:"id"`
	Key         string     `json:"api_key"` // Plaintext, shown ONCE.
	Prefix      string     `json:"prefix"`
	DisplayName string     `json:"display_name"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   string     `json:"created_by,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateKey issues a new API key for the project, stores its hash, and
// returns the plaintext key exactly once.
// POST /api/v1/projects/{projectID}/keys
func (h *KeyHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req createKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}

	expiresAt := req.ExpiresAt
	if expiresAt == nil && req.TTLDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, req.TTLDays)
		expiresAt = &t
	}
	if expiresAt != nil && expiresAt.Before(time.Now().UTC()) {
		writeError(w, http.StatusBadRequest, "expires_at is in the past")
		return
	}

	rec, plaintext, err := h.store.Issue(r.Context(), projectID, apikey.IssueParams{
		DisplayName: req.DisplayName,
		IssuedBy:    operatorName(r),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		if errors.Is(err, apikey.ErrInvalidProjectID) {
			writeError(w, http.StatusBadRequest, "Invalid project id: "+projectID)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to issue API key: "+err.Error())
		return
	}

	h.logger.Info("api key issued",
		"project_id", projectID,
		"key_id", rec.ID,
		"prefix", rec.Prefix,
		"issued_by", rec.CreatedBy,
	)

	// Return the plaintext key. This is the ONLY time it will be visible.
	writeJSON(w, http.StatusCreated, createKeyResponse{
		ID:          rec.ID,
		Key:         plaintext,
		Prefix:      rec.Prefix,
		DisplayName: rec.DisplayName,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt,
		CreatedBy:   rec.CreatedBy,
		ExpiresAt:   rec.ExpiresAt,
	})
}

// ListKeys returns the project's keys, newest first, without exposing any
// hash material.
// GET /api/v1/projects/{projectID}/keys
func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	keys, err := h.store.List(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(keys))
	for i := range keys {
		resources = append(resources, apiKeyToMap(&keys[i]))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count: len(resources),
		},
	})
}

// RevokeKey marks a key revoked, recording the acting operator. Revoking
// again overwrites the revocation metadata.
// POST /api/v1/projects/{projectID}/keys/{keyID}/revoke
func (h *KeyHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	keyID := chi.URLParam(r, "keyID")

	if err := h.store.Revoke(r.Context(), projectID, keyID, operatorName(r)); err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found: "+keyID)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key: "+err.Error())
		return
	}

	h.logger.Info("api key revoked", "project_id", projectID, "key_id", keyID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}

// DeleteKey permanently removes a key.
// DELETE /api/v1/projects/{projectID}/keys/{keyID}
func (h *KeyHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	keyID := chi.URLParam(r, "keyID")

	if err := h.store.Delete(r.Context(), projectID, keyID); err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found: "+keyID)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete API key: "+err.Error())
		return
	}

	h.logger.Info("api key deleted", "project_id", projectID, "key_id", keyID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key deleted",
	})
}

// operatorName is the admin principal behind the request, for audit
// fields. Empty when the admin gate is not in front of the route.
func operatorName(r *http.Request) string {
	if p := middleware.GetAdminPrincipal(r.Context()); p != nil {
		return p.Name
	}
	return ""
}

// apiKeyToMap serializes a key record for list responses. Fields are
// enumerated explicitly; hash material is never among them.
func apiKeyToMap(key *model.APIKey) map[string]interface{} {
	m := map[string]interface{}{
		"id":           key.ID,
		"display_name": key.DisplayName,
		"prefix":       key.Prefix,
		"status":       key.Status,
		"created_at":   key.CreatedAt,
	}
	if key.CreatedBy != "" {
		m["created_by"] = key.CreatedBy
	}
	if key.LastUsedAt != nil {
		m["last_used_at"] = key.LastUsedAt
	}
	if key.ExpiresAt != nil {
		m["expires_at"] = key.ExpiresAt
	}
	if key.RevokedAt != nil {
		m["revoked_at"] = key.RevokedAt
	}
	if key.RevokedBy != "" {
		m["revoked_by"] = key.RevokedBy
	}
	return m
}
