// Package firestore implements the credential store against the Firestore
// REST API using nothing but outbound HTTPS and an RSA service-account
// key: it signs its own OAuth2 bearer assertions, exchanges them for
// access tokens, and speaks the document wire protocol directly. No
// vendor SDK, no persistent session. Credentials live one document per
// key under projects/{projectID}/apiKeys/{keyID}, and the observable
// semantics match the SQL backend.
package firestore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
)

const keysCollection = "apiKeys"

// Store is a document-protocol credential backend.
type Store struct {
	client *Client
}

// Open builds a Store from backend configuration. The service-account
// file supplies the signing identity; TokenURL and DocumentsURL default
// to the vendor endpoints when unset. The exchanges counter is optional
// and, when set, counts completed token exchanges.
func Open(cfg apikey.Config, exchanges otelmetric.Int64Counter) (apikey.Store, error) {
	account, err := LoadServiceAccount(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	tokens, err := newTokenSource(account, cfg.TokenURL, httpClient)
	if err != nil {
		return nil, err
	}
	tokens.exchanges = exchanges

	baseURL := cfg.DocumentsURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://firestore.googleapis.com/v1/projects/%s/databases/(default)/documents", account.ProjectID)
	}

	client, err := newClient(baseURL, tokens, httpClient)
	if err != nil {
		return nil, err
	}

	return &Store{client: client}, nil
}

func keyPath(projectID, keyID string) string {
	return "projects/" + projectID + "/apiKeys/" + keyID
}

func keysParent(projectID string) string {
	return "projects/" + projectID
}

// documentID extracts the key id from a document resource name.
func documentID(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func decodeKey(doc Document) *model.APIKey {
	fields := doc.Fields
	return &model.APIKey{
		ID:          documentID(doc.Name),
		DisplayName: fields["displayName"].stringOr(""),
		Prefix:      fields["keyPrefix"].stringOr(""),
		Status:      fields["status"].stringOr(model.KeyStatusActive),
		CreatedAt:   fields["createdAt"].timeOr(time.Now().UTC()),
		CreatedBy:   fields["createdBy"].stringOr(""),
		LastUsedAt:  fields["lastUsedAt"].timePtr(),
		ExpiresAt:   fields["expiresAt"].timePtr(),
		RevokedAt:   fields["revokedAt"].timePtr(),
		RevokedBy:   fields["revokedBy"].stringOr(""),
	}
}

// Issue creates a credential document and returns the raw key once.
func (s *Store) Issue(ctx context.Context, projectID string, params apikey.IssueParams) (*model.APIKey, string, error) {
	rawKey, err := apikey.Generate(projectID)
	if err != nil {
		return nil, "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("generate key id: %w", err)
	}

	now := time.Now().UTC()
	rec := &model.APIKey{
		ID:          id.String(),
		DisplayName: params.DisplayName,
		Prefix:      apikey.Prefix(rawKey),
		Status:      model.KeyStatusActive,
		CreatedAt:   now,
		CreatedBy:   params.IssuedBy,
		ExpiresAt:   params.ExpiresAt,
	}

	fields := map[string]Value{
		"displayName": stringValue(params.DisplayName),
		"keyHash":     stringValue(apikey.Hash(rawKey)),
		"keyPrefix":   stringValue(rec.Prefix),
		"status":      stringValue(model.KeyStatusActive),
		"createdAt":   timestampValue(now),
	}
	if params.IssuedBy != "" {
		fields["createdBy"] = stringValue(params.IssuedBy)
	}
	if params.ExpiresAt != nil {
		fields["expiresAt"] = timestampValue(*params.ExpiresAt)
	}

	if err := s.client.SetDocument(ctx, keyPath(projectID, rec.ID), fields); err != nil {
		return nil, "", fmt.Errorf("store api key: %w", err)
	}

	return rec, rawKey, nil
}

// Validate checks a presented raw key by querying the project's
// collection for its hash. Unknown and revoked keys look identical here
// because the query only ever matches active documents.
func (s *Store) Validate(ctx context.Context, projectID, rawKey string) (*model.APIKey, error) {
	if !apikey.IsWellFormed(rawKey) {
		return nil, apikey.ErrMalformedKey
	}

	docs, err := s.client.RunQuery(ctx, keysParent(projectID), &StructuredQuery{
		From: []CollectionSelector{{CollectionID: keysCollection}},
		Where: whereAll(
			fieldEquals("keyHash", apikey.Hash(rawKey)),
			fieldEquals("status", model.KeyStatusActive),
		),
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("look up api key: %w", err)
	}
	if len(docs) == 0 {
		return nil, apikey.ErrKeyInvalid
	}

	rec := decodeKey(docs[0])
	if rec.ExpiredAt(time.Now()) {
		return nil, apikey.ErrKeyExpired
	}
	return rec, nil
}

// List returns the project's credentials newest first.
func (s *Store) List(ctx context.Context, projectID string) ([]model.APIKey, error) {
	docs, err := s.client.RunQuery(ctx, keysParent(projectID), &StructuredQuery{
		From:    []CollectionSelector{{CollectionID: keysCollection}},
		OrderBy: orderByDesc("createdAt"),
	})
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	keys := make([]model.APIKey, 0, len(docs))
	for _, doc := range docs {
		keys = append(keys, *decodeKey(doc))
	}
	return keys, nil
}

// Revoke overwrites the credential's status and revocation metadata. The
// write is masked to those fields and preconditioned on the document
// existing, so an unknown id reports ErrNotFound without a prior read.
// Re-revoking overwrites revoked_at and revoked_by with the new values.
func (s *Store) Revoke(ctx context.Context, projectID, keyID, actor string) error {
	fields := map[string]Value{
		"status":    stringValue(model.KeyStatusRevoked),
		"revokedAt": timestampValue(time.Now().UTC()),
		"revokedBy": stringValue(actor),
	}
	if err := s.client.PatchDocument(ctx, keyPath(projectID, keyID), fields); err != nil {
		if isNotFound(err) {
			return apikey.ErrNotFound
		}
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}

// Delete removes the credential document.
func (s *Store) Delete(ctx context.Context, projectID, keyID string) error {
	if err := s.client.DeleteDocument(ctx, keyPath(projectID, keyID)); err != nil {
		if isNotFound(err) {
			return apikey.ErrNotFound
		}
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}

// TouchLastUsed stamps the credential's last-used time.
func (s *Store) TouchLastUsed(ctx context.Context, projectID, keyID string) error {
	fields := map[string]Value{
		"lastUsedAt": timestampValue(time.Now().UTC()),
	}
	if err := s.client.PatchDocument(ctx, keyPath(projectID, keyID), fields); err != nil {
		if isNotFound(err) {
			return apikey.ErrNotFound
		}
		return fmt.Errorf("update last used: %w", err)
	}
	return nil
}

// Ping verifies the backend is reachable by exercising the credential
// path: a token fetch hits the OAuth endpoint without touching any
// document. Used by readiness probes; not part of the store contract.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.tokens.Token(ctx)
	return err
}

// Close releases idle connections. The store keeps no other state.
func (s *Store) Close() error {
	s.client.httpClient.CloseIdleConnections()
	return nil
}
