package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
)

// Validation failure sentinels. Callers branch with errors.Is; anything that
// does not match one of these is an infrastructure failure, not a verdict
// about the key.
var (
	// ErrMalformedKey rejects keys that fail IsWellFormed. Returned before
	// any hashing or I/O.
	ErrMalformedKey = errors.New("malformed api key")

	// ErrKeyInvalid covers both unknown and revoked keys. The two cases are
	// deliberately indistinguishable so a caller cannot probe which hashes
	// exist in the store.
	ErrKeyInvalid = errors.New("api key invalid or revoked")

	// ErrKeyExpired rejects a key whose hash matched but whose expiry has
	// passed. Distinct from ErrKeyInvalid: the key was real, it aged out.
	ErrKeyExpired = errors.New("api key expired")

	// ErrNotFound is reported by the management operations (revoke,
	// delete, touch) when the key id does not exist in the project.
	ErrNotFound = errors.New("api key not found")
)

// IssueParams carries the caller-supplied fields of a new credential.
type IssueParams struct {
	DisplayName string
	IssuedBy    string
	ExpiresAt   *time.Time
}

// Store is the credential backend contract. Implementations must be safe
// for concurrent use and observably equivalent to each other: the SQL
// reference backend defines the semantics, the document-protocol backend
// matches them over a completely different transport.
type Store interface {
	// Issue creates a credential scoped to projectID and returns the
	// record together with the raw key. The raw key is returned exactly
	// once and never persisted.
	Issue(ctx context.Context, projectID string, params IssueParams) (*model.APIKey, string, error)

	// Validate checks a presented raw key against the project's
	// credentials. Failures are ErrMalformedKey, ErrKeyInvalid or
	// ErrKeyExpired; any other error is a backend fault. The returned
	// record never includes the stored hash beyond what the caller
	// presented itself.
	Validate(ctx context.Context, projectID, rawKey string) (*model.APIKey, error)

	// List returns the project's credentials newest first, including
	// revoked and expired ones. Expired keys are never removed implicitly.
	List(ctx context.Context, projectID string) ([]model.APIKey, error)

	// Revoke marks a credential revoked and records who did it. Revoking
	// an already-revoked credential overwrites the revocation metadata.
	Revoke(ctx context.Context, projectID, keyID, actor string) error

	// Delete permanently removes a credential.
	Delete(ctx context.Context, projectID, keyID string) error

	// TouchLastUsed records a successful use. Best effort: meant to be
	// called off the request path, and failures must never fail the
	// surrounding request.
	TouchLastUsed(ctx context.Context, projectID, keyID string) error

	Close() error
}
