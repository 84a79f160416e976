package model

import "time"

// Key lifecycle states. Expiry is not a state of its own: an expired key
// stays "active" until it is revoked or deleted, it just fails validation.
const (
	KeyStatusActive  = "active"
	KeyStatusRevoked = "revoked"
)

// APIKey is the persisted form of a project-scoped upload credential.
// The raw key is never stored; only a SHA-256 hash and a short prefix for
// identification are persisted. Project affiliation is not part of the
// record itself: it is carried by the storage scope the record lives under
// (table scoping column or document collection path).
type APIKey struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	KeyHash     string     `json:"-"` // SHA-256 hex, never expose
	Prefix      string     `json:"prefix"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   string     `json:"created_by,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	RevokedBy   string     `json:"revoked_by,omitempty"`
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool {
	return k.Status == KeyStatusRevoked
}

// ExpiredAt reports whether the key's absolute expiry, if set, lies before t.
func (k *APIKey) ExpiredAt(t time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(t)
}
