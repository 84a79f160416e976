// Package apikey defines the project-scoped upload credential: the raw key
// format, the pure encode/hash helpers shared by every backend, and the
// Store contract the backends implement.
//
// Raw keys look like
//
//	scry_<projectID>_<secret>
//
// where the secret is 32 bytes from a cryptographically secure source,
// base-62 encoded. The project id is embedded so a request can be routed to
// its project before any store lookup. Only a SHA-256 hash of the full key
// is ever persisted.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// SchemePrefix is the fixed literal every raw key starts with. It
	// identifies the key format; bump it if the format ever changes.
	SchemePrefix = "scry_"

	// PrefixLength is how much of a raw key is kept for display and audit.
	// Covers the scheme prefix plus the start of the project id; never
	// enough to authenticate.
	PrefixLength = 12

	secretBytes     = 32
	minSecretLength = 16
)

// ErrInvalidProjectID is returned by Generate for project ids that cannot be
// embedded in a key (empty, or containing the underscore delimiter).
var ErrInvalidProjectID = errors.New("invalid project id")

// Generate returns a fresh raw key for the given project. Uniqueness is
// probabilistic: 32 random bytes are not deduplicated against existing keys.
func Generate(projectID string) (string, error) {
	if projectID == "" || strings.Contains(projectID, "_") {
		return "", fmt.Errorf("%w: %q", ErrInvalidProjectID, projectID)
	}
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key secret: %w", err)
	}
	secret := new(big.Int).SetBytes(buf).Text(62)
	return SchemePrefix + projectID + "_" + secret, nil
}

// ProjectID extracts the project id embedded in a raw key. The second
// return is false for any key that is not well formed: missing scheme
// prefix, missing delimiter, empty project segment, or an undersized
// secret. It never panics on garbage.
func ProjectID(rawKey string) (string, bool) {
	rest, ok := strings.CutPrefix(rawKey, SchemePrefix)
	if !ok {
		return "", false
	}
	project, secret, ok := strings.Cut(rest, "_")
	if !ok || project == "" || len(secret) < minSecretLength {
		return "", false
	}
	return project, true
}

// Prefix returns the display prefix of a raw key: the first PrefixLength
// characters, or the whole key if shorter.
func Prefix(rawKey string) string {
	if len(rawKey) <= PrefixLength {
		return rawKey
	}
	return rawKey[:PrefixLength]
}

// Hash returns the hex-encoded SHA-256 digest of a raw key. Deliberately
// unsalted: the digest is a deterministic function of the key alone, so
// validation is a single lookup-by-hash instead of hash-then-compare-all.
func Hash(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// IsWellFormed reports whether a raw key has the right shape: scheme prefix,
// non-empty project segment, and a secret of at least 16 characters after
// the project delimiter (later underscores belong to the secret). This is
// the fast-reject check run before any hashing or network call.
func IsWellFormed(rawKey string) bool {
	_, ok := ProjectID(rawKey)
	return ok
}
