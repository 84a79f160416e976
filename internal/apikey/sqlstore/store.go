// Package sqlstore implements the credential store on a managed relational
// database through sqlx. It is the reference backend: its observable
// behavior defines the semantics the document-protocol backend has to
// match. Supported drivers are sqlite (default, also the test backend),
// postgres and mysql.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
)

// driverNames maps backend names to database/sql driver registrations.
var driverNames = map[string]string{
	"sqlite":   "sqlite",
	"postgres": "pgx",
	"mysql":    "mysql",
}

// Store is the sqlx-backed credential store.
type Store struct {
	db *sqlx.DB
}

// Open is the registry factory: cfg.Backend doubles as the SQL driver name.
func Open(cfg apikey.Config) (apikey.Store, error) {
	return New(cfg.Backend, cfg.DSN)
}

// New connects to the database named by driver ("sqlite", "postgres",
// "mysql") and bootstraps the schema. For sqlite an empty DSN means a
// private in-memory database.
func New(driver, dsn string) (*Store, error) {
	name, ok := driverNames[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}

	if driver == "sqlite" && dsn == "" {
		dsn = ":memory:?_journal_mode=WAL"
	}

	db, err := sqlx.Connect(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}

	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate credential database: %w", err)
	}
	return s, nil
}

// Ping verifies the database is reachable. Used by readiness probes; not
// part of the store contract.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// keyRow maps 1:1 to the api_keys table. project_id lives only here: it is
// the row's scoping column, not a field of the credential record.
type keyRow struct {
	ID          string     `db:"id"`
	ProjectID   string     `db:"project_id"`
	KeyHash     string     `db:"key_hash"`
	KeyPrefix   string     `db:"key_prefix"`
	DisplayName string     `db:"display_name"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	CreatedBy   string     `db:"created_by"`
	LastUsedAt  *time.Time `db:"last_used_at"`
	ExpiresAt   *time.Time `db:"expires_at"`
	RevokedAt   *time.Time `db:"revoked_at"`
	RevokedBy   string     `db:"revoked_by"`
}

// toModel converts a row to the wire-facing record. The stored hash is
// deliberately left behind.
func (r keyRow) toModel() model.APIKey {
	return model.APIKey{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Prefix:      r.KeyPrefix,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		CreatedBy:   r.CreatedBy,
		LastUsedAt:  r.LastUsedAt,
		ExpiresAt:   r.ExpiresAt,
		RevokedAt:   r.RevokedAt,
		RevokedBy:   r.RevokedBy,
	}
}

// Issue generates a raw key for projectID, persists hash and metadata, and
// returns the record plus the raw key. The raw key is not written anywhere.
func (s *Store) Issue(ctx context.Context, projectID string, params apikey.IssueParams) (*model.APIKey, string, error) {
	raw, err := apikey.Generate(projectID)
	if err != nil {
		return nil, "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("generate key id: %w", err)
	}

	row := keyRow{
		ID:          id.String(),
		ProjectID:   projectID,
		KeyHash:     apikey.Hash(raw),
		KeyPrefix:   apikey.Prefix(raw),
		DisplayName: params.DisplayName,
		Status:      model.KeyStatusActive,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   params.IssuedBy,
		ExpiresAt:   params.ExpiresAt,
	}

	const q = `INSERT INTO api_keys
		(id, project_id, key_hash, key_prefix, display_name, status,
		 created_at, created_by, last_used_at, expires_at, revoked_at, revoked_by)
		VALUES
		(:id, :project_id, :key_hash, :key_prefix, :display_name, :status,
		 :created_at, :created_by, :last_used_at, :expires_at, :revoked_at, :revoked_by)`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return nil, "", fmt.Errorf("insert api key: %w", err)
	}

	rec := row.toModel()
	return &rec, raw, nil
}

// Validate checks a presented raw key against projectID's credentials.
// Unknown and revoked keys surface as the same apikey.ErrKeyInvalid so the
// result does not reveal which hashes exist. Expiry is checked only after
// the hash matched and is reported distinctly.
func (s *Store) Validate(ctx context.Context, projectID, rawKey string) (*model.APIKey, error) {
	if !apikey.IsWellFormed(rawKey) {
		return nil, apikey.ErrMalformedKey
	}

	var row keyRow
	q := s.db.Rebind(`SELECT * FROM api_keys WHERE project_id = ? AND key_hash = ?`)
	if err := s.db.GetContext(ctx, &row, q, projectID, apikey.Hash(rawKey)); err != nil {
		if err == sql.ErrNoRows {
			return nil, apikey.ErrKeyInvalid
		}
		return nil, fmt.Errorf("look up api key: %w", err)
	}

	if row.Status != model.KeyStatusActive {
		return nil, apikey.ErrKeyInvalid
	}
	if row.ExpiresAt != nil && row.ExpiresAt.Before(time.Now().UTC()) {
		return nil, apikey.ErrKeyExpired
	}

	rec := row.toModel()
	return &rec, nil
}

// List returns projectID's credentials newest first. Revoked and expired
// keys are included; hashes are not.
func (s *Store) List(ctx context.Context, projectID string) ([]model.APIKey, error) {
	var rows []keyRow
	q := s.db.Rebind(`SELECT * FROM api_keys WHERE project_id = ? ORDER BY created_at DESC`)
	if err := s.db.SelectContext(ctx, &rows, q, projectID); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	keys := make([]model.APIKey, len(rows))
	for i, r := range rows {
		keys[i] = r.toModel()
	}
	return keys, nil
}

// Revoke marks a key revoked and records the acting principal. Re-revoking
// overwrites revoked_at and revoked_by with the new values.
func (s *Store) Revoke(ctx context.Context, projectID, keyID, actor string) error {
	q := s.db.Rebind(`UPDATE api_keys
		SET status = ?, revoked_at = ?, revoked_by = ?
		WHERE project_id = ? AND id = ?`)
	result, err := s.db.ExecContext(ctx, q,
		model.KeyStatusRevoked, time.Now().UTC(), actor, projectID, keyID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n == 0 {
		return apikey.ErrNotFound
	}
	return nil
}

// Delete permanently removes a key.
func (s *Store) Delete(ctx context.Context, projectID, keyID string) error {
	q := s.db.Rebind(`DELETE FROM api_keys WHERE project_id = ? AND id = ?`)
	result, err := s.db.ExecContext(ctx, q, projectID, keyID)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete api key rows affected: %w", err)
	}
	if n == 0 {
		return apikey.ErrNotFound
	}
	return nil
}

// TouchLastUsed sets the last_used_at timestamp. Callers invoke this off
// the request path and only log failures.
func (s *Store) TouchLastUsed(ctx context.Context, projectID, keyID string) error {
	q := s.db.Rebind(`UPDATE api_keys SET last_used_at = ? WHERE project_id = ? AND id = ?`)
	result, err := s.db.ExecContext(ctx, q, time.Now().UTC(), projectID, keyID)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update api key last used rows affected: %w", err)
	}
	if n == 0 {
		return apikey.ErrNotFound
	}
	return nil
}
