package sqlstore

import (
	"fmt"
	"strings"
)

// migrate bootstraps the api_keys table. The DDL sticks to the subset shared
// by sqlite, postgres and mysql: VARCHAR/CHAR columns, TIMESTAMP NULL for
// optional times, explicit values on every insert (no column defaults are
// relied on at runtime).
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			id VARCHAR(36) PRIMARY KEY,
			project_id VARCHAR(128) NOT NULL,
			key_hash CHAR(64) NOT NULL,
			key_prefix VARCHAR(12) NOT NULL,
			display_name VARCHAR(255) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			last_used_at TIMESTAMP NULL,
			expires_at TIMESTAMP NULL,
			revoked_at TIMESTAMP NULL,
			revoked_by VARCHAR(255) NOT NULL,
			UNIQUE (key_hash)
		)`,

		`CREATE INDEX idx_api_keys_project_hash ON api_keys (project_id, key_hash)`,
		`CREATE INDEX idx_api_keys_project_created ON api_keys (project_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; treat re-created
			// indexes as a no-op so migrations stay idempotent everywhere.
			if isDuplicateObject(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func isDuplicateObject(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "Duplicate key name")
}
