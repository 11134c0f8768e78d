package store

import (
	"context"
	"database/sql"
)

const catalogFingerprintKey = "catalog_fingerprint"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// CatalogFingerprint returns the fingerprint of the catalog recorded at the last startup.
func (s *Store) CatalogFingerprint(ctx context.Context) (string, error) {
	return s.GetMetadata(ctx, catalogFingerprintKey)
}

// SetCatalogFingerprint records the fingerprint of the catalog in use.
func (s *Store) SetCatalogFingerprint(ctx context.Context, fp string) error {
	return s.SetMetadata(ctx, catalogFingerprintKey, fp)
}
