package store

import (
	"database/sql"
	"time"
)

const lastImportKey = "last_import"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// MarkImported records when banks were last imported.
func (s *Store) MarkImported(at time.Time) error {
	return s.SetMetadata(lastImportKey, at.UTC().Format(time.RFC3339))
}

// LastImport returns when banks were last imported, or the zero time.
func (s *Store) LastImport() (time.Time, error) {
	v, err := s.GetMetadata(lastImportKey)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}
