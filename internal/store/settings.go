package store

import (
	"database/sql"
	"errors"
)

// GetSetting returns a stored key's value, the found flag distinguishing
// "unset" from "set to empty string".
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting upserts a key/value pair, used for security toggles (admin
// protection) and persisted tracking exclusions.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.DB.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
