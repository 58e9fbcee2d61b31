package store

import (
	"database/sql"
	"fmt"
	"time"
)

// WatchedPath is a tracked root directory, grounded on crud.py's
// WatchedPath model.
type WatchedPath struct {
	ID          int64
	Name        string
	Path        string
	IsActive    bool
	IsProtected bool
	DirHash     sql.NullString
	CreatedAt   time.Time
}

// CreateWatchedPath inserts a new root, mirroring crud.py's
// create_watched_path.
func (s *Store) CreateWatchedPath(name, path string) (*WatchedPath, error) {
	res, err := s.DB.Exec(
		`INSERT INTO watched_paths (name, path, is_active) VALUES (?, ?, 1)`,
		name, path,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create watched path: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetWatchedPathByID(id)
}

// GetWatchedPaths returns watched paths, optionally filtered to active ones,
// mirroring crud.py's get_watched_paths.
func (s *Store) GetWatchedPaths(activeOnly bool) ([]*WatchedPath, error) {
	query := `SELECT id, name, path, is_active, is_protected, dir_hash, created_at FROM watched_paths`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*WatchedPath
	for rows.Next() {
		wp, err := scanWatchedPath(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wp)
	}
	return out, rows.Err()
}

// GetWatchedPathByID fetches a single watched path.
func (s *Store) GetWatchedPathByID(id int64) (*WatchedPath, error) {
	row := s.DB.QueryRow(
		`SELECT id, name, path, is_active, is_protected, dir_hash, created_at FROM watched_paths WHERE id = ?`,
		id,
	)
	return scanWatchedPath(row)
}

// GetWatchedPathByPath fetches a single watched path by its current path.
func (s *Store) GetWatchedPathByPath(path string) (*WatchedPath, error) {
	row := s.DB.QueryRow(
		`SELECT id, name, path, is_active, is_protected, dir_hash, created_at FROM watched_paths WHERE path = ?`,
		path,
	)
	return scanWatchedPath(row)
}

// DeactivateWatchedPath soft-deletes a root, mirroring crud.py's
// delete_watched_path (it never physically deletes the row, since history
// still references it).
func (s *Store) DeactivateWatchedPath(id int64) error {
	_, err := s.DB.Exec(`UPDATE watched_paths SET is_active = 0 WHERE id = ?`, id)
	return err
}

// ReactivateWatchedPath flips a previously deactivated root back to
// active, used when a user re-adds a root that was removed before.
func (s *Store) ReactivateWatchedPath(id int64) error {
	_, err := s.DB.Exec(`UPDATE watched_paths SET is_active = 1 WHERE id = ?`, id)
	return err
}

// UpdatePathTo rewrites the tracked path for a root (used on root rename and
// relink), mirroring crud.py's update_watched_path.
func (s *Store) UpdatePathTo(id int64, newPath string) error {
	_, err := s.DB.Exec(`UPDATE watched_paths SET path = ? WHERE id = ?`, newPath, id)
	return err
}

// SetDirHash records the dirhash last observed for a root, used by the
// snapshot scanner's reactivation fast path.
func (s *Store) SetDirHash(id int64, hash string) error {
	_, err := s.DB.Exec(`UPDATE watched_paths SET dir_hash = ? WHERE id = ?`, hash, id)
	return err
}

// SetProtected toggles the admin-protection flag for a root.
func (s *Store) SetProtected(id int64, protected bool) error {
	_, err := s.DB.Exec(`UPDATE watched_paths SET is_protected = ? WHERE id = ?`, protected, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchedPath(row rowScanner) (*WatchedPath, error) {
	var wp WatchedPath
	var isActive, isProtected int
	if err := row.Scan(&wp.ID, &wp.Name, &wp.Path, &isActive, &isProtected, &wp.DirHash, &wp.CreatedAt); err != nil {
		return nil, err
	}
	wp.IsActive = isActive != 0
	wp.IsProtected = isProtected != 0
	return &wp, nil
}
