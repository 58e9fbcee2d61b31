package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"locusd/internal/locuserr"
)

// FileRecord is the stable identity behind a tracked file, surviving
// renames and moves. Grounded on crud.py's FileRecord model.
type FileRecord struct {
	ID          int64
	CurrentPath string
	ContentHash sql.NullString
	CreatedAt   time.Time
	LastSeenAt  time.Time
}

// GetFileRecord looks up a record by its current path, mirroring crud.py's
// get_file_record.
func (s *Store) GetFileRecord(path string) (*FileRecord, error) {
	row := s.DB.QueryRow(
		`SELECT id, current_path, content_hash, created_at, last_seen_at FROM file_records WHERE current_path = ?`,
		path,
	)
	fr, err := scanFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file record %s: %w", path, locuserr.ErrNotFound)
	}
	return fr, err
}

// TryRecoverFileRecord implements crud.py's _try_recover_file_record
// heuristic: when a path has no record of its own, but exactly one
// inactive-path record shares this file's content hash AND basename, and
// that record's own path no longer exists on disk, treat it as the same
// file having moved rather than a brand new one. oldPathExists lets the
// caller supply the filesystem check without this package touching disk.
func (s *Store) TryRecoverFileRecord(contentHash, newPath string, oldPathExists func(string) bool) (*FileRecord, error) {
	if contentHash == "" {
		return nil, fmt.Errorf("recover file record: %w", locuserr.ErrNotFound)
	}
	base := filepath.Base(newPath)

	rows, err := s.DB.Query(
		`SELECT id, current_path, content_hash, created_at, last_seen_at
		 FROM file_records WHERE content_hash = ?`,
		contentHash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*FileRecord
	for rows.Next() {
		fr, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var match *FileRecord
	for _, fr := range candidates {
		if strings.EqualFold(filepath.Base(fr.CurrentPath), base) && !oldPathExists(fr.CurrentPath) {
			if match != nil {
				// More than one candidate: the heuristic can't disambiguate,
				// so refuse to guess rather than risk merging two files.
				return nil, fmt.Errorf("recover file record: ambiguous candidates: %w", locuserr.ErrNotFound)
			}
			match = fr
		}
	}
	if match == nil {
		return nil, fmt.Errorf("recover file record: %w", locuserr.ErrNotFound)
	}
	return match, nil
}

// CreateFileRecord inserts a brand new identity, mirroring crud.py's
// create_file_record.
func (s *Store) CreateFileRecord(path, contentHash string) (*FileRecord, error) {
	res, err := s.DB.Exec(
		`INSERT INTO file_records (current_path, content_hash) VALUES (?, ?)`,
		path, nullIfEmpty(contentHash),
	)
	if err != nil {
		return nil, fmt.Errorf("store: create file record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	row := s.DB.QueryRow(
		`SELECT id, current_path, content_hash, created_at, last_seen_at FROM file_records WHERE id = ?`,
		id,
	)
	return scanFileRecord(row)
}

// UpdateFileRecordPath repoints a record at its new path and refreshes its
// content hash, mirroring crud.py's update_file_record_path.
func (s *Store) UpdateFileRecordPath(id int64, newPath, contentHash string) error {
	_, err := s.DB.Exec(
		`UPDATE file_records SET current_path = ?, content_hash = ?, last_seen_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newPath, nullIfEmpty(contentHash), id,
	)
	return err
}

// TouchFileRecord bumps last_seen_at without changing identity, used when a
// file is re-observed with no content or path change.
func (s *Store) TouchFileRecord(id int64) error {
	_, err := s.DB.Exec(`UPDATE file_records SET last_seen_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// UpdateDirectoryRecords rewrites current_path for every record whose path
// falls under oldPrefix, mirroring crud.py's update_directory_records. The
// rewrite uses a boundary-safe prefix swap so "/A/Test" never matches
// "/A/Testing/file.txt".
func (s *Store) UpdateDirectoryRecords(oldPrefix, newPrefix string, swap func(current string) (string, bool)) (int, error) {
	rows, err := s.DB.Query(`SELECT id, current_path FROM file_records`)
	if err != nil {
		return 0, err
	}
	type rewrite struct {
		id      int64
		newPath string
	}
	var todo []rewrite
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, err
		}
		if newPath, ok := swap(path); ok {
			todo = append(todo, rewrite{id: id, newPath: newPath})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(todo) == 0 {
		return 0, nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`UPDATE file_records SET current_path = ? WHERE id = ?`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	for _, r := range todo {
		if _, err := stmt.Exec(r.newPath, r.id); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	return len(todo), tx.Commit()
}

func scanFileRecord(row rowScanner) (*FileRecord, error) {
	var fr FileRecord
	if err := row.Scan(&fr.ID, &fr.CurrentPath, &fr.ContentHash, &fr.CreatedAt, &fr.LastSeenAt); err != nil {
		return nil, err
	}
	return &fr, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
