package store

import (
	"database/sql"
	"fmt"
	"time"
)

// FileVersion is one append-only snapshot of a file's content, grounded on
// crud.py's FileVersion model.
type FileVersion struct {
	ID             int64
	FileRecordID   sql.NullInt64
	OriginalPath   string
	StoragePath    string
	VersionNumber  int
	FileHash       string
	FileSizeBytes  int64
	IsChunked      bool
	CreatedAt      time.Time
}

// NextVersionNumber returns the version number the next write for this
// record should use: one past the current max, or 1 if none exist yet.
func (s *Store) NextVersionNumber(fileRecordID int64) (int, error) {
	var max sql.NullInt64
	err := s.DB.QueryRow(
		`SELECT MAX(version_number) FROM file_versions WHERE file_record_id = ?`,
		fileRecordID,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// CreateFileVersion inserts a new version row, mirroring crud.py's
// create_file_version.
func (s *Store) CreateFileVersion(v *FileVersion) (*FileVersion, error) {
	res, err := s.DB.Exec(
		`INSERT INTO file_versions
		 (file_record_id, original_path, storage_path, version_number, file_hash, file_size_bytes, is_chunked)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.FileRecordID, v.OriginalPath, v.StoragePath, v.VersionNumber, v.FileHash, v.FileSizeBytes, v.IsChunked,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create file version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetFileVersionByID(id)
}

// GetFileVersionByID fetches a single version.
func (s *Store) GetFileVersionByID(id int64) (*FileVersion, error) {
	row := s.DB.QueryRow(
		`SELECT id, file_record_id, original_path, storage_path, version_number, file_hash, file_size_bytes, is_chunked, created_at
		 FROM file_versions WHERE id = ?`,
		id,
	)
	return scanFileVersion(row)
}

// ListVersionsByRecord returns every version for a record, identity-first as
// crud.py's get_file_versions prefers, oldest first.
func (s *Store) ListVersionsByRecord(fileRecordID int64) ([]*FileVersion, error) {
	rows, err := s.DB.Query(
		`SELECT id, file_record_id, original_path, storage_path, version_number, file_hash, file_size_bytes, is_chunked, created_at
		 FROM file_versions WHERE file_record_id = ? ORDER BY version_number`,
		fileRecordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFileVersions(rows)
}

// ListVersionsByPath falls back to a path-string match when no identity
// exists yet, mirroring crud.py's get_file_versions path fallback.
func (s *Store) ListVersionsByPath(path string) ([]*FileVersion, error) {
	rows, err := s.DB.Query(
		`SELECT id, file_record_id, original_path, storage_path, version_number, file_hash, file_size_bytes, is_chunked, created_at
		 FROM file_versions WHERE original_path = ? ORDER BY version_number`,
		path,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFileVersions(rows)
}

// LatestVersionHash returns the file_hash of the most recent version for a
// record, used to skip redundant content-identical writes.
func (s *Store) LatestVersionHash(fileRecordID int64) (string, bool, error) {
	var hash string
	err := s.DB.QueryRow(
		`SELECT file_hash FROM file_versions WHERE file_record_id = ? ORDER BY version_number DESC LIMIT 1`,
		fileRecordID,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// GetAllStoragePaths returns every storage_path ever recorded, the live set
// the garbage collector compares stored blobs against.
func (s *Store) GetAllStoragePaths() (map[string]bool, error) {
	rows, err := s.DB.Query(`SELECT DISTINCT storage_path FROM file_versions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	live := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		live[p] = true
	}
	return live, rows.Err()
}

func collectFileVersions(rows *sql.Rows) ([]*FileVersion, error) {
	var out []*FileVersion
	for rows.Next() {
		v, err := scanFileVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanFileVersion(row rowScanner) (*FileVersion, error) {
	var v FileVersion
	var isChunked int
	if err := row.Scan(&v.ID, &v.FileRecordID, &v.OriginalPath, &v.StoragePath, &v.VersionNumber, &v.FileHash, &v.FileSizeBytes, &isChunked, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.IsChunked = isChunked != 0
	return &v, nil
}
