// Package version implements the Version Index: the append-only, monotonic
// history of content snapshots behind each file identity. Grounded on
// original_source/backend/app/database/crud.py's get_file_versions
// (identity-first, path-string fallback) and create_file_version.
package version

import (
	"database/sql"
	"fmt"

	"locusd/internal/store"
)

func nullInt(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: true}
}

// Index records and lists file versions.
type Index struct {
	store *store.Store
}

// New wraps a store with version-index operations.
func New(s *store.Store) *Index {
	return &Index{store: s}
}

// SameAsLatest reports whether contentHash matches the most recent version
// recorded for this identity, the content-dedup check that keeps a file
// touched without changing (a `touch`, a re-save with identical bytes) from
// growing the history.
func (ix *Index) SameAsLatest(fileRecordID int64, contentHash string) (bool, error) {
	latest, ok, err := ix.store.LatestVersionHash(fileRecordID)
	if err != nil {
		return false, err
	}
	return ok && latest == contentHash, nil
}

// Append records a new version for fileRecordID, assigning the next
// monotonic version number. Grounded on crud.py's create_file_version,
// composed with get_file_versions's max-version lookup.
func (ix *Index) Append(fileRecordID int64, originalPath, storagePath, contentHash string, sizeBytes int64, chunked bool) (*store.FileVersion, error) {
	n, err := ix.store.NextVersionNumber(fileRecordID)
	if err != nil {
		return nil, fmt.Errorf("version: next number: %w", err)
	}
	v := &store.FileVersion{
		FileRecordID:  nullInt(fileRecordID),
		OriginalPath:  originalPath,
		StoragePath:   storagePath,
		VersionNumber: n,
		FileHash:      contentHash,
		FileSizeBytes: sizeBytes,
		IsChunked:     chunked,
	}
	return ix.store.CreateFileVersion(v)
}

// List returns every version for an identity, oldest first.
func (ix *Index) List(fileRecordID int64) ([]*store.FileVersion, error) {
	return ix.store.ListVersionsByRecord(fileRecordID)
}

// ListByPath falls back to a raw path match when no identity has been
// established yet, mirroring crud.py's path-string fallback.
func (ix *Index) ListByPath(path string) ([]*store.FileVersion, error) {
	return ix.store.ListVersionsByPath(path)
}

// Current returns the most recent version for an identity, or nil if none
// exist.
func (ix *Index) Current(fileRecordID int64) (*store.FileVersion, error) {
	versions, err := ix.store.ListVersionsByRecord(fileRecordID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	return versions[len(versions)-1], nil
}
