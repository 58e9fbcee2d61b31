// Package identity implements the Identity Index: stable file identity
// that survives renames and moves. Grounded on
// original_source/backend/app/database/crud.py's get_file_record/
// create_file_record/_try_recover_file_record/update_directory_records,
// translated from SQLAlchemy ORM calls to methods over internal/store.
package identity

import (
	"errors"
	"fmt"
	"os"

	"locusd/internal/locuserr"
	"locusd/internal/pathutil"
	"locusd/internal/store"
)

// Index resolves stable identities for observed paths.
type Index struct {
	store *store.Store
}

// New wraps a store with identity resolution.
func New(s *store.Store) *Index {
	return &Index{store: s}
}

// Lookup returns the existing record for path, or locuserr.ErrNotFound.
func (ix *Index) Lookup(path string) (*store.FileRecord, error) {
	return ix.store.GetFileRecord(path)
}

// GetOrCreate resolves path to a FileRecord: an exact path match wins; if
// none exists, the recovery heuristic attempts to match a displaced record
// by content hash and basename before falling back to minting a brand new
// identity. This mirrors crud.py's combination of get_file_record and
// _try_recover_file_record ahead of create_file_record.
func (ix *Index) GetOrCreate(path, contentHash string) (rec *store.FileRecord, recovered bool, err error) {
	rec, err = ix.store.GetFileRecord(path)
	if err == nil {
		if contentHash != "" && (!rec.ContentHash.Valid || rec.ContentHash.String != contentHash) {
			if err := ix.store.UpdateFileRecordPath(rec.ID, path, contentHash); err != nil {
				return nil, false, err
			}
			rec.ContentHash.String = contentHash
			rec.ContentHash.Valid = true
			return rec, false, nil
		}
		if err := ix.store.TouchFileRecord(rec.ID); err != nil {
			return nil, false, err
		}
		return rec, false, nil
	}
	if !errors.Is(err, locuserr.ErrNotFound) {
		return nil, false, err
	}

	if contentHash != "" {
		recovered, recErr := ix.store.TryRecoverFileRecord(contentHash, path, pathExists)
		if recErr == nil {
			if err := ix.store.UpdateFileRecordPath(recovered.ID, path, contentHash); err != nil {
				return nil, false, err
			}
			recovered.CurrentPath = path
			return recovered, true, nil
		}
		if !errors.Is(recErr, locuserr.ErrNotFound) {
			return nil, false, recErr
		}
	}

	created, err := ix.store.CreateFileRecord(path, contentHash)
	if err != nil {
		return nil, false, err
	}
	return created, false, nil
}

// Rename repoints a single file's identity at its new path after an
// on_moved event, mirroring crud.py's update_file_record_path.
func (ix *Index) Rename(rec *store.FileRecord, newPath, contentHash string) error {
	if err := ix.store.UpdateFileRecordPath(rec.ID, newPath, contentHash); err != nil {
		return fmt.Errorf("identity: rename %s -> %s: %w", rec.CurrentPath, newPath, err)
	}
	rec.CurrentPath = newPath
	return nil
}

// RenameDirectory rewrites every identity whose current path falls under
// oldPrefix to fall under newPrefix instead, using a boundary-safe prefix
// swap so a rename of "/A/Test" never touches "/A/Testing/...". Grounded on
// crud.py's update_directory_records, run inside a single transaction in
// the store layer.
func (ix *Index) RenameDirectory(oldPrefix, newPrefix string) (int, error) {
	swap := func(current string) (string, bool) {
		return pathutil.PrefixSwap(current, oldPrefix, newPrefix)
	}
	n, err := ix.store.UpdateDirectoryRecords(oldPrefix, newPrefix, swap)
	if err != nil {
		return 0, fmt.Errorf("identity: rename directory %s -> %s: %w", oldPrefix, newPrefix, err)
	}
	return n, nil
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
