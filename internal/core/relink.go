package core

import (
	"fmt"
	"os"
	"path/filepath"

	"locusd/internal/locuserr"
	"locusd/internal/pathutil"
)

// RelinkResult reports how many history rows were rewritten by RelinkRoot.
type RelinkResult struct {
	Status        string
	FilesUpdated  int
	EventsUpdated int
}

// RelinkRoot manually repoints a watched root's history from oldPath to
// newPath, grounded on original_source/backend/app/database/crud.py's
// relink_watched_path and main.py's _perform_physical_move. Two outcomes:
//
//   - Pure rename: no WatchedPath row exists at newPath yet. The old row's
//     path is rewritten in place.
//   - Merge: a WatchedPath already exists at newPath (the user manually
//     added the new location, e.g. after switching drive letters, before
//     telling locusd about it). The old row is deactivated rather than
//     rewritten, and history still migrates onto the new root via the same
//     prefix rewrite.
//
// Both FileRecord.current_path and FileEvent.src_path/dest_path are
// rewritten so neither identity tracking nor the historical event feed
// orphans itself on the old prefix (spec.md §4.6's root-rename handling,
// extended to the manual case per SPEC_FULL.md's supplemented features).
func (e *Engine) RelinkRoot(oldPath, newPath string, moveFiles bool) (*RelinkResult, error) {
	oldWP, err := e.Store.GetWatchedPathByPath(oldPath)
	if err != nil {
		return nil, fmt.Errorf("core: relink: no watched path at %s: %w", oldPath, locuserr.ErrNotFound)
	}

	if moveFiles {
		if err := performPhysicalMove(oldPath, newPath); err != nil {
			return nil, fmt.Errorf("core: relink: move files: %w: %v", locuserr.ErrIoFailure, err)
		}
	}

	merge := false
	if existing, err := e.Store.GetWatchedPathByPath(newPath); err == nil && existing.ID != oldWP.ID {
		merge = true
	}

	if merge {
		if err := e.Store.DeactivateWatchedPath(oldWP.ID); err != nil {
			return nil, err
		}
	} else {
		if err := e.Store.UpdatePathTo(oldWP.ID, newPath); err != nil {
			return nil, err
		}
	}

	filesUpdated, err := e.Identity.RenameDirectory(oldPath, newPath)
	if err != nil {
		return nil, err
	}

	swap := func(current string) (string, bool) {
		return pathutil.PrefixSwap(current, oldPath, newPath)
	}
	eventsUpdated, err := e.Store.UpdateDirectoryEvents(swap)
	if err != nil {
		return nil, err
	}

	if e.Monitor != nil {
		_ = e.Monitor.RemoveRoot(oldWP)
		newWP := oldWP
		if merge {
			newWP, err = e.Store.GetWatchedPathByPath(newPath)
			if err != nil {
				return nil, err
			}
		} else {
			newWP.Path = newPath
		}
		if err := e.Monitor.AddRoot(newWP); err != nil {
			return nil, fmt.Errorf("core: relink: re-establish watch on %s: %w", newPath, err)
		}
	}

	return &RelinkResult{
		Status:        "relinked",
		FilesUpdated:  filesUpdated,
		EventsUpdated: eventsUpdated,
	}, nil
}

// performPhysicalMove moves old_path's contents onto new_path, merging
// into an already-existing destination directory rather than nesting a
// folder inside it. Grounded on main.py's _perform_physical_move.
func performPhysicalMove(oldPath, newPath string) error {
	if _, err := os.Stat(newPath); os.IsNotExist(err) {
		if parent := filepath.Dir(newPath); parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return err
			}
		}
		return os.Rename(oldPath, newPath)
	}

	entries, err := os.ReadDir(oldPath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		src := filepath.Join(oldPath, entry.Name())
		dst := filepath.Join(newPath, entry.Name())
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("destination %s already exists in %s", entry.Name(), newPath)
		}
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}
	return os.Remove(oldPath)
}
