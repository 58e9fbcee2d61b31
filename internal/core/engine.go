// Package core wires the Identity Index, Version Index, CAS Store, Backup
// Queue, FS Monitor, Snapshot Scanner, Event Bus and Restore Suppression map
// behind the command surface spec.md §6 names. It is the in-process
// equivalent of original_source/backend/app/main.py's FastAPI route
// handlers, translated to plain Go methods since the HTTP layer itself is
// out of scope (spec.md §1).
package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"locusd/internal/cas"
	"locusd/internal/eventbus"
	"locusd/internal/fsmonitor"
	"locusd/internal/identity"
	"locusd/internal/locuserr"
	"locusd/internal/pathutil"
	"locusd/internal/queue"
	"locusd/internal/restoresuppress"
	"locusd/internal/snapshot"
	"locusd/internal/store"
	"locusd/internal/version"
)

// Engine is the coupled core: identity tracking, version history,
// content-addressed storage, the backup pipeline, and filesystem watching,
// all sharing one relational store and one CAS store.
type Engine struct {
	Store      *store.Store
	Identity   *identity.Index
	Version    *version.Index
	CAS        *cas.Store
	Queue      *queue.Queue
	Monitor    *fsmonitor.Monitor
	Scanner    *snapshot.Scanner
	Bus        *eventbus.Bus
	Suppress   *restoresuppress.Map
	MirrorRoot string
}

// CurrentVersionInfo is the §6 current_version(path) response shape.
type CurrentVersionInfo struct {
	FileHash      string
	MatchesOnDisk bool
	VersionID     int64
	VersionNumber int
	Found         bool
}

// VersionContent is the §6 version_content(version_id) response shape.
type VersionContent struct {
	Content []byte
	Type    string // "text" or "[binary]"
}

// RestoreResult is the §6 restore(version_id, dest_path) response shape.
type RestoreResult struct {
	Status        string
	Path          string
	VersionNumber int
}

// activeRoots returns the absolute paths of every currently active watched
// root, the allow-list Restore validates destinations against.
func (e *Engine) activeRoots() ([]string, error) {
	wps, err := e.Store.GetWatchedPaths(true)
	if err != nil {
		return nil, err
	}
	roots := make([]string, len(wps))
	for i, wp := range wps {
		roots[i] = wp.Path
	}
	return roots, nil
}

// AddWatchedRoot registers a new root: persists the WatchedPath row,
// starts watching it, and runs the initial snapshot scan.
func (e *Engine) AddWatchedRoot(path string) (*store.WatchedPath, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("core: %s is not a directory: %w", path, locuserr.ErrBadRequest)
	}

	wp, err := e.Store.GetWatchedPathByPath(path)
	if err != nil {
		name := filepath.Base(filepath.Clean(path))
		wp, err = e.Store.CreateWatchedPath(name, path)
		if err != nil {
			return nil, fmt.Errorf("core: create watched path: %w", err)
		}
	} else if !wp.IsActive {
		if err := e.Store.ReactivateWatchedPath(wp.ID); err != nil {
			return nil, fmt.Errorf("core: reactivate watched path: %w", err)
		}
		wp.IsActive = true
	}

	// Re-issued on every process start, not just first discovery: OS-level
	// watches live only in this process's memory, so a root already active
	// in the store still needs Monitor.AddRoot re-run after a restart.
	// Both AddRoot and Scanner.Run are idempotent (the former tracks its
	// own watched-directory set, the latter's dirhash check skips an
	// unchanged tree), so calling them again here is safe.
	if e.Monitor != nil {
		if err := e.Monitor.AddRoot(wp); err != nil {
			return nil, fmt.Errorf("core: watch %s: %w", path, err)
		}
	}
	if e.Scanner != nil {
		go func() {
			if err := e.Scanner.Run(wp, e.MirrorRoot); err != nil {
				e.Bus.Publish(eventbus.Event{Kind: eventbus.KindSnapshotError, Payload: err.Error()})
			}
		}()
	}
	return wp, nil
}

// RemoveWatchedRoot deactivates a root (soft delete, per §3: history is
// retained) and stops watching it.
func (e *Engine) RemoveWatchedRoot(id int64) error {
	wp, err := e.Store.GetWatchedPathByID(id)
	if err != nil {
		return err
	}
	if e.Monitor != nil {
		if err := e.Monitor.RemoveRoot(wp); err != nil {
			return fmt.Errorf("core: unwatch %s: %w", wp.Path, err)
		}
	}
	return e.Store.DeactivateWatchedPath(id)
}

// ListVersions returns every version known for path, newest first,
// falling back to a raw path-string match when no identity has been
// established yet (§4.4's list_versions contract).
func (e *Engine) ListVersions(path string) ([]*store.FileVersion, error) {
	rec, err := e.Identity.Lookup(path)
	var versions []*store.FileVersion
	if err == nil {
		versions, err = e.Version.List(rec.ID)
		if err != nil {
			return nil, err
		}
	} else if errors.Is(err, locuserr.ErrNotFound) {
		versions, err = e.Version.ListByPath(path)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}

	reversed := make([]*store.FileVersion, len(versions))
	for i, v := range versions {
		reversed[len(versions)-1-i] = v
	}
	return reversed, nil
}

// CurrentVersion compares path's on-disk content hash against its newest
// recorded version, per §6's current_version contract.
func (e *Engine) CurrentVersion(path string) (*CurrentVersionInfo, error) {
	rec, err := e.Identity.Lookup(path)
	if err != nil {
		if errors.Is(err, locuserr.ErrNotFound) {
			return &CurrentVersionInfo{Found: false}, nil
		}
		return nil, err
	}

	latest, err := e.Version.Current(rec.ID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return &CurrentVersionInfo{Found: false}, nil
	}

	info := &CurrentVersionInfo{
		FileHash:      latest.FileHash,
		VersionID:     latest.ID,
		VersionNumber: latest.VersionNumber,
		Found:         true,
	}
	if hash, err := cas.HashFile(path); err == nil {
		info.MatchesOnDisk = hash == latest.FileHash
	}
	return info, nil
}

// VersionContent loads a version's bytes from CAS and classifies them text
// or binary, per §6's version_content contract.
func (e *Engine) VersionContent(versionID int64) (*VersionContent, error) {
	v, err := e.Store.GetFileVersionByID(versionID)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "locusd-content-*")
	if err != nil {
		return nil, fmt.Errorf("core: %w: %v", locuserr.ErrIoFailure, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := e.CAS.Restore(v.StoragePath, tmpPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("core: %w: %v", locuserr.ErrIoFailure, err)
	}

	contentType := "[binary]"
	if utf8.Valid(data) {
		contentType = "text"
	}
	return &VersionContent{Content: data, Type: contentType}, nil
}

// Restore writes versionID's content to destPath (or its original_path if
// destPath is empty), enforcing §6's restore safety contract: destPath
// must be absolute and lie inside an active watched root. The restore
// suppression window is armed before the write so the watcher's own
// perception of this write doesn't spawn a redundant version (§4.7).
func (e *Engine) Restore(versionID int64, destPath string) (*RestoreResult, error) {
	v, err := e.Store.GetFileVersionByID(versionID)
	if err != nil {
		return nil, err
	}

	dest := destPath
	if dest == "" {
		dest = v.OriginalPath
	}
	if !filepath.IsAbs(dest) {
		return nil, fmt.Errorf("core: restore destination must be absolute: %w", locuserr.ErrBadRequest)
	}

	roots, err := e.activeRoots()
	if err != nil {
		return nil, err
	}
	if !pathutil.Within(dest, roots) {
		return nil, fmt.Errorf("core: %s is outside every active watched root: %w", dest, locuserr.ErrForbidden)
	}

	e.Suppress.RegisterRestoreStart(dest)
	if err := e.CAS.Restore(v.StoragePath, dest); err != nil {
		return nil, err
	}

	return &RestoreResult{Status: "restored", Path: dest, VersionNumber: v.VersionNumber}, nil
}

// RecentEvents returns the most recent filesystem events, newest first.
func (e *Engine) RecentEvents(limit int) ([]*store.FileEvent, error) {
	return e.Store.GetRecentFileEvents(limit)
}

// SnapshotProgress subscribes to the event bus for snapshot and filesystem
// progress notifications. Callers must invoke the returned unsubscribe
// function when done listening.
func (e *Engine) SnapshotProgress() (<-chan eventbus.Event, func()) {
	return e.Bus.Subscribe()
}

// RunGC performs one garbage-collection pass over the CAS store using the
// set of storage basenames every live FileVersion references.
func (e *Engine) RunGC() (int, error) {
	live, err := e.Store.GetAllStoragePaths()
	if err != nil {
		return 0, fmt.Errorf("core: gc: list live storage paths: %w", err)
	}
	return e.CAS.GC(live)
}
