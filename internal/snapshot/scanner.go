// Package snapshot implements the Snapshot Scanner: the initial walk of a
// newly-added (or reactivated) watched root. Grounded on
// original_source/backend/app/main.py's _run_initial_snapshot/
// _scan_snapshot_targets/_process_snapshot_files (batch-size-driven
// progress persistence) plus the teacher's copyDir/copyFile (backup.go)
// for the verbatim mirror-copy step. The reactivation fast path is
// grounded on the teacher's HashManager.shouldSkipBackup/recordAction
// (deduplication.go), repurposing golang.org/x/mod/sumdb/dirhash from
// whole-directory backup-skip to whole-directory rescan-skip.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/sumdb/dirhash"

	"locusd/internal/eventbus"
	"locusd/internal/pathutil"
	"locusd/internal/store"
)

// BatchSize is how many files are processed between progress persists,
// matching spec.md's SNAPSHOT_BATCH_SIZE default.
const BatchSize = 200

// Enqueuer accepts an admitted file path into the backup pipeline. The
// queue.Queue type satisfies this.
type Enqueuer interface {
	Submit(path string) error
}

// Scanner walks a watched root into a mirror subtree and the backup queue.
type Scanner struct {
	store      *store.Store
	enqueuer   Enqueuer
	bus        *eventbus.Bus
	exclusions pathutil.Exclusions
	skipSymlinks     bool
	failOnUnreadable bool
	logger           *log.Logger
}

// New wires a Scanner over its dependencies.
func New(s *store.Store, enqueuer Enqueuer, bus *eventbus.Bus, exclusions pathutil.Exclusions, skipSymlinks, failOnUnreadable bool, logger *log.Logger) *Scanner {
	return &Scanner{
		store:            s,
		enqueuer:         enqueuer,
		bus:              bus,
		exclusions:       exclusions,
		skipSymlinks:     skipSymlinks,
		failOnUnreadable: failOnUnreadable,
		logger:           logger,
	}
}

// StorageSubdir computes the `{safe-basename}-{first-6-hex}` mirror
// subdirectory name for root, per spec.md §4.8 step 1.
func StorageSubdir(root string) string {
	sum := sha256.Sum256([]byte(pathutil.Norm(root)))
	safeBase := sanitizeBase(filepath.Base(root))
	return fmt.Sprintf("%s-%s", safeBase, hex.EncodeToString(sum[:])[:6])
}

func sanitizeBase(base string) string {
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "root"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Run walks root into mirrorRoot/storage_subdir, enqueues every admitted
// file into the backup pipeline, and tracks progress via a SnapshotJob.
// If the watched root's previously recorded dirhash matches root's current
// dirhash, the walk is skipped entirely: nothing under root has changed
// since it was last scanned, so existing versions already cover it.
func (sc *Scanner) Run(wp *store.WatchedPath, mirrorRoot string) error {
	currentHash, hashErr := dirhash.HashDir(wp.Path, wp.Path, dirhash.Hash1)
	if hashErr == nil && wp.DirHash.Valid && wp.DirHash.String == currentHash {
		if sc.logger != nil {
			sc.logger.Printf("snapshot: %s unchanged since last scan, skipping walk", wp.Path)
		}
		return nil
	}

	subdir := StorageSubdir(wp.Path)
	job, err := sc.store.CreateSnapshotJob(wp.ID, subdir)
	if err != nil {
		return fmt.Errorf("snapshot: create job: %w", err)
	}
	sc.publish(eventbus.KindSnapshotStarted, wp.Path)

	destRoot := filepath.Join(mirrorRoot, subdir)

	var total, processed, skipped, errorCount int
	batchTotal, batchProcessed, batchSkipped, batchErrors := 0, 0, 0, 0

	flush := func() {
		if batchTotal == 0 && batchProcessed == 0 && batchSkipped == 0 && batchErrors == 0 {
			return
		}
		if err := sc.store.AdvanceSnapshotJob(job.ID, batchTotal, batchProcessed, batchSkipped, batchErrors); err != nil && sc.logger != nil {
			sc.logger.Printf("snapshot: failed to persist progress for job %d: %v", job.ID, err)
		}
		sc.publish(eventbus.KindSnapshotProgress, processed)
		batchTotal, batchProcessed, batchSkipped, batchErrors = 0, 0, 0, 0
	}

	walkErr := filepath.WalkDir(wp.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if sc.failOnUnreadable {
				return err
			}
			errorCount++
			batchErrors++
			return nil
		}

		if d.IsDir() {
			if path != wp.Path && sc.exclusions.IsExcluded(path) {
				return filepath.SkipDir
			}
			return nil
		}

		total++
		batchTotal++

		if sc.exclusions.IsExcluded(path) {
			skipped++
			batchSkipped++
			return sc.maybeFlush(&batchTotal, &batchProcessed, &batchSkipped, &batchErrors, flush)
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			errorCount++
			batchErrors++
			return sc.maybeFlush(&batchTotal, &batchProcessed, &batchSkipped, &batchErrors, flush)
		}
		if sc.skipSymlinks && info.Mode()&os.ModeSymlink != 0 {
			skipped++
			batchSkipped++
			return sc.maybeFlush(&batchTotal, &batchProcessed, &batchSkipped, &batchErrors, flush)
		}

		relPath, relErr := filepath.Rel(wp.Path, path)
		if relErr != nil {
			errorCount++
			batchErrors++
			return sc.maybeFlush(&batchTotal, &batchProcessed, &batchSkipped, &batchErrors, flush)
		}
		destPath := filepath.Join(destRoot, relPath)

		if copyErr := copyFileVerbatim(path, destPath); copyErr != nil {
			if sc.failOnUnreadable {
				return copyErr
			}
			errorCount++
			batchErrors++
			sc.publish(eventbus.KindSnapshotError, copyErr.Error())
			return sc.maybeFlush(&batchTotal, &batchProcessed, &batchSkipped, &batchErrors, flush)
		}

		if err := sc.enqueuer.Submit(path); err != nil && sc.logger != nil {
			sc.logger.Printf("snapshot: failed to enqueue %s: %v", path, err)
		}
		processed++
		batchProcessed++
		return sc.maybeFlush(&batchTotal, &batchProcessed, &batchSkipped, &batchErrors, flush)
	})

	flush()

	status := store.SnapshotStatusDone
	lastError := ""
	if walkErr != nil {
		status = store.SnapshotStatusFailed
		lastError = walkErr.Error()
	}
	if err := sc.store.FinishSnapshotJob(job.ID, status, lastError); err != nil && sc.logger != nil {
		sc.logger.Printf("snapshot: failed to finalize job %d: %v", job.ID, err)
	}
	sc.publish(eventbus.KindSnapshotComplete, wp.Path)

	if walkErr == nil && hashErr == nil {
		if err := sc.store.SetDirHash(wp.ID, currentHash); err != nil && sc.logger != nil {
			sc.logger.Printf("snapshot: failed to persist dirhash for %s: %v", wp.Path, err)
		}
	}
	return walkErr
}

// maybeFlush calls flush once batchTotal reaches BatchSize, matching spec.md's "updated after every batch of
// SNAPSHOT_BATCH_SIZE files" cadence.
func (sc *Scanner) maybeFlush(batchTotal, batchProcessed, batchSkipped, batchErrors *int, flush func()) error {
	if *batchTotal >= BatchSize {
		flush()
	}
	return nil
}

func (sc *Scanner) publish(kind string, payload any) {
	if sc.bus == nil {
		return
	}
	sc.bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}

func copyFileVerbatim(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, srcInfo.Mode())
}
