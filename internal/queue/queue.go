// Package queue implements the Backup Pipeline: admission filtering,
// durable task persistence, and the single-worker drain loop that turns a
// filesystem event into a new FileVersion. Grounded on spec.md §4.5 and
// original_source/backend/app/database/crud.py's enqueue_backup_task/
// has_pending_backup_task/get_next_backup_task/mark_backup_task_*, with the
// worker loop shaped like the teacher's startBackupScheduler ticker/select
// loop (scheduler.go): a ctx-cancellable for-select over a ticker.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"locusd/internal/cas"
	"locusd/internal/eventbus"
	"locusd/internal/identity"
	"locusd/internal/locuserr"
	"locusd/internal/pathutil"
	"locusd/internal/restoresuppress"
	"locusd/internal/store"
	"locusd/internal/version"
)

// tempSuffixes are never admitted: editor swap files, partial browser
// downloads, and backup-of-backup artifacts.
var tempSuffixes = []string{".tmp", ".crdownload", "~", ".swp"}

// pollInterval is how often an idle worker checks for newly pending tasks.
const pollInterval = 150 * time.Millisecond

// Queue is the admission filter plus durable task queue plus worker.
type Queue struct {
	store      *store.Store
	identity   *identity.Index
	version    *version.Index
	cas        *cas.Store
	suppress   *restoresuppress.Map
	exclusions pathutil.Exclusions
	debounce   time.Duration
	bus        *eventbus.Bus
	logger     *log.Logger

	mu           sync.Mutex
	lastEnqueued map[string]time.Time
}

// New wires a Queue over its dependencies.
func New(s *store.Store, ix *identity.Index, vx *version.Index, cs *cas.Store, suppress *restoresuppress.Map, exclusions pathutil.Exclusions, debounce time.Duration, bus *eventbus.Bus, logger *log.Logger) *Queue {
	return &Queue{
		store:        s,
		identity:     ix,
		version:      vx,
		cas:          cs,
		suppress:     suppress,
		exclusions:   exclusions,
		debounce:     debounce,
		bus:          bus,
		logger:       logger,
		lastEnqueued: make(map[string]time.Time),
	}
}

// Submit runs path through the admission filter and, if accepted, durably
// enqueues a pending BackupTask. It never returns an error for an
// inadmissible path: rejection is a normal outcome (logged here with its
// reason when the Queue has a logger), matching the watcher's
// "flood of candidate events, few of which matter" reality.
func (q *Queue) Submit(path string) error {
	if reason, ok := q.admit(path); !ok {
		if q.logger != nil {
			q.logger.Printf("backup queue: skipping %s: %s", path, reason)
		}
		return nil
	}

	if _, err := q.store.EnqueueBackupTask(path); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", path, err)
	}

	q.mu.Lock()
	q.lastEnqueued[pathutil.Norm(path)] = time.Now()
	q.mu.Unlock()
	return nil
}

func (q *Queue) admit(path string) (reason string, ok bool) {
	base := filepath.Base(path)
	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(base, suffix) {
			return "temp suffix", false
		}
	}
	if q.exclusions.IsExcluded(path) {
		return "excluded path", false
	}
	if q.suppress.IsSuppressed(path) {
		return "restore suppression", false
	}

	norm := pathutil.Norm(path)
	q.mu.Lock()
	last, seen := q.lastEnqueued[norm]
	q.mu.Unlock()
	if seen && time.Since(last) < q.debounce {
		return "debounced", false
	}

	pending, err := q.store.HasPendingBackupTask(path)
	if err != nil {
		return "admission check failed", false
	}
	if pending {
		return "already in flight", false
	}

	return "", true
}

// Run drives the single logical worker until ctx is cancelled, claiming
// and processing one task at a time. Matches §4.5's "single logical
// worker" requirement; the claim in ClaimNextBackupTask is transactional
// so running more than one Run loop concurrently against the same store
// remains safe, just unnecessary.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for q.processOne() {
				// Drain every currently pending task before waiting for the
				// next tick, so a burst of events doesn't trail the ticker.
			}
		}
	}
}

// processOne claims and processes a single task, returning true if one was
// found (so Run's drain loop can keep going without waiting for the next
// tick).
func (q *Queue) processOne() bool {
	task, err := q.store.ClaimNextBackupTask()
	if err != nil {
		if !errors.Is(err, locuserr.ErrNotFound) && q.logger != nil {
			q.logger.Printf("backup queue: claim failed: %v", err)
		}
		return false
	}

	if err := q.process(task); err != nil {
		if markErr := q.store.MarkBackupTaskFailed(task.ID, err.Error()); markErr != nil && q.logger != nil {
			q.logger.Printf("backup queue: failed to record failure for task %d: %v", task.ID, markErr)
		}
		if q.logger != nil {
			q.logger.Printf("backup queue: task %d (%s) failed: %v", task.ID, task.SrcPath, err)
		}
		return true
	}

	if err := q.store.MarkBackupTaskDone(task.ID); err != nil && q.logger != nil {
		q.logger.Printf("backup queue: failed to mark task %d done: %v", task.ID, err)
	}
	return true
}

func (q *Queue) process(task *store.BackupTask) error {
	if _, err := os.Stat(task.SrcPath); err != nil {
		return fmt.Errorf("source gone: %w", err)
	}

	hash, err := cas.HashFile(task.SrcPath)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}

	rec, _, err := q.identity.GetOrCreate(task.SrcPath, hash)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	same, err := q.version.SameAsLatest(rec.ID, hash)
	if err != nil {
		return fmt.Errorf("check latest version: %w", err)
	}
	if same {
		return nil
	}

	meta, err := q.cas.Write(task.SrcPath, hash)
	if err != nil {
		return fmt.Errorf("store content: %w", err)
	}

	if _, err := q.version.Append(rec.ID, task.SrcPath, meta.StoragePath, meta.FileHash, meta.SizeBytes, meta.Chunked); err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	if q.bus != nil {
		q.bus.Publish(eventbus.Event{Kind: eventbus.KindFileEvent, Payload: task.SrcPath})
	}
	return nil
}
