package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"locusd/internal/logging"
)

// gcBackoff is how long the GC loop waits after a failed pass before
// retrying, short of the full interval, matching spec.md §5's "GC thread
// ... backs off 60s" and the original prototype's background_gc_task
// except-branch time.sleep(60).
const gcBackoff = 60 * time.Second

// newServeCommand starts the daemon: store, CAS, watcher, backup queue
// worker, GC loop, and system tray, all sharing one cancellable context so
// shutdown is cooperative per spec.md §5 ("stop the watcher, let the
// worker finish its current task, stop the GC").
func newServeCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run locusd as a foreground daemon with a system tray icon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configDir)
			if err != nil {
				showMessageBox("locusd", fmt.Sprintf("Failed to start: %v", err))
				return err
			}
			defer a.store.Close()

			if err := a.wirePipeline(); err != nil {
				showMessageBox("locusd", fmt.Sprintf("Failed to start: %v", err))
				return err
			}

			lockFile, err := acquireInstanceLock()
			if err != nil {
				showMessageBox("locusd", "Another instance is already running.\n\nClose it before starting a new one.")
				return err
			}
			defer releaseInstanceLock(lockFile)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := startWatchedRoots(a); err != nil {
				return err
			}

			go a.engine.Monitor.Run(ctx)
			go a.engine.Queue.Run(ctx)
			go runGCLoop(ctx, a)
			go watchSignals(cancel)
			go pollQueueDepth(ctx, a)
			go watchActivity(ctx, a)

			log.Printf("locusd: serving %d watched root(s)", len(a.cfg.WatchedRoots))
			runTray(ctx, cancel, a)
			return nil
		},
	}
}

// startWatchedRoots ensures every enabled root from config.json has an
// active WatchedPath row and is registered with the monitor, matching
// sync_watches's idempotent reconciliation (spec.md §4.6): rows already
// active are left alone, newly enabled ones are added.
func startWatchedRoots(a *app) error {
	for _, rootCfg := range a.cfg.WatchedRoots {
		if !rootCfg.IsEnabled() {
			continue
		}
		if _, err := os.Stat(rootCfg.Path); err != nil {
			log.Printf("locusd: skipping watched root %s: %v", rootCfg.Path, err)
			continue
		}
		if _, err := a.engine.AddWatchedRoot(rootCfg.Path); err != nil {
			log.Printf("locusd: failed to add watched root %s: %v", rootCfg.Path, err)
			continue
		}
	}

	active, err := a.store.GetWatchedPaths(true)
	if err != nil {
		return fmt.Errorf("list active watched roots: %w", err)
	}
	status.setWatchedRoots(len(active))
	return nil
}

// runGCLoop sleeps for the configured interval, performs one GC pass, and
// loops, backing off gcBackoff on failure instead of waiting a full
// interval (spec.md §5, SUPPLEMENTED FEATURES §3).
func runGCLoop(ctx context.Context, a *app) {
	gcLogger, err := logging.ForComponent(a.cfg.LogDir, "gc")
	if err != nil {
		log.Printf("locusd: failed to init gc logger: %v", err)
		gcLogger = log.Default()
	}

	interval := time.Duration(*a.cfg.GCIntervalMinutes) * time.Minute
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			removed, err := a.engine.RunGC()
			if err != nil {
				gcLogger.Printf("gc pass failed: %v", err)
				timer.Reset(gcBackoff)
				continue
			}
			gcLogger.Printf("gc pass complete: removed %d object(s)", removed)
			status.recordGC(removed)
			timer.Reset(interval)
		}
	}
}

// pollQueueDepth refreshes the tray's queue-depth display every few
// seconds; the backup queue itself has no push notification for depth
// changes, and polling the small backup_tasks table is cheap.
func pollQueueDepth(ctx context.Context, a *app) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := a.store.CountPendingBackupTasks(); err == nil {
				status.setQueueDepth(n)
			}
		}
	}
}

// watchActivity subscribes to the event bus and feeds the tray's "last
// activity" display.
func watchActivity(ctx context.Context, a *app) {
	events, unsubscribe := a.engine.SnapshotProgress()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if path, ok := ev.Payload.(string); ok {
				status.recordActivity(path)
			}
		}
	}
}

// watchSignals triggers cooperative shutdown on SIGINT/SIGTERM.
func watchSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	cancel()
}
