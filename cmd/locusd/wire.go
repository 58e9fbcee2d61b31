package main

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"locusd/internal/cas"
	"locusd/internal/config"
	"locusd/internal/core"
	"locusd/internal/eventbus"
	"locusd/internal/fsmonitor"
	"locusd/internal/identity"
	"locusd/internal/logging"
	"locusd/internal/pathutil"
	"locusd/internal/queue"
	"locusd/internal/restoresuppress"
	"locusd/internal/snapshot"
	"locusd/internal/store"
	"locusd/internal/version"
)

// app bundles the loaded config, system logger, and wired Engine so both
// the "serve" and "gc" subcommands can share the same startup sequence.
type app struct {
	cfg          *config.Config
	systemLogger *log.Logger
	store        *store.Store
	engine       *core.Engine
}

// bootstrap loads config, opens the store and CAS root, and wires an
// Engine. It does not start the watcher, queue worker, or GC loop — that
// is serve's job; gc only needs the store and CAS store.
func bootstrap(configDir string) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidatePaths(cfg); err != nil {
		return nil, fmt.Errorf("validate config paths: %w", err)
	}

	sysLogger, err := logging.System(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("init system logger: %w", err)
	}
	log.SetOutput(sysLogger.Writer())
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	gcGrace := time.Duration(*cfg.GCGracePeriodMins) * time.Minute
	casStore, err := cas.New(cfg.StorageRoot, *cfg.ChunkedMinSize, *cfg.ChunkSize, gcGrace)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init cas store: %w", err)
	}

	ix := identity.New(st)
	vx := version.New(st)
	bus := eventbus.New(eventbus.DefaultBufferSize)
	suppress := restoresuppress.New()

	engine := &core.Engine{
		Store:      st,
		Identity:   ix,
		Version:    vx,
		CAS:        casStore,
		Bus:        bus,
		Suppress:   suppress,
		MirrorRoot: filepath.Join(cfg.StorageRoot, "snapshots"),
	}

	return &app{cfg: cfg, systemLogger: sysLogger, store: st, engine: engine}, nil
}

// wirePipeline finishes wiring the Engine's queue, fsmonitor, and snapshot
// scanner, used by serve once a watcher thread is actually needed.
func (a *app) wirePipeline() error {
	cfg := a.cfg
	exclusions := exclusionsFromConfig(cfg)
	debounce := time.Duration(*cfg.BackupDebounceMS) * time.Millisecond

	queueLogger, err := logging.ForComponent(cfg.LogDir, "backup-queue")
	if err != nil {
		return fmt.Errorf("init backup queue logger: %w", err)
	}
	q := queue.New(a.store, a.engine.Identity, a.engine.Version, a.engine.CAS, a.engine.Suppress, exclusions, debounce, a.engine.Bus, queueLogger)
	a.engine.Queue = q

	fsLogger, err := logging.ForComponent(cfg.LogDir, "fsmonitor")
	if err != nil {
		return fmt.Errorf("init fsmonitor logger: %w", err)
	}
	mon, err := fsmonitor.New(a.store, a.engine.Identity, q, a.engine.Bus, exclusions, fsLogger)
	if err != nil {
		return fmt.Errorf("init fsmonitor: %w", err)
	}
	a.engine.Monitor = mon

	scanLogger, err := logging.ForComponent(cfg.LogDir, "snapshot")
	if err != nil {
		return fmt.Errorf("init snapshot logger: %w", err)
	}
	a.engine.Scanner = snapshot.New(a.store, q, a.engine.Bus, exclusions, *cfg.SkipSymlinks, *cfg.FailOnUnreadable, scanLogger)

	return nil
}

// exclusionsFromConfig merges the built-in set with every configured
// watched root's custom exclusions. The watcher, queue, and scanner are
// each a single shared instance spanning every watched root, so their
// exclusion set is the union across all configured roots rather than one
// set per root.
func exclusionsFromConfig(cfg *config.Config) pathutil.Exclusions {
	var segments, globs []string
	for _, r := range cfg.WatchedRoots {
		segments = append(segments, r.CustomExclusions...)
		globs = append(globs, r.CustomGlobs...)
	}
	return pathutil.Exclusions{CustomSegments: segments, CustomGlobs: globs}
}
