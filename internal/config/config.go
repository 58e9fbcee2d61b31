// Package config implements locusd's JSON configuration, directly
// generalizing the teacher's config.go: required fields stay plain types,
// optional fields stay pointer types so "not specified" (use default) can be
// told apart from "explicitly disabled", and a missing config.json is
// replaced with a self-documenting example on first run.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const configFileName = "config.json"

// Defaults for the tunables spec.md calls out, repeated here as named
// constants since several packages need them.
const (
	DefaultChunkedMinSize   = 16 << 20 // 16 MiB
	DefaultChunkSize        = 4 << 20  // 4 MiB
	DefaultGCGracePeriod    = 60       // minutes
	DefaultGCIntervalMins   = 5
	DefaultBackupDebounceMS = 300
	DefaultSnapshotBatch    = 200
	DefaultLogRetentionDays = 7
)

// WatchedRootConfig describes one root directory to track.
type WatchedRootConfig struct {
	Name             string   `json:"name"`
	Path             string   `json:"path"`
	Enabled          *bool    `json:"enabled,omitempty"`
	CustomExclusions []string `json:"custom_exclusions,omitempty"`
	CustomGlobs      []string `json:"custom_globs,omitempty"`
	LogRetentionDays *int     `json:"log_retention_days,omitempty"`
}

// IsEnabled mirrors the teacher's nil-means-enabled three-valued logic.
func (w *WatchedRootConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// GetLogRetentionDays returns the configured retention or the default.
func (w *WatchedRootConfig) GetLogRetentionDays() int {
	if w.LogRetentionDays == nil {
		return DefaultLogRetentionDays
	}
	return *w.LogRetentionDays
}

// Config is the root configuration structure.
type Config struct {
	StorageRoot        string              `json:"storage_root"`
	DatabasePath       string              `json:"database_path"`
	LogDir             string              `json:"log_dir"`
	ChunkedMinSize     *int64              `json:"chunked_min_size,omitempty"`
	ChunkSize          *int64              `json:"chunk_size,omitempty"`
	GCIntervalMinutes  *int                `json:"gc_interval_minutes,omitempty"`
	GCGracePeriodMins  *int                `json:"gc_grace_period_minutes,omitempty"`
	BackupDebounceMS   *int                `json:"backup_debounce_ms,omitempty"`
	SnapshotBatchSize  *int                `json:"snapshot_batch_size,omitempty"`
	SkipSymlinks       *bool               `json:"skip_symlinks,omitempty"`
	FailOnUnreadable   *bool               `json:"fail_on_unreadable,omitempty"`
	WatchedRoots       []WatchedRootConfig `json:"watched_roots"`
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
func i64Ptr(i int64) *int64 { return &i }

// Load reads config.json from dir, creating a default example if none
// exists, matching the teacher's loadConfig self-initialization behaviour.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, configFileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		return cfg, Save(dir, cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{
		StorageRoot:  "./.locusd_storage",
		DatabasePath: "./locusd.db",
		LogDir:       "./logs",
		WatchedRoots: []WatchedRootConfig{
			{
				Name:    "Example Root",
				Path:    "/path/to/watch",
				Enabled: boolPtr(false),
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.ChunkedMinSize == nil {
		cfg.ChunkedMinSize = i64Ptr(DefaultChunkedMinSize)
	}
	if cfg.ChunkSize == nil {
		cfg.ChunkSize = i64Ptr(DefaultChunkSize)
	}
	if cfg.GCIntervalMinutes == nil {
		cfg.GCIntervalMinutes = intPtr(DefaultGCIntervalMins)
	}
	if cfg.GCGracePeriodMins == nil {
		cfg.GCGracePeriodMins = intPtr(DefaultGCGracePeriod)
	}
	if cfg.BackupDebounceMS == nil {
		cfg.BackupDebounceMS = intPtr(DefaultBackupDebounceMS)
	}
	if cfg.SnapshotBatchSize == nil {
		cfg.SnapshotBatchSize = intPtr(DefaultSnapshotBatch)
	}
	if cfg.SkipSymlinks == nil {
		cfg.SkipSymlinks = boolPtr(true)
	}
	if cfg.FailOnUnreadable == nil {
		cfg.FailOnUnreadable = boolPtr(false)
	}
	for i := range cfg.WatchedRoots {
		if cfg.WatchedRoots[i].Enabled == nil {
			cfg.WatchedRoots[i].Enabled = boolPtr(true)
		}
	}
}

// Save writes cfg to dir/config.json with pretty formatting so users can
// hand-edit it, matching the teacher's saveConfig.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, configFileName), data, 0o644)
}

// ValidatePaths normalizes storage root, database path, log dir and every
// watched root's path to absolute, cleaned form, matching the teacher's
// validatePaths fail-fast-at-startup philosophy.
func ValidatePaths(cfg *Config) error {
	for _, p := range []*string{&cfg.StorageRoot, &cfg.DatabasePath, &cfg.LogDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return err
		}
		*p = filepath.Clean(abs)
	}
	for i := range cfg.WatchedRoots {
		abs, err := filepath.Abs(cfg.WatchedRoots[i].Path)
		if err != nil {
			return err
		}
		cfg.WatchedRoots[i].Path = filepath.Clean(abs)
	}
	return nil
}
