package config

import (
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StorageRoot == "" {
		t.Fatal("expected a default storage root")
	}
	if *cfg.ChunkSize != DefaultChunkSize {
		t.Fatalf("expected default chunk size, got %d", *cfg.ChunkSize)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.StorageRoot != cfg.StorageRoot {
		t.Fatal("expected the saved example config to round-trip")
	}
}

func TestLoadBackwardCompatibleDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		StorageRoot:  "./store",
		DatabasePath: "./db",
		LogDir:       "./logs",
		WatchedRoots: []WatchedRootConfig{{Name: "r", Path: "/tmp/r"}},
	}
	if err := Save(dir, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.WatchedRoots[0].IsEnabled() {
		t.Fatal("expected nil Enabled to default to true for backward compatibility")
	}
	if loaded.WatchedRoots[0].GetLogRetentionDays() != DefaultLogRetentionDays {
		t.Fatal("expected default log retention")
	}
}

func TestValidatePathsAbsolutizes(t *testing.T) {
	cfg := &Config{
		StorageRoot:  "relative/store",
		DatabasePath: "relative/db",
		LogDir:       "relative/logs",
		WatchedRoots: []WatchedRootConfig{{Name: "r", Path: "relative/root"}},
	}
	if err := ValidatePaths(cfg); err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(cfg.StorageRoot) {
		t.Fatal("expected storage root to become absolute")
	}
	if !filepath.IsAbs(cfg.WatchedRoots[0].Path) {
		t.Fatal("expected watched root path to become absolute")
	}
}
