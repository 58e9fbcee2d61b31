package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSystemLoggerTruncatesOnStartup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.log")
	if err := os.WriteFile(path, []byte("stale from last session\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger, err := System(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger.Printf("fresh line")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if contains := string(data); len(contains) == 0 {
		t.Fatal("expected a fresh line written")
	}
	if strings.Contains(string(data), "stale from last session") {
		t.Fatal("expected the previous session's content to be truncated")
	}
}

func TestForRootIsolatesDirectories(t *testing.T) {
	dir := t.TempDir()
	a, err := ForRoot(dir, "Project A", 7)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ForRoot(dir, "Project B", 7)
	if err != nil {
		t.Fatal(err)
	}
	a.Printf("a")
	b.Printf("b")

	if _, err := os.Stat(filepath.Join(dir, "project-a")); err != nil {
		t.Fatalf("expected project-a dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "project-b")); err != nil {
		t.Fatalf("expected project-b dir: %v", err)
	}
}

func TestCleanupOldLogsRespectsRetention(t *testing.T) {
	dir := t.TempDir()
	oldName := "locusd_" + time.Now().AddDate(0, 0, -30).Format(LogDateFormat) + ".log"
	freshName := "locusd_" + time.Now().Format(LogDateFormat) + ".log"

	if err := os.WriteFile(filepath.Join(dir, oldName), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, freshName), []byte("fresh"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := cleanupOldLogs(dir, 7); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, oldName)); !os.IsNotExist(err) {
		t.Fatal("expected old log to be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, freshName)); err != nil {
		t.Fatal("expected fresh log to remain")
	}
}
