// Package logging implements locusd's per-component logging, generalizing
// the teacher's "one logger per backup config" factory into "one logger per
// watched root, plus system and long-lived-component loggers". System vs
// operational logging stays separated for the same reason it did in the
// teacher: startup/config events go to system.log, while per-root activity
// goes to its own directory so troubleshooting one root never means
// grepping through another's history.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Date format constants, carried over from the teacher's utils.go.
const (
	// LogDateFormat is used for daily log file names (date-only, for
	// per-day rotation and retention parsing).
	LogDateFormat = "02-01-2006"
)

// Config describes a single logger's construction parameters.
type Config struct {
	Name           string // descriptive name, used in error messages
	Path           string // file path for log output
	ClearOnStartup bool   // truncate existing content (system.log only)
	RetentionDays  *int   // days to retain daily logs; nil = no cleanup
}

// Create builds a *log.Logger per Config, creating the parent directory,
// running retention cleanup if configured, and opening the file with the
// append/truncate mode appropriate to the logger's purpose.
func Create(cfg Config) (*log.Logger, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	if cfg.RetentionDays != nil {
		if err := cleanupOldLogs(filepath.Dir(cfg.Path), *cfg.RetentionDays); err != nil {
			fmt.Printf("Warning: failed to clean up old logs for %s: %v\n", cfg.Name, err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if cfg.ClearOnStartup {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	f, err := os.OpenFile(cfg.Path, flags, 0o666)
	if err != nil {
		return nil, err
	}

	return log.New(f, "", log.Ldate|log.Ltime|log.Lshortfile), nil
}

// System creates the system-level logger: cleared on every startup, no
// retention needed because it never accumulates across runs.
func System(logDir string) (*log.Logger, error) {
	return Create(Config{
		Name:           "system",
		Path:           filepath.Join(logDir, "system.log"),
		ClearOnStartup: true,
	})
}

// ForRoot creates a dedicated, daily-rotated logger for one watched root,
// keyed by its sanitized name so troubleshooting a single root never
// requires wading through another root's history.
func ForRoot(logDir, rootName string, retentionDays int) (*log.Logger, error) {
	dir := filepath.Join(logDir, sanitizeName(rootName))
	path := todayLogPath(dir, "locusd")
	return Create(Config{
		Name:          rootName,
		Path:          path,
		RetentionDays: &retentionDays,
	})
}

// ForComponent creates a non-rotating, always-appended logger for a
// long-lived singleton (the GC loop, the backup queue worker, the
// filesystem monitor, the snapshot scanner) that is not tied to any single
// watched root.
func ForComponent(logDir, component string) (*log.Logger, error) {
	return Create(Config{
		Name: component,
		Path: filepath.Join(logDir, component+".log"),
	})
}

func todayLogPath(baseDir, prefix string) string {
	name := fmt.Sprintf("%s_%s.log", prefix, time.Now().Format(LogDateFormat))
	return filepath.Join(baseDir, name)
}

func cleanupOldLogs(logDir string, retentionDays int) error {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		dateStr := extractDate(entry.Name())
		if dateStr == "" {
			continue
		}
		logDate, err := time.Parse(LogDateFormat, dateStr)
		if err != nil || !logDate.Before(cutoff) {
			continue
		}
		path := filepath.Join(logDir, entry.Name())
		if err := os.Remove(path); err != nil {
			fmt.Printf("Warning: failed to delete old log file %s: %v\n", path, err)
		}
	}
	return nil
}

var logNameDate = regexp.MustCompile(`(\d{2}-\d{2}-\d{4})\.log$`)

func extractDate(filename string) string {
	if m := logNameDate.FindStringSubmatch(filename); len(m) > 1 {
		return m[1]
	}
	return ""
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9\-]`)

func sanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, string(filepath.Separator), "-")
	return unsafeNameChars.ReplaceAllString(name, "")
}
