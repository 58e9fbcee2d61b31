// Package restoresuppress prevents a restore's own writes from being
// perceived as a new modification and producing a redundant version.
// Grounded on original_source/backend/app/monitor.py's PENDING_RESTORES
// dict and register_restore_start.
package restoresuppress

import (
	"sync"
	"time"

	"locusd/internal/pathutil"
)

// Window is how long a path stays suppressed after a restore begins. Two
// seconds covers the common truncate-then-write pattern that would
// otherwise fire multiple modify events for a single restore.
const Window = 2 * time.Second

// Map is a process-wide normalised-path -> expiry table.
type Map struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

// New creates an empty suppression map.
func New() *Map {
	return &Map{expires: make(map[string]time.Time)}
}

// RegisterRestoreStart records that a restore to path is starting, valid
// for Window from now.
func (m *Map) RegisterRestoreStart(path string) {
	key := pathutil.Norm(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = time.Now().Add(Window)
}

// IsSuppressed reports whether path is currently within its suppression
// window, removing the entry once it has expired.
func (m *Map) IsSuppressed(path string) bool {
	key := pathutil.Norm(path)
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.expires[key]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(m.expires, key)
		return false
	}
	return true
}
