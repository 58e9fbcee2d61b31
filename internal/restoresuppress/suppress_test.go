package restoresuppress

import (
	"testing"
	"time"
)

func TestSuppressionWindowExpires(t *testing.T) {
	m := New()
	m.expires = make(map[string]time.Time)
	m.RegisterRestoreStart("/r/a.txt")

	if !m.IsSuppressed("/r/a.txt") {
		t.Fatal("expected path to be suppressed immediately after registration")
	}

	// Simulate time passing by back-dating the expiry rather than sleeping.
	m.mu.Lock()
	for k := range m.expires {
		m.expires[k] = time.Now().Add(-time.Millisecond)
	}
	m.mu.Unlock()

	if m.IsSuppressed("/r/a.txt") {
		t.Fatal("expected suppression to have expired")
	}
}

func TestSuppressionIsCaseAndFormatNormalized(t *testing.T) {
	m := New()
	m.RegisterRestoreStart("/R/A.txt")

	if !m.IsSuppressed("/r/a.txt") {
		t.Fatal("expected normalized path lookup to match regardless of case")
	}
}
