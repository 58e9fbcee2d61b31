package locuserr

import (
	"fmt"
	"testing"
)

func TestClassifyKind(t *testing.T) {
	err := fmt.Errorf("version 42: %w", ErrNotFound)
	if got := ClassifyKind(err); got != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", got)
	}
	if ClassifyKind(fmt.Errorf("plain error")) != KindUnknown {
		t.Fatal("expected KindUnknown for an unwrapped error")
	}
}
