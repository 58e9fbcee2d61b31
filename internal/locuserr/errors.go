// Package locuserr defines the error kinds §7 of the spec requires the core
// to surface, as sentinel errors checked with errors.Is/errors.As rather
// than a third-party errors package: the teacher's own style is plain
// fmt.Errorf wraps, and a single-cause/single-kind model doesn't need more
// machinery than that, just %w instead of %v so callers can unwrap.
package locuserr

import "errors"

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", ErrNotFound)
// and callers can test with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrIoFailure    = errors.New("io failure")
	ErrChunkMissing = errors.New("chunk missing")
	ErrTransient    = errors.New("transient")
	ErrFatal        = errors.New("fatal")
)

// Kind identifies which sentinel an error wraps, for callers that want to
// branch on the error's category (e.g. an external HTTP handler mapping to
// status codes) without repeating errors.Is chains everywhere.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindBadRequest
	KindIoFailure
	KindChunkMissing
	KindTransient
	KindFatal
)

// ClassifyKind returns the Kind of err, or KindUnknown if err doesn't wrap
// one of the sentinels in this package.
func ClassifyKind(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrIoFailure):
		return KindIoFailure
	case errors.Is(err, ErrChunkMissing):
		return KindChunkMissing
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrFatal):
		return KindFatal
	default:
		return KindUnknown
	}
}
