// Package errs defines the error taxonomy shared by the verification engine
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the engine must react to it
type Kind string

const (
	KindInput            Kind = "input"             // Malformed or empty claim/image, surfaced to caller
	KindEmbeddingFailure Kind = "embedding-failure" // Treated as a store miss
	KindAIUnavailable    Kind = "ai-unavailable"    // Timeout or transport failure, treated as confidence 0
	KindWritebackFailure Kind = "writeback-failure" // Logged only, never alters a verdict
	KindStorage          Kind = "storage"
	KindConfiguration    Kind = "configuration"
)

// Sentinels for errors.Is checks. An *Error matches the sentinel of its kind.
var (
	ErrInput            = &Error{Kind: KindInput}
	ErrEmbeddingFailure = &Error{Kind: KindEmbeddingFailure}
	ErrAIUnavailable    = &Error{Kind: KindAIUnavailable}
	ErrWritebackFailure = &Error{Kind: KindWritebackFailure}
	ErrStorage          = &Error{Kind: KindStorage}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
)

// Error wraps an underlying error with its kind and the failing operation
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New creates an error of the given kind
func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to an existing error. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Op == "":
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
