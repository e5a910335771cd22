// Package errs provides the error taxonomy shared by the pipeline and the
// retrieval service, plus helpers that attach an operation name and a kind
// to an underlying cause.
package errs

import (
	"errors"
	"strings"
)

// Taxonomy kinds. Callers match them with errors.Is.
var (
	// ErrValidation marks malformed input: a bad corpus record, an empty
	// scenario, an out of range parameter.
	ErrValidation = errors.New("validation error")

	// ErrUpstream marks an unreachable or timed out dependency such as the
	// embedder, a search backend, the classifier or the judge.
	ErrUpstream = errors.New("upstream error")

	// ErrConsistency marks an embedding dimension mismatch between index
	// build and query time. It is always fatal.
	ErrConsistency = errors.New("consistency error")
)

// Error carries the failing operation, its kind and the cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WrapKind annotates err with op and kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of the given kind without a separate cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap annotates err with op, keeping the kind of err when it has one.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// KindOf reports which taxonomy kind err belongs to, or nil.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConsistency):
		return ErrConsistency
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrUpstream):
		return ErrUpstream
	}
	return nil
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsUpstream reports whether err is an upstream error.
func IsUpstream(err error) bool { return errors.Is(err, ErrUpstream) }

// IsConsistency reports whether err is a consistency error.
func IsConsistency(err error) bool { return errors.Is(err, ErrConsistency) }
