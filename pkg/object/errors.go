package object

import (
	"errors"
	"strings"
)

// Error kinds. Every failure returned by the engine wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrFormat     = errors.New("malformed data")
	ErrType       = errors.New("unexpected object type")
	ErrResolution = errors.New("reference resolution failed")
	ErrConflict   = errors.New("reference update conflict")
	ErrBackend    = errors.New("storage backend failure")
)

// Error carries the kind of a failure together with the operation and the
// object id, ref name or path it concerns.
type Error struct {
	Kind    error
	Op      string
	Subject string
	Err     error
}

// NewError builds an *Error. err may be nil.
func NewError(kind error, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Subject != "" {
		b.WriteString(" ")
		b.WriteString(e.Subject)
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil && e.Err != e.Kind {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
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

// KindOf returns the error kind wrapped by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrFormat, ErrType, ErrResolution, ErrConflict, ErrBackend} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func formatErr(op, subject string, err error) error {
	return &Error{Kind: ErrFormat, Op: op, Subject: subject, Err: err}
}
