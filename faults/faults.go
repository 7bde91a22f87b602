// Package faults classifies the recoverable errors raised while fetching and
// shaping CMS content, so handlers can pick a rendering for each kind.
package faults

import (
	"errors"
	"fmt"
)

// Kind is the broad category of an error.
type Kind string

const (
	KindUnknown         Kind = ""
	KindFetchFailed     Kind = "fetch_failed"     // network, timeout or API error
	KindMalformedRecord Kind = "malformed_record" // CMS record without the expected shape
	KindInvalidDate     Kind = "invalid_date"     // date value that cannot be formatted
	KindNotFound        Kind = "not_found"        // CMS has no such document
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrFetchFailed     = &Error{Kind: KindFetchFailed}
	ErrMalformedRecord = &Error{Kind: KindMalformedRecord}
	ErrInvalidDate     = &Error{Kind: KindInvalidDate}
	ErrNotFound        = &Error{Kind: KindNotFound}
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// FetchFailed wraps err as a KindFetchFailed error.
func FetchFailed(op string, err error) error {
	return &Error{Kind: KindFetchFailed, Op: op, Err: err}
}

// MalformedRecord reports a record that does not match the expected schema.
func MalformedRecord(op string, format string, args ...any) error {
	return &Error{Kind: KindMalformedRecord, Op: op, Err: fmt.Errorf(format, args...)}
}

// InvalidDate wraps err as a KindInvalidDate error.
func InvalidDate(op string, err error) error {
	return &Error{Kind: KindInvalidDate, Op: op, Err: err}
}

// NotFound reports a missing document.
func NotFound(op string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Recoverable reports whether err is one of the classified kinds. None of
// them should abort a render: callers show a placeholder, a retry control or
// a not-found page instead.
func Recoverable(err error) bool {
	return KindOf(err) != KindUnknown
}
