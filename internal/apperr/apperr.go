// Package apperr defines the typed failures returned by the inventory core.
// Callers switch on Kind to tell a missing record from a bad request or an
// unavailable store.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindInvalidReference
	KindNotFound
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidReference:
		return "invalid_reference"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String. Unrecognised names map to
// KindUnknown.
func ParseKind(s string) Kind {
	for k := KindValidation; k <= KindStorage; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}

// Error is the error type carried across package boundaries.
type Error struct {
	// Kind indicates the category of error
	Kind Kind

	// Op is the operation being performed (e.g., "inventory.Create")
	Op string

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// E constructs an Error from the given arguments.
// Arguments can be: Kind, string (Op first, then Message), error.
func E(args ...any) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// Validation returns a KindValidation error for op.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error for op.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error for op.
func Conflict(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InvalidReference returns a KindInvalidReference error for op.
func InvalidReference(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidReference, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps an unexpected persistence failure. A nil err yields nil, and
// an err that already carries a Kind is returned unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindStorage, Op: op, Message: "storage failure", Err: err}
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrInvalidReference = &Error{Kind: KindInvalidReference}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrStorage          = &Error{Kind: KindStorage}
)

// IsNotFound reports whether err is a KindNotFound error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
