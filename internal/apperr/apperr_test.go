package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindUnknown, "unknown"},
		{KindValidation, "validation"},
		{KindInvalidReference, "invalid_reference"},
		{KindNotFound, "not_found"},
		{KindConflict, "conflict"},
		{KindStorage, "storage"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "op and message and err",
			err:      &Error{Op: "inventory.Create", Message: "insert failed", Err: fmt.Errorf("disk full")},
			expected: "inventory.Create: insert failed: disk full",
		},
		{
			name:     "op and message",
			err:      &Error{Op: "inventory.Get", Message: "inventory 3 not found"},
			expected: "inventory.Get: inventory 3 not found",
		},
		{
			name:     "message and err",
			err:      &Error{Message: "insert failed", Err: fmt.Errorf("disk full")},
			expected: "insert failed: disk full",
		},
		{
			name:     "message only",
			err:      &Error{Message: "name is required"},
			expected: "name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestE(t *testing.T) {
	cause := errors.New("boom")
	err := E(KindConflict, "license.Create", "license exists", cause)

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("E() did not return *Error")
	}
	if e.Kind != KindConflict || e.Op != "license.Create" || e.Message != "license exists" {
		t.Errorf("E() = %+v", e)
	}
	if !errors.Is(err, cause) {
		t.Errorf("E() should unwrap to the cause")
	}
}

func TestIsByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("inventory.Get", "inventory %d not found", 7))

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("errors.Is(err, ErrNotFound) = false, want true")
	}
	if errors.Is(err, ErrConflict) {
		t.Errorf("errors.Is(err, ErrConflict) = true, want false")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound() = false, want true")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Errorf("KindOf(plain) should be unknown")
	}
}

func TestStorage(t *testing.T) {
	if Storage("op", nil) != nil {
		t.Fatalf("Storage(nil) should be nil")
	}

	typed := Validation("op", "bad")
	if got := Storage("outer", typed); got != typed {
		t.Errorf("Storage should not rewrap a typed error")
	}

	raw := errors.New("database is locked")
	got := Storage("store.InTx", raw)
	if KindOf(got) != KindStorage {
		t.Errorf("KindOf() = %v, want storage", KindOf(got))
	}
	if !errors.Is(got, raw) {
		t.Errorf("Storage error should unwrap to the cause")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindValidation, KindInvalidReference, KindNotFound, KindConflict, KindStorage} {
		if got := ParseKind(k.String()); got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if ParseKind("teapot") != KindUnknown {
		t.Errorf("ParseKind(teapot) should be unknown")
	}
}
