package inventory

import (
	"errors"
	"fmt"

	"github.com/noah-isme/toko-pos/internal/store"
)

// Kind classifies inventory failures.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindDuplicate         Kind = "DUPLICATE"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindStoreUnavailable  Kind = "STORE_UNAVAILABLE"
	KindLogAppendFailed   Kind = "LOG_APPEND_FAILED"
	KindSchemaMismatch    Kind = "SCHEMA_MISMATCH"
	KindConflict          Kind = "CONFLICT"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindInternal          Kind = "INTERNAL"
)

var (
	// ErrNotFound matches any NOT_FOUND inventory error.
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrDuplicate matches any DUPLICATE inventory error.
	ErrDuplicate = &Error{Kind: KindDuplicate}
	// ErrInsufficientStock matches any INSUFFICIENT_STOCK inventory error.
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	// ErrStoreUnavailable matches any STORE_UNAVAILABLE inventory error.
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	// ErrLogAppendFailed matches any LOG_APPEND_FAILED inventory error.
	ErrLogAppendFailed = &Error{Kind: KindLogAppendFailed}
	// ErrSchemaMismatch matches any SCHEMA_MISMATCH inventory error.
	ErrSchemaMismatch = &Error{Kind: KindSchemaMismatch}
	// ErrConflict matches any CONFLICT inventory error.
	ErrConflict = &Error{Kind: KindConflict}
	// ErrInvalidInput matches any INVALID_INPUT inventory error.
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

// Error is a classified inventory failure carrying a human-readable reason.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors of the same kind so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the inventory kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed.Kind
	}
	return KindInternal
}

// Reason returns the human-readable message of an inventory error, or the
// plain error text otherwise.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) && typed != nil && typed.Message != "" {
		return typed.Message
	}
	return err.Error()
}

// fromStore translates store sentinels into inventory kinds. op names the
// failed step, e.g. "load item 7".
func fromStore(err error, op string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, err, "%s: not found", op)
	case errors.Is(err, store.ErrDuplicate):
		return newError(KindDuplicate, err, "%s: already exists", op)
	case errors.Is(err, store.ErrUnavailable):
		return newError(KindStoreUnavailable, err, "%s: store unavailable: %v", op, err)
	case errors.Is(err, store.ErrSchemaMismatch):
		return newError(KindSchemaMismatch, err, "%s: schema mismatch: %v", op, err)
	case errors.Is(err, store.ErrConflict):
		return newError(KindConflict, err, "%s: concurrent update", op)
	default:
		return newError(KindInternal, err, "%s: %v", op, err)
	}
}
