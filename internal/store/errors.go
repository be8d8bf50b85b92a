// Package store holds the error vocabulary shared by every backing store
// implementation and the layers that decorate them.
package store

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrConflict indicates a conditional write lost against a concurrent change.
	ErrConflict = errors.New("store: conditional write conflict")
	// ErrUnavailable marks a transient backend fault that is safe to retry.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrSchemaMismatch indicates the backing schema lacks a table or column the
	// write requires.
	ErrSchemaMismatch = errors.New("store: schema mismatch")
)

// Retryable reports whether err is a transient fault worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
