// Package settings defines the key-value blob store shared by the point of
// sale (system settings and the live cart snapshot).
package settings

import "context"

// Store is a string key-value store. Get reports whether the key exists.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
