package postgres

import (
	"context"
	"errors"

	"github.com/noah-isme/toko-pos/internal/store"
)

// Settings stores key-value pairs in the system_settings table.
type Settings struct {
	db DB
}

// Get implements settings.Store.
func (s *Settings) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		err = classify("get setting", err)
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set implements settings.Store.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO system_settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return classify("set setting", err)
}
