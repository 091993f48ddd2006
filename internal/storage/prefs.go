// ABOUTME: Preference key-value operations for SQLite storage.
// ABOUTME: Holds small settings such as the current ride pointer.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetPreference returns the stored value and whether it exists.
func (s *sqlStore) GetPreference(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.q.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetPreference creates or replaces a preference.
func (s *sqlStore) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// DeletePreference removes a preference; deleting a missing key is not an error.
func (s *sqlStore) DeletePreference(ctx context.Context, key string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}
