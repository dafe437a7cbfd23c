package prefs

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore keeps preferences in a local file opened with
// database.OpenSQLite.
type SQLiteStore struct {
	db       *sql.DB
	defaults Preferences
}

func NewSQLiteStore(db *sql.DB, defaults Preferences) *SQLiteStore {
	return &SQLiteStore{db: db, defaults: defaults}
}

func (s *SQLiteStore) Load(ctx context.Context) (Preferences, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return Preferences{}, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Preferences{}, fmt.Errorf("scan preferences: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	}
	return fromValues(values, s.defaults)
}

func (s *SQLiteStore) Save(ctx context.Context, p Preferences) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, kv := range toValues(p) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			kv[0], kv[1],
		)
		if err != nil {
			return fmt.Errorf("save preference %s: %w", kv[0], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
