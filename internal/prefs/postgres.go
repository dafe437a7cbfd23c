package prefs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sendrec/askvideo/internal/database"
)

type PostgresStore struct {
	db       database.DBTX
	defaults Preferences
}

func NewPostgresStore(db database.DBTX, defaults Preferences) *PostgresStore {
	return &PostgresStore{db: db, defaults: defaults}
}

func (s *PostgresStore) Load(ctx context.Context) (Preferences, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return Preferences{}, fmt.Errorf("query preferences: %w", err)
	}

	values := make(map[string]string)
	var key, value string
	_, err = pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		values[key] = value
		return nil
	})
	if err != nil {
		return Preferences{}, fmt.Errorf("scan preferences: %w", err)
	}
	return fromValues(values, s.defaults)
}

// Save writes every field in one transaction.
func (s *PostgresStore) Save(ctx context.Context, p Preferences) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for _, kv := range toValues(p) {
			_, err := tx.Exec(ctx,
				`INSERT INTO preferences (key, value, updated_at) VALUES ($1, $2, now())
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				kv[0], kv[1],
			)
			if err != nil {
				return fmt.Errorf("save preference %s: %w", kv[0], err)
			}
		}
		return nil
	})
}
