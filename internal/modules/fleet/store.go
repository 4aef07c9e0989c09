// README: Fleet config store (single row) backed by PostgreSQL.
package fleet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Get returns the stored config, or defaults when the row is missing.
func (s *Store) Get(ctx context.Context) (Config, error) {
	var c Config
	err := s.db.QueryRow(ctx, `
		SELECT max_wait_time_before_auto_assign, auto_assign_enabled, updated_at
		FROM fleet_config
		WHERE id = 1`,
	).Scan(&c.MaxWaitTimeBeforeAutoAssign, &c.AutoAssignEnabled, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	return c, nil
}

func (s *Store) Update(ctx context.Context, c Config) (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	var out Config
	err := s.db.QueryRow(ctx, `
		INSERT INTO fleet_config (id, max_wait_time_before_auto_assign, auto_assign_enabled, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET max_wait_time_before_auto_assign = EXCLUDED.max_wait_time_before_auto_assign,
			auto_assign_enabled = EXCLUDED.auto_assign_enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING max_wait_time_before_auto_assign, auto_assign_enabled, updated_at`,
		c.MaxWaitTimeBeforeAutoAssign, c.AutoAssignEnabled,
	).Scan(&out.MaxWaitTimeBeforeAutoAssign, &out.AutoAssignEnabled, &out.UpdatedAt)
	return out, err
}
