// README: Worker roster store backed by PostgreSQL.
package worker

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"resortdispatch/internal/types"
)

type RosterStore struct {
	db *pgxpool.Pool
}

func NewRosterStore(db *pgxpool.Pool) *RosterStore {
	return &RosterStore{db: db}
}

func (s *RosterStore) Upsert(ctx context.Context, w Worker) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO workers (id, role, display_name, department, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
			display_name = EXCLUDED.display_name,
			department = EXCLUDED.department,
			active = TRUE`,
		string(w.ID), string(w.Role), w.Name, w.Department,
	)
	return err
}

func (s *RosterStore) Get(ctx context.Context, id types.ID) (*Worker, error) {
	var w Worker
	var wid, role string
	err := s.db.QueryRow(ctx, `
		SELECT id, role, display_name, department
		FROM workers
		WHERE id = $1 AND active`, string(id),
	).Scan(&wid, &role, &w.Name, &w.Department)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.ID = types.ID(wid)
	w.Role = Role(role)
	return &w, nil
}

func (s *RosterStore) ListByRole(ctx context.Context, role Role) ([]Worker, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, role, display_name, department
		FROM workers
		WHERE role = $1 AND active
		ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Worker
	for rows.Next() {
		var w Worker
		var id, r string
		if err := rows.Scan(&id, &r, &w.Name, &w.Department); err != nil {
			return nil, err
		}
		w.ID = types.ID(id)
		w.Role = Role(r)
		out = append(out, w)
	}
	return out, rows.Err()
}
