// README: Request store backed by PostgreSQL. Status writes are compare-and-set on status_version.
package request

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"resortdispatch/internal/types"
)

// Patch carries the optional columns written alongside a status change.
type Patch struct {
	WorkerID   *types.ID
	ETAMinutes *int
}

// Repository is the persistence boundary the service depends on.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id types.ID) (*Request, error)
	ListByStatus(ctx context.Context, domain Domain, statuses ...Status) ([]Request, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error)
	Merge(ctx context.Context, kept *Request, keptVersion int, absorbedID types.ID, absorbedVersion int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectColumns = `
	id, domain, status, status_version,
	pickup, destination, party_size,
	service_type, department, details,
	room_number, guest_name, notes,
	created_at, assigned_worker_id, eta_minutes,
	confirmed_at, picked_up_at, completed_at, cancelled_at, merged_into`

func (s *Store) Create(ctx context.Context, r *Request) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO requests (
			id, domain, status, status_version,
			pickup, destination, party_size,
			service_type, department, details,
			room_number, guest_name, notes, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14
		)`,
		string(r.ID), string(r.Domain), string(r.Status), r.StatusVersion,
		r.Pickup, r.Destination, r.PartySize,
		r.ServiceType, r.Department, r.Details,
		r.RoomNumber, r.GuestName, r.Notes, r.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM requests WHERE id = $1`, string(id))
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListByStatus returns the domain's requests in any of statuses, oldest first.
func (s *Store) ListByStatus(ctx context.Context, domain Domain, statuses ...Status) ([]Request, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM requests
		WHERE domain = $1 AND status = ANY($2)
		ORDER BY created_at, id`, string(domain), names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error) {
	var worker *string
	if patch.WorkerID != nil {
		v := string(*patch.WorkerID)
		worker = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE requests
		SET status = $1,
			status_version = status_version + 1,
			assigned_worker_id = COALESCE($2, assigned_worker_id),
			eta_minutes = COALESCE($3, eta_minutes),
			confirmed_at = CASE WHEN $1 IN ('ASSIGNED','CONFIRMED') THEN NOW() ELSE confirmed_at END,
			picked_up_at = CASE WHEN $1 = 'ON_TRIP' THEN NOW() ELSE picked_up_at END,
			completed_at = CASE WHEN $1 = 'COMPLETED' THEN NOW() ELSE completed_at END,
			cancelled_at = CASE WHEN $1 = 'CANCELLED' THEN NOW() ELSE cancelled_at END
		WHERE id = $4 AND status = $5 AND status_version = $6`,
		string(to),
		worker,
		patch.ETAMinutes,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Merge rewrites kept in place and retires the absorbed request, both guarded
// by their observed versions. Either both rows change or neither does.
func (s *Store) Merge(ctx context.Context, kept *Request, keptVersion int, absorbedID types.ID, absorbedVersion int) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE requests
		SET room_number = $1,
			guest_name = $2,
			notes = $3,
			party_size = $4,
			created_at = $5,
			pickup = $6,
			destination = $7,
			status_version = status_version + 1
		WHERE id = $8 AND status = 'SEARCHING' AND status_version = $9`,
		kept.RoomNumber, kept.GuestName, kept.Notes, kept.PartySize, kept.CreatedAt,
		kept.Pickup, kept.Destination,
		string(kept.ID), keptVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	tag, err = tx.Exec(ctx, `
		UPDATE requests
		SET status = 'MERGED',
			status_version = status_version + 1,
			merged_into = $1
		WHERE id = $2 AND status = 'SEARCHING' AND status_version = $3`,
		string(kept.ID), string(absorbedID), absorbedVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO request_state_events (
			request_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RequestID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	var id, domain, status string
	var worker, mergedInto *string
	var eta *int32
	var confirmedAt, pickedUpAt, completedAt, cancelledAt *time.Time

	err := row.Scan(
		&id, &domain, &status, &r.StatusVersion,
		&r.Pickup, &r.Destination, &r.PartySize,
		&r.ServiceType, &r.Department, &r.Details,
		&r.RoomNumber, &r.GuestName, &r.Notes,
		&r.CreatedAt, &worker, &eta,
		&confirmedAt, &pickedUpAt, &completedAt, &cancelledAt, &mergedInto,
	)
	if err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.Domain = Domain(domain)
	r.Status = Status(status)
	r.AssignedWorkerID = toIDPtr(worker)
	r.MergedInto = toIDPtr(mergedInto)
	if eta != nil {
		v := int(*eta)
		r.ETAMinutes = &v
	}
	r.ConfirmedAt = confirmedAt
	r.PickedUpAt = pickedUpAt
	r.CompletedAt = completedAt
	r.CancelledAt = cancelledAt
	return &r, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
