// README: Worker service joins the roster with the live heartbeat/GPS signal.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resortdispatch/internal/types"
)

var (
	ErrNotFound   = errors.New("worker not found")
	ErrBadRequest = errors.New("bad request")
)

type Roster interface {
	Upsert(ctx context.Context, w Worker) error
	Get(ctx context.Context, id types.ID) (*Worker, error)
	ListByRole(ctx context.Context, role Role) ([]Worker, error)
}

type Live interface {
	RecordHeartbeat(ctx context.Context, id types.ID, hb Heartbeat) error
	Snapshot(ctx context.Context, ids []types.ID) (map[types.ID]Heartbeat, error)
	NearbyWorkers(ctx context.Context, p types.Point, radiusM float64) ([]types.ID, error)
}

type Service struct {
	roster Roster
	live   Live
	now    func() time.Time
}

func NewService(roster Roster, live Live) *Service {
	return &Service{roster: roster, live: live, now: time.Now}
}

// Register adds a worker to the roster or updates their profile.
func (s *Service) Register(ctx context.Context, w Worker) (*Worker, error) {
	if w.ID == "" || w.Name == "" {
		return nil, fmt.Errorf("%w: id and name are required", ErrBadRequest)
	}
	switch w.Role {
	case RoleDriver:
		w.Department = ""
	case RoleStaff:
		if w.Department == "" {
			return nil, fmt.Errorf("%w: staff need a department", ErrBadRequest)
		}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrBadRequest, w.Role)
	}
	w.Position, w.LastHeartbeat = nil, nil
	if err := s.roster.Upsert(ctx, w); err != nil {
		return nil, err
	}
	return &w, nil
}

// HeartbeatCommand is a device check-in; Position is optional.
type HeartbeatCommand struct {
	WorkerID types.ID
	Position *types.Point
}

func (s *Service) RecordHeartbeat(ctx context.Context, cmd HeartbeatCommand) error {
	if cmd.WorkerID == "" {
		return ErrBadRequest
	}
	if p := cmd.Position; p != nil && (p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180) {
		return fmt.Errorf("%w: position out of range", ErrBadRequest)
	}
	if _, err := s.roster.Get(ctx, cmd.WorkerID); err != nil {
		return err
	}
	return s.live.RecordHeartbeat(ctx, cmd.WorkerID, Heartbeat{At: s.now(), Position: cmd.Position})
}

// List returns every rostered worker of role with its live signal attached.
func (s *Service) List(ctx context.Context, role Role) ([]Worker, error) {
	workers, err := s.roster.ListByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	ids := make([]types.ID, len(workers))
	for i, w := range workers {
		ids[i] = w.ID
	}
	live, err := s.live.Snapshot(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("live snapshot: %w", err)
	}
	for i := range workers {
		hb, ok := live[workers[i].ID]
		if !ok {
			continue
		}
		at := hb.At
		workers[i].LastHeartbeat = &at
		workers[i].Position = hb.Position
	}
	return workers, nil
}

func (s *Service) Nearby(ctx context.Context, p types.Point, radiusM float64) ([]types.ID, error) {
	if radiusM <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrBadRequest)
	}
	return s.live.NearbyWorkers(ctx, p, radiusM)
}
