// README: Request service implements state transitions, assignment commits and merges.
package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resortdispatch/internal/types"
)

type Service struct {
	store Repository
	now   func() time.Time
}

func NewService(store Repository) *Service {
	return &Service{store: store, now: time.Now}
}

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("request not found")
	ErrConflict     = errors.New("request state conflict")
	ErrCapacity     = errors.New("party size exceeds vehicle capacity")
	ErrBadRequest   = errors.New("bad request")
)

type CreateCommand struct {
	Domain      Domain
	Pickup      string
	Destination string
	PartySize   int
	ServiceType string
	Department  string
	Details     string
	RoomNumber  string
	GuestName   string
	Notes       string
}

// AssignCommand commits a worker to a request observed at Status/Version.
// The write only lands if the request is still in that exact state.
type AssignCommand struct {
	RequestID  types.ID
	WorkerID   types.ID
	Status     Status
	Version    int
	Domain     Domain
	ETAMinutes int
}

type CancelCommand struct {
	RequestID types.ID
	ActorType string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	switch cmd.Domain {
	case DomainRide:
		if strings.TrimSpace(cmd.Pickup) == "" || strings.TrimSpace(cmd.Destination) == "" {
			return "", fmt.Errorf("%w: pickup and destination are required", ErrBadRequest)
		}
		if cmd.PartySize == 0 {
			cmd.PartySize = 1
		}
		if cmd.PartySize < 0 {
			return "", fmt.Errorf("%w: party size must be positive", ErrBadRequest)
		}
		if cmd.PartySize > MaxPartySize {
			return "", ErrCapacity
		}
	case DomainService:
		if strings.TrimSpace(cmd.Department) == "" {
			return "", fmt.Errorf("%w: department is required", ErrBadRequest)
		}
		cmd.PartySize = 0
	default:
		return "", fmt.Errorf("%w: unknown domain %q", ErrBadRequest, cmd.Domain)
	}

	now := s.now()
	r := &Request{
		ID:          types.ID(uuid.NewString()),
		Domain:      cmd.Domain,
		Status:      EligibleStatus(cmd.Domain),
		Pickup:      cmd.Pickup,
		Destination: cmd.Destination,
		PartySize:   cmd.PartySize,
		ServiceType: cmd.ServiceType,
		Department:  cmd.Department,
		Details:     cmd.Details,
		RoomNumber:  cmd.RoomNumber,
		GuestName:   cmd.GuestName,
		Notes:       cmd.Notes,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return "", err
	}
	s.appendEvent(ctx, r.ID, StatusNone, r.Status, "guest", nil)
	return r.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Request, error) {
	return s.store.Get(ctx, id)
}

// ListOpen returns the domain's waiting and in-flight requests.
func (s *Service) ListOpen(ctx context.Context, domain Domain) ([]Request, error) {
	if domain == DomainService {
		return s.store.ListByStatus(ctx, domain, StatusPending, StatusConfirmed)
	}
	return s.store.ListByStatus(ctx, domain, StatusSearching, StatusAssigned, StatusArriving, StatusOnTrip)
}

// Assign performs the SEARCHING→ASSIGNED (or PENDING→CONFIRMED) compare-and-set.
// ErrConflict means another actor changed the request first.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) error {
	if cmd.RequestID == "" || cmd.WorkerID == "" {
		return ErrBadRequest
	}
	to := AssignedStatus(cmd.Domain)
	if !CanTransition(cmd.Status, to) {
		return ErrInvalidState
	}
	eta := cmd.ETAMinutes
	ok, err := s.store.UpdateStatus(ctx, cmd.RequestID, cmd.Status, to, cmd.Version, Patch{
		WorkerID:   &cmd.WorkerID,
		ETAMinutes: &eta,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, cmd.RequestID, cmd.Status, to, "dispatcher", &cmd.WorkerID)
	return nil
}

func (s *Service) MarkArriving(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusArriving, "driver")
}

func (s *Service) MarkPickedUp(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusOnTrip, "driver")
}

func (s *Service) MarkCompleted(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusCompleted, "worker")
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	actor := cmd.ActorType
	if actor == "" {
		actor = "operator"
	}
	return s.transition(ctx, cmd.RequestID, StatusCancelled, actor)
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status, actor string) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, Patch{})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, r.ID, r.Status, to, actor, r.AssignedWorkerID)
	return nil
}

// Merge combines two waiting rides. The earlier request is rewritten and the
// later one becomes MERGED, atomically.
func (s *Service) Merge(ctx context.Context, idA, idB types.ID) (*Request, error) {
	if idA == "" || idB == "" || idA == idB {
		return nil, ErrBadRequest
	}
	a, err := s.store.Get(ctx, idA)
	if err != nil {
		return nil, err
	}
	b, err := s.store.Get(ctx, idB)
	if err != nil {
		return nil, err
	}
	merged, absorbedID, err := Merge(a, b)
	if err != nil {
		return nil, err
	}
	absorbed := b
	if absorbedID == a.ID {
		absorbed = a
	}

	ok, err := s.store.Merge(ctx, &merged, merged.StatusVersion, absorbed.ID, absorbed.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	merged.StatusVersion++
	s.appendEvent(ctx, absorbed.ID, StatusSearching, StatusMerged, "operator", nil)
	return &merged, nil
}

// MergeCandidates lists combinable waiting rides for operator review.
func (s *Service) MergeCandidates(ctx context.Context) ([]Pair, error) {
	reqs, err := s.store.ListByStatus(ctx, DomainRide, StatusSearching)
	if err != nil {
		return nil, err
	}
	return CombinablePairs(reqs), nil
}

func (s *Service) appendEvent(ctx context.Context, id types.ID, from, to Status, actor string, actorID *types.ID) {
	_ = s.store.AppendEvent(ctx, &Event{
		RequestID:  id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actor,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	})
}
