// README: Dispatch request aggregate (rides and service calls) and status definitions.
package request

import (
	"strings"
	"time"

	"resortdispatch/internal/types"
)

type Domain string

const (
	DomainRide    Domain = "RIDE"
	DomainService Domain = "SERVICE"
)

// ParseDomain accepts "ride"/"service" in any case.
func ParseDomain(s string) (Domain, bool) {
	switch Domain(strings.ToUpper(strings.TrimSpace(s))) {
	case DomainRide:
		return DomainRide, true
	case DomainService:
		return DomainService, true
	}
	return "", false
}

type Status string

const (
	StatusNone      Status = "NONE"
	StatusSearching Status = "SEARCHING"
	StatusAssigned  Status = "ASSIGNED"
	StatusArriving  Status = "ARRIVING"
	StatusOnTrip    Status = "ON_TRIP"
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusMerged    Status = "MERGED"
)

// MaxPartySize is the seat count of one buggy.
const MaxPartySize = 7

type Request struct {
	ID            types.ID `json:"id"`
	Domain        Domain   `json:"domain"`
	Status        Status   `json:"status"`
	StatusVersion int      `json:"statusVersion"`

	// Ride fields.
	Pickup      string `json:"pickup,omitempty"`
	Destination string `json:"destination,omitempty"`
	PartySize   int    `json:"partySize,omitempty"`

	// Service fields.
	ServiceType string `json:"serviceType,omitempty"`
	Department  string `json:"department,omitempty"`
	Details     string `json:"details,omitempty"`

	RoomNumber string `json:"roomNumber"`
	GuestName  string `json:"guestName"`
	Notes      string `json:"notes,omitempty"`

	CreatedAt        time.Time  `json:"createdAt"`
	AssignedWorkerID *types.ID  `json:"assignedWorkerId,omitempty"`
	ETAMinutes       *int       `json:"etaMinutes,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmedAt,omitempty"`
	PickedUpAt       *time.Time `json:"pickedUpAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CancelledAt      *time.Time `json:"cancelledAt,omitempty"`
	MergedInto       *types.ID  `json:"mergedInto,omitempty"`
}

// WaitSeconds is the time elapsed since creation, never negative.
func (r *Request) WaitSeconds(now time.Time) float64 {
	d := now.Sub(r.CreatedAt).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Seats is the capacity a request occupies in a vehicle. Service requests
// occupy none.
func (r *Request) Seats() int {
	if r.Domain != DomainRide {
		return 0
	}
	if r.PartySize <= 0 {
		return 1
	}
	return r.PartySize
}

func (r *Request) IsEligible() bool { return IsEligibleStatus(r.Status) }
func (r *Request) IsActive() bool   { return IsActiveStatus(r.Status) }
func (r *Request) InTransit() bool  { return r.Status == StatusOnTrip }

// EligibleStatus is the status a request waits in before assignment.
func EligibleStatus(d Domain) Status {
	if d == DomainService {
		return StatusPending
	}
	return StatusSearching
}

// AssignedStatus is the status a request moves to when a worker is committed.
func AssignedStatus(d Domain) Status {
	if d == DomainService {
		return StatusConfirmed
	}
	return StatusAssigned
}

func IsEligibleStatus(s Status) bool {
	return s == StatusSearching || s == StatusPending
}

func IsActiveStatus(s Status) bool {
	switch s {
	case StatusAssigned, StatusArriving, StatusOnTrip, StatusConfirmed:
		return true
	}
	return false
}

func IsTerminalStatus(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusMerged:
		return true
	}
	return false
}

type Event struct {
	ID         int64
	RequestID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the request state flow as code. Ride and
// service statuses never overlap, so one table covers both domains.
var AllowedTransitions = map[Status][]Status{
	StatusSearching: {StatusAssigned, StatusMerged, StatusCancelled},
	StatusAssigned:  {StatusArriving, StatusOnTrip, StatusCompleted, StatusCancelled},
	StatusArriving:  {StatusOnTrip, StatusCompleted, StatusCancelled},
	StatusOnTrip:    {StatusCompleted},
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
