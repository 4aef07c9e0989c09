// README: Matching snapshots, candidates and results.
package matching

import (
	"time"

	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/types"
)

// Reason explains why a run produced no pairs without being an error.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNoEligibleRequests Reason = "no_eligible_requests"
	ReasonNoWorkers          Reason = "no_workers"
	ReasonNoOnlineWorkers    Reason = "no_online_workers"
)

type Trigger string

const (
	TriggerOperator Trigger = "operator"
	TriggerAuto     Trigger = "auto"
)

// Resolver maps a free-text location to coordinates.
type Resolver interface {
	Resolve(s string) (types.Point, error)
}

// Snapshot is everything one matching pass reads. It is never mutated by the
// engine.
type Snapshot struct {
	Domain   request.Domain
	Now      time.Time
	Requests []request.Request // eligible and active requests of Domain
	Workers  []worker.Worker   // workers whose role serves Domain
	Resolver Resolver
}

// Request looks up a request of the snapshot by id.
func (s *Snapshot) Request(id types.ID) (*request.Request, bool) {
	for i := range s.Requests {
		if s.Requests[i].ID == id {
			return &s.Requests[i], true
		}
	}
	return nil, false
}

func (s *Snapshot) Worker(id types.ID) (*worker.Worker, bool) {
	for i := range s.Workers {
		if s.Workers[i].ID == id {
			return &s.Workers[i], true
		}
	}
	return nil, false
}

// WorkerState is what a worker is doing right now, derived from the active
// requests assigned to them.
type WorkerState struct {
	// Current is the in-transit request if any, otherwise the earliest
	// confirmed one. Nil when the worker is available.
	Current     *request.Request
	ActiveCount int
	ActiveSeats int
}

func (s WorkerState) Busy() bool { return s.Current != nil }

// Group is a set of eligible requests served by one worker in one trip.
// Singletons are the common case.
type Group struct {
	Requests []*request.Request // oldest first
}

func (g Group) Oldest() *request.Request { return g.Requests[0] }
func (g Group) Size() int                { return len(g.Requests) }

func (g Group) Seats() int {
	n := 0
	for _, r := range g.Requests {
		n += r.Seats()
	}
	return n
}

func (g Group) IDs() []types.ID {
	ids := make([]types.ID, len(g.Requests))
	for i, r := range g.Requests {
		ids[i] = r.ID
	}
	return ids
}

// Candidate is one scored (worker, group) option.
type Candidate struct {
	Worker      *worker.Worker
	State       WorkerState
	Group       Group
	Cost        float64
	IsChainTrip bool
}

// Pair is a conflict-free assignment decision.
type Pair struct {
	WorkerID    types.ID   `json:"workerId"`
	RequestID   types.ID   `json:"requestId"`
	RequestIDs  []types.ID `json:"requestIds"`
	Cost        float64    `json:"cost"`
	IsChainTrip bool       `json:"isChainTrip"`
	ETAMinutes  int        `json:"etaMinutes,omitempty"`
}

// Result is the engine output: a guard reason or the committed list.
type Result struct {
	Domain     request.Domain `json:"domain"`
	Reason     Reason         `json:"reason,omitempty"`
	Pairs      []Pair         `json:"pairs"`
	Candidates int            `json:"candidates"`
	Strategy   string         `json:"strategy"`
}

// PairFailure is a committed pair whose write failed for a reason other than
// losing the race.
type PairFailure struct {
	WorkerID  types.ID `json:"workerId"`
	RequestID types.ID `json:"requestId"`
	Error     string   `json:"error"`
}

// Report is what the executor did with a Result.
type Report struct {
	Committed []Pair        `json:"committed"`
	Races     int           `json:"races"`
	Failures  []PairFailure `json:"failures,omitempty"`
}

// Outcome is the externally visible result of one dispatch run.
type Outcome struct {
	RunID    string         `json:"runId"`
	Domain   request.Domain `json:"domain"`
	Trigger  Trigger        `json:"trigger"`
	Reason   Reason         `json:"reason,omitempty"`
	Pairs    []Pair         `json:"pairs"`
	Proposed int            `json:"proposed"`
	Races    int            `json:"races,omitempty"`
	Failures []PairFailure  `json:"failures,omitempty"`
}
