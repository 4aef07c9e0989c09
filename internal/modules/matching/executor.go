// README: Dispatch executor: commits engine pairs one by one through compare-and-set.
package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"resortdispatch/internal/logger"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/notify"
	"resortdispatch/internal/types"
)

type Assigner interface {
	Assign(ctx context.Context, cmd request.AssignCommand) error
}

type ETAEstimator interface {
	EstimateMinutes(ctx context.Context, from, to types.Point) (int, error)
}

type Executor struct {
	assigner     Assigner
	eta          ETAEstimator
	notifier     notify.Notifier
	metrics      *Metrics
	log          logger.Logger
	storeTimeout time.Duration
	defaultETA   int
	now          func() time.Time
}

type ExecutorOptions struct {
	ETA          ETAEstimator
	Notifier     notify.Notifier
	Metrics      *Metrics
	Logger       logger.Logger
	StoreTimeout time.Duration
	DefaultETA   int
}

func NewExecutor(assigner Assigner, opts ExecutorOptions) *Executor {
	e := &Executor{
		assigner:     assigner,
		eta:          opts.ETA,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		log:          opts.Logger,
		storeTimeout: opts.StoreTimeout,
		defaultETA:   opts.DefaultETA,
		now:          time.Now,
	}
	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}
	if e.log == nil {
		e.log = logger.NopLogger{}
	}
	if e.storeTimeout <= 0 {
		e.storeTimeout = 3 * time.Second
	}
	if e.defaultETA <= 0 {
		e.defaultETA = 5
	}
	return e
}

// Execute commits every pair of res independently. A lost compare-and-set
// drops the request silently; any other error is collected and the batch
// goes on. Nothing already committed is rolled back.
func (e *Executor) Execute(ctx context.Context, runID string, trigger Trigger, snap Snapshot, res Result) Report {
	var rep Report
	for _, p := range res.Pairs {
		committed := e.executePair(ctx, runID, trigger, snap, p, &rep)
		if len(committed.RequestIDs) > 0 {
			rep.Committed = append(rep.Committed, committed)
		}
	}
	return rep
}

func (e *Executor) executePair(ctx context.Context, runID string, trigger Trigger, snap Snapshot, p Pair, rep *Report) Pair {
	eta := e.estimate(ctx, snap, p)
	out := p
	out.ETAMinutes = eta
	out.RequestIDs = nil

	for _, id := range p.RequestIDs {
		r, ok := snap.Request(id)
		if !ok {
			rep.Failures = append(rep.Failures, PairFailure{WorkerID: p.WorkerID, RequestID: id, Error: request.ErrNotFound.Error()})
			continue
		}
		err := e.assign(ctx, request.AssignCommand{
			RequestID:  r.ID,
			WorkerID:   p.WorkerID,
			Status:     r.Status,
			Version:    r.StatusVersion,
			Domain:     r.Domain,
			ETAMinutes: eta,
		})
		switch {
		case err == nil:
			out.RequestIDs = append(out.RequestIDs, id)
			e.metrics.recordCommitted(snap.Domain)
			e.publish(ctx, runID, trigger, snap.Domain, out, id)
		case errors.Is(err, request.ErrConflict):
			rep.Races++
			e.metrics.recordRace(snap.Domain)
			e.log.Debugf("request %s claimed elsewhere, dropping worker %s", id, p.WorkerID)
		default:
			rep.Failures = append(rep.Failures, PairFailure{WorkerID: p.WorkerID, RequestID: id, Error: err.Error()})
			e.metrics.recordFailure(snap.Domain)
			e.log.Warnf("assign request %s to worker %s: %v", id, p.WorkerID, err)
		}
	}
	if len(out.RequestIDs) > 0 {
		out.RequestID = out.RequestIDs[0]
	}
	return out
}

func (e *Executor) assign(ctx context.Context, cmd request.AssignCommand) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return e.assigner.Assign(ctx, cmd)
}

// estimate asks the ETA source for driver-to-pickup time and falls back to
// the placeholder whenever either end is unknown or the source fails.
func (e *Executor) estimate(ctx context.Context, snap Snapshot, p Pair) int {
	if e.eta == nil || snap.Domain != request.DomainRide || snap.Resolver == nil {
		return e.defaultETA
	}
	w, ok := snap.Worker(p.WorkerID)
	if !ok || !w.HasGPS() {
		return e.defaultETA
	}
	r, ok := snap.Request(p.RequestID)
	if !ok {
		return e.defaultETA
	}
	pickup, err := snap.Resolver.Resolve(r.Pickup)
	if err != nil {
		return e.defaultETA
	}
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	minutes, err := e.eta.EstimateMinutes(ctx, *w.Position, pickup)
	if err != nil || minutes <= 0 {
		if err != nil {
			e.log.Debugf("eta for worker %s: %v", p.WorkerID, err)
		}
		return e.defaultETA
	}
	return minutes
}

func (e *Executor) publish(ctx context.Context, runID string, trigger Trigger, d request.Domain, p Pair, id types.ID) {
	err := e.notifier.PublishAssignment(ctx, notify.AssignmentEvent{
		EventID:     uuid.NewString(),
		RunID:       runID,
		Domain:      string(d),
		Trigger:     string(trigger),
		RequestID:   id,
		WorkerID:    p.WorkerID,
		Cost:        p.Cost,
		IsChainTrip: p.IsChainTrip,
		ETAMinutes:  p.ETAMinutes,
		AssignedAt:  e.now(),
	})
	if err != nil {
		e.log.Warnf("publish assignment %s: %v", id, err)
	}
}
