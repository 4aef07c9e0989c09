// README: Matching service: loads a snapshot, runs the engine, hands pairs to the executor.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resortdispatch/internal/logger"
	"resortdispatch/internal/modules/location"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
)

type RequestFeed interface {
	ListOpen(ctx context.Context, domain request.Domain) ([]request.Request, error)
}

type WorkerFeed interface {
	List(ctx context.Context, role worker.Role) ([]worker.Worker, error)
}

type LocationSource interface {
	Resolver(ctx context.Context) (*location.Resolver, error)
}

type Service struct {
	requests    RequestFeed
	workers     WorkerFeed
	locations   LocationSource
	engine      *Engine
	executor    *Executor
	metrics     *Metrics
	log         logger.Logger
	readTimeout time.Duration
	now         func() time.Time
}

type Deps struct {
	Requests    RequestFeed
	Workers     WorkerFeed
	Locations   LocationSource
	Engine      *Engine
	Executor    *Executor
	Metrics     *Metrics
	Logger      logger.Logger
	ReadTimeout time.Duration
}

func NewService(d Deps) *Service {
	s := &Service{
		requests:    d.Requests,
		workers:     d.Workers,
		locations:   d.Locations,
		engine:      d.Engine,
		executor:    d.Executor,
		metrics:     d.Metrics,
		log:         d.Logger,
		readTimeout: d.ReadTimeout,
		now:         time.Now,
	}
	if s.log == nil {
		s.log = logger.NopLogger{}
	}
	if s.readTimeout <= 0 {
		s.readTimeout = 3 * time.Second
	}
	return s
}

// LoadSnapshot reads the current state of one domain.
func (s *Service) LoadSnapshot(ctx context.Context, domain request.Domain) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	reqs, err := s.requests.ListOpen(ctx, domain)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load requests: %w", err)
	}
	workers, err := s.workers.List(ctx, roleFor(domain))
	if err != nil {
		return Snapshot{}, fmt.Errorf("load workers: %w", err)
	}
	res, err := s.locations.Resolver(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load locations: %w", err)
	}
	return Snapshot{
		Domain:   domain,
		Now:      s.now(),
		Requests: reqs,
		Workers:  workers,
		Resolver: res,
	}, nil
}

// ProposeAssignment is the operator trigger: no cooldown, no wait threshold.
func (s *Service) ProposeAssignment(ctx context.Context, domain request.Domain) (Outcome, error) {
	snap, err := s.LoadSnapshot(ctx, domain)
	if err != nil {
		return Outcome{}, err
	}
	return s.Run(ctx, snap, TriggerOperator), nil
}

// Run computes and executes one assignment over snap.
func (s *Service) Run(ctx context.Context, snap Snapshot, trigger Trigger) Outcome {
	runID := uuid.NewString()
	start := time.Now()
	res := s.engine.ComputeAssignment(snap)
	s.metrics.observeEngine(snap.Domain, res.Strategy, time.Since(start))
	s.metrics.recordRun(snap.Domain, trigger, res.Reason)

	out := Outcome{
		RunID:    runID,
		Domain:   snap.Domain,
		Trigger:  trigger,
		Reason:   res.Reason,
		Pairs:    []Pair{},
		Proposed: len(res.Pairs),
	}
	if res.Reason != ReasonNone {
		s.log.Debugw("dispatch run skipped", map[string]any{
			"run_id": runID, "domain": snap.Domain, "trigger": trigger, "reason": res.Reason,
		})
		return out
	}

	rep := s.executor.Execute(ctx, runID, trigger, snap, res)
	out.Pairs = append(out.Pairs, rep.Committed...)
	out.Races = rep.Races
	out.Failures = rep.Failures
	s.log.Infow("dispatch run", map[string]any{
		"run_id":     runID,
		"domain":     snap.Domain,
		"trigger":    trigger,
		"strategy":   res.Strategy,
		"candidates": res.Candidates,
		"proposed":   len(res.Pairs),
		"committed":  len(rep.Committed),
		"races":      rep.Races,
		"failures":   len(rep.Failures),
	})
	return out
}
