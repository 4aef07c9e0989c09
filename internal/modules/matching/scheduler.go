// README: Auto-assign scheduler: silently dispatches rides that waited past the fleet threshold.
package matching

import (
	"context"
	"sync"
	"time"

	"resortdispatch/internal/logger"
	"resortdispatch/internal/modules/fleet"
	"resortdispatch/internal/modules/request"
)

type FleetSource interface {
	Get(ctx context.Context) (fleet.Config, error)
}

const (
	TickDisabled       = "disabled"
	TickCooldown       = "cooldown"
	TickBelowThreshold = "below_threshold"
	TickRan            = "ran"
	TickError          = "error"
)

// TickOutcome says what one tick did. Outcome is set only when a run happened.
type TickOutcome struct {
	Reason  string   `json:"reason"`
	Outcome *Outcome `json:"outcome,omitempty"`
}

// Scheduler owns lastRunAt for this process only. Other processes are kept
// honest by the compare-and-set commit, not by this cooldown.
type Scheduler struct {
	svc      *Service
	fleet    FleetSource
	interval time.Duration
	cooldown time.Duration
	metrics  *Metrics
	log      logger.Logger

	mu        sync.Mutex
	lastRunAt time.Time
}

func NewScheduler(svc *Service, fleetCfg FleetSource, interval, cooldown time.Duration, metrics *Metrics, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Scheduler{svc: svc, fleet: fleetCfg, interval: interval, cooldown: cooldown, metrics: metrics, log: log}
}

func (s *Scheduler) LastRunAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

// Tick evaluates the auto-assign rules once. Ticks are serialized.
func (s *Scheduler) Tick(ctx context.Context) (TickOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.tick(ctx)
	s.metrics.recordTick(out.Reason)
	return out, err
}

func (s *Scheduler) tick(ctx context.Context) (TickOutcome, error) {
	cfg, err := s.fleet.Get(ctx)
	if err != nil {
		return TickOutcome{Reason: TickError}, err
	}
	if !cfg.AutoAssignEnabled {
		return TickOutcome{Reason: TickDisabled}, nil
	}
	now := s.svc.now()
	if !s.lastRunAt.IsZero() && now.Sub(s.lastRunAt) < s.cooldown {
		return TickOutcome{Reason: TickCooldown}, nil
	}

	snap, err := s.svc.LoadSnapshot(ctx, request.DomainRide)
	if err != nil {
		return TickOutcome{Reason: TickError}, err
	}
	if !anyOverdue(snap, cfg.MaxWait()) {
		return TickOutcome{Reason: TickBelowThreshold}, nil
	}

	out := s.svc.Run(ctx, snap, TriggerAuto)
	s.lastRunAt = now
	return TickOutcome{Reason: TickRan, Outcome: &out}, nil
}

func anyOverdue(snap Snapshot, maxWait time.Duration) bool {
	for i := range snap.Requests {
		r := &snap.Requests[i]
		if r.Status == request.StatusSearching && r.WaitSeconds(snap.Now) >= maxWait.Seconds() {
			return true
		}
	}
	return false
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out, err := s.Tick(ctx)
			if err != nil {
				s.log.Warnf("auto-assign tick: %v", err)
				continue
			}
			if out.Outcome != nil {
				s.log.Infof("auto-assign ran: reason=%q committed=%d", out.Outcome.Reason, len(out.Outcome.Pairs))
			}
		}
	}
}
