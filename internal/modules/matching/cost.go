// README: Cost model. Lower is better; negative costs are priority boosts.
package matching

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"resortdispatch/internal/config"
	"resortdispatch/internal/modules/location"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
)

// Jitter yields values in [0,1). It only ever feeds the service staff
// tie-break.
type Jitter interface {
	Float64() float64
}

type zeroJitter struct{}

func (zeroJitter) Float64() float64 { return 0 }

// ZeroJitter disables the staff tie-break.
var ZeroJitter Jitter = zeroJitter{}

// lockedRand is a Jitter safe for concurrent runs.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomJitter(seed int64) Jitter {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

type CostModel struct {
	cfg    config.CostConfig
	jitter Jitter
}

func NewCostModel(cfg config.CostConfig, jitter Jitter) *CostModel {
	if jitter == nil {
		jitter = ZeroJitter
	}
	return &CostModel{cfg: cfg, jitter: jitter}
}

// RideCost scores driver w for request r. chain is true when the pickup is
// within the chain radius of the driver's current drop-off.
func (m *CostModel) RideCost(w *worker.Worker, st WorkerState, r *request.Request, res Resolver, now time.Time) (cost float64, chain bool) {
	if w.HasGPS() {
		cost, chain = m.rideCostGPS(w, st, r, res)
	} else {
		cost, chain = m.rideCostNoGPS(w, st, r, res, now)
	}
	return cost - r.WaitSeconds(now)*m.cfg.WaitWeight, chain
}

func (m *CostModel) rideCostGPS(w *worker.Worker, st WorkerState, r *request.Request, res Resolver) (float64, bool) {
	pickup, err := res.Resolve(r.Pickup)
	if err != nil {
		return m.cfg.UnresolvableCost, false
	}
	distance := location.DistanceMeters(*w.Position, pickup)
	if !st.Busy() {
		return distance - m.cfg.AvailableBonus, false
	}
	dest, err := res.Resolve(st.Current.Destination)
	if err != nil {
		return distance + m.cfg.BusyPenalty, false
	}
	if chain := location.DistanceMeters(dest, pickup); chain < m.cfg.ChainRadiusM {
		return chain - m.cfg.ChainBonus, true
	}
	return distance + m.cfg.BusyPenalty, false
}

func (m *CostModel) rideCostNoGPS(w *worker.Worker, st WorkerState, r *request.Request, res Resolver, now time.Time) (float64, bool) {
	if !st.Busy() {
		if w.LastHeartbeat == nil {
			return m.cfg.OfflineCost, false
		}
		return m.cfg.AvailableNoGPSCost, false
	}

	// Chain override first: it wins over the duration guess.
	if dest, err := res.Resolve(st.Current.Destination); err == nil {
		if pickup, err := res.Resolve(r.Pickup); err == nil {
			if chain := location.DistanceMeters(dest, pickup); chain < m.cfg.ChainRadiusM {
				return chain - m.cfg.ChainBonus, true
			}
		}
	}

	minutes := elapsedMinutes(st.Current, now)
	switch {
	case minutes >= m.cfg.NearCompletionMinutes:
		return math.Max(0, m.cfg.NearCompletionBase-(minutes-m.cfg.NearCompletionMinutes)*m.cfg.NearCompletionDecay), false
	case minutes >= m.cfg.MidTripMinutes:
		return m.cfg.MidTripCost, false
	default:
		return m.cfg.EarlyTripCost, false
	}
}

// elapsedMinutes measures the current trip from pickup when in transit,
// otherwise from confirmation.
func elapsedMinutes(r *request.Request, now time.Time) float64 {
	var since *time.Time
	if r.InTransit() && r.PickedUpAt != nil {
		since = r.PickedUpAt
	} else {
		since = r.ConfirmedAt
	}
	if since == nil {
		return 0
	}
	d := now.Sub(*since).Minutes()
	if d < 0 {
		return 0
	}
	return d
}

// ServiceCost scores a staff member given their department's load, the
// floor of confirmed department requests over department staff.
func (m *CostModel) ServiceCost(deptLoad int) float64 {
	cost := 0.0
	if deptLoad >= m.cfg.ServiceBusyLoad {
		cost += m.cfg.ServiceBusyPenalty
	}
	return cost + m.jitter.Float64()*m.cfg.ServiceJitterMax
}

// Qualifies applies the busy-worker gate: a busy driver only takes chain
// trips, a busy staff member only takes cheap work.
func (m *CostModel) Qualifies(domain request.Domain, st WorkerState, cost float64) bool {
	if !st.Busy() {
		return true
	}
	if domain == request.DomainService {
		return cost <= m.cfg.ServiceBusyThreshold
	}
	return cost <= m.cfg.RideChainThreshold
}
