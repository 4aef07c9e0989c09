// README: Matching engine: pure snapshot -> conflict-free assignment.
package matching

import (
	"sort"
	"strings"
	"time"

	"resortdispatch/internal/config"
	"resortdispatch/internal/logger"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/types"
)

// maxOptimalCandidates bounds the LP size; larger passes stay greedy.
const maxOptimalCandidates = 2000

type Engine struct {
	cfg  config.DispatchConfig
	cost *CostModel
	log  logger.Logger
}

func NewEngine(cfg config.DispatchConfig, cost *CostModel, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{cfg: cfg, cost: cost, log: log}
}

func roleFor(d request.Domain) worker.Role {
	if d == request.DomainService {
		return worker.RoleStaff
	}
	return worker.RoleDriver
}

// ComputeAssignment runs one matching pass. It reads snap only and has no
// side effects, so it can be called any number of times.
func (e *Engine) ComputeAssignment(snap Snapshot) Result {
	strategy := e.cfg.Strategy
	if strategy == "" {
		strategy = config.StrategyGreedy
	}
	res := Result{Domain: snap.Domain, Pairs: []Pair{}, Strategy: strategy}

	eligible := eligibleRequests(snap)
	if len(eligible) == 0 {
		res.Reason = ReasonNoEligibleRequests
		return res
	}

	role := roleFor(snap.Domain)
	var workers []*worker.Worker
	for i := range snap.Workers {
		if snap.Workers[i].Role == role {
			workers = append(workers, &snap.Workers[i])
		}
	}
	if len(workers) == 0 {
		res.Reason = ReasonNoWorkers
		return res
	}

	states := workerStates(snap)
	ttl := time.Duration(e.cfg.HeartbeatTTLSeconds) * time.Second
	var online []*worker.Worker
	for _, w := range workers {
		if w.Online(snap.Now, ttl, states[w.ID].ActiveCount > 0) {
			online = append(online, w)
		}
	}
	if len(online) == 0 {
		res.Reason = ReasonNoOnlineWorkers
		return res
	}

	groups := e.buildGroups(snap.Domain, eligible)
	cands := e.candidates(snap, online, states, groups)
	res.Candidates = len(cands)
	sortCandidates(cands)
	feasible := e.feasible(snap.Domain, cands)

	var chosen []Candidate
	if strategy == config.StrategyOptimal && len(feasible) <= maxOptimalCandidates {
		var ok bool
		chosen, ok = solveOptimal(feasible)
		if !ok {
			e.log.Debugf("optimal assignment unavailable for %d candidates, falling back to greedy", len(feasible))
			res.Strategy = config.StrategyGreedy
			chosen = greedy(feasible)
		}
	} else {
		if strategy == config.StrategyOptimal {
			res.Strategy = config.StrategyGreedy
		}
		chosen = greedy(feasible)
	}

	for _, c := range chosen {
		res.Pairs = append(res.Pairs, Pair{
			WorkerID:    c.Worker.ID,
			RequestID:   c.Group.Oldest().ID,
			RequestIDs:  c.Group.IDs(),
			Cost:        c.Cost,
			IsChainTrip: c.IsChainTrip,
		})
	}
	return res
}

func eligibleRequests(snap Snapshot) []*request.Request {
	want := request.EligibleStatus(snap.Domain)
	var out []*request.Request
	for i := range snap.Requests {
		r := &snap.Requests[i]
		if r.Domain == snap.Domain && r.Status == want {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return olderThan(out[i], out[j]) })
	return out
}

func olderThan(a, b *request.Request) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// workerStates derives each worker's load from the active requests assigned
// to them.
func workerStates(snap Snapshot) map[types.ID]WorkerState {
	states := make(map[types.ID]WorkerState)
	for i := range snap.Requests {
		r := &snap.Requests[i]
		if !r.IsActive() || r.AssignedWorkerID == nil {
			continue
		}
		st := states[*r.AssignedWorkerID]
		st.ActiveCount++
		st.ActiveSeats += r.Seats()
		st.Current = currentOf(st.Current, r)
		states[*r.AssignedWorkerID] = st
	}
	return states
}

// currentOf keeps the in-transit request, else the earliest confirmed.
func currentOf(cur, r *request.Request) *request.Request {
	if cur == nil {
		return r
	}
	if cur.InTransit() != r.InTransit() {
		if r.InTransit() {
			return r
		}
		return cur
	}
	if confirmedBefore(r, cur) {
		return r
	}
	return cur
}

func confirmedBefore(a, b *request.Request) bool {
	switch {
	case a.ConfirmedAt == nil && b.ConfirmedAt == nil:
		return olderThan(a, b)
	case a.ConfirmedAt == nil:
		return false
	case b.ConfirmedAt == nil:
		return true
	case a.ConfirmedAt.Equal(*b.ConfirmedAt):
		return olderThan(a, b)
	}
	return a.ConfirmedAt.Before(*b.ConfirmedAt)
}

// buildGroups returns one singleton per request, plus for rides one shared
// group per pickup/destination pair when several parties fit in a buggy.
func (e *Engine) buildGroups(d request.Domain, eligible []*request.Request) []Group {
	groups := make([]Group, 0, len(eligible))
	for _, r := range eligible {
		groups = append(groups, Group{Requests: []*request.Request{r}})
	}
	if d != request.DomainRide || !e.cfg.GroupSharedPickups {
		return groups
	}

	type key struct{ pickup, dest string }
	byRoute := make(map[key][]*request.Request)
	var order []key
	for _, r := range eligible {
		k := key{routeKey(r.Pickup), routeKey(r.Destination)}
		if _, seen := byRoute[k]; !seen {
			order = append(order, k)
		}
		byRoute[k] = append(byRoute[k], r)
	}
	capacity := e.cfg.Cost.VehicleCapacity
	for _, k := range order {
		members := byRoute[k]
		if len(members) < 2 {
			continue
		}
		var g Group
		seats := 0
		for _, r := range members {
			if seats+r.Seats() > capacity {
				continue
			}
			g.Requests = append(g.Requests, r)
			seats += r.Seats()
		}
		if g.Size() >= 2 {
			groups = append(groups, g)
		}
	}
	return groups
}

func routeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func (e *Engine) candidates(snap Snapshot, online []*worker.Worker, states map[types.ID]WorkerState, groups []Group) []Candidate {
	out := make([]Candidate, 0, len(online)*len(groups))
	if snap.Domain == request.DomainService {
		loads := departmentLoads(snap)
		for _, w := range online {
			dept := routeKey(w.Department)
			for _, g := range groups {
				if routeKey(g.Oldest().Department) != dept {
					continue
				}
				out = append(out, Candidate{
					Worker: w,
					State:  states[w.ID],
					Group:  g,
					Cost:   e.cost.ServiceCost(loads[dept]),
				})
			}
		}
		return out
	}

	for _, w := range online {
		st := states[w.ID]
		for _, g := range groups {
			cost, chain := e.cost.RideCost(w, st, g.Oldest(), snap.Resolver, snap.Now)
			out = append(out, Candidate{Worker: w, State: st, Group: g, Cost: cost, IsChainTrip: chain})
		}
	}
	return out
}

// departmentLoads is floor(confirmed requests / staff) per department.
func departmentLoads(snap Snapshot) map[string]int {
	staff := make(map[string]int)
	for _, w := range snap.Workers {
		if w.Role == worker.RoleStaff {
			staff[routeKey(w.Department)]++
		}
	}
	confirmed := make(map[string]int)
	for _, r := range snap.Requests {
		if r.Status == request.StatusConfirmed {
			confirmed[routeKey(r.Department)]++
		}
	}
	loads := make(map[string]int, len(staff))
	for dept, n := range staff {
		if n > 0 {
			loads[dept] = confirmed[dept] / n
		}
	}
	return loads
}

// sortCandidates orders by cost, then larger groups, then older requests,
// then worker id, so equal inputs always give the same order.
func sortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := c[i], c[j]
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		if a.Group.Size() != b.Group.Size() {
			return a.Group.Size() > b.Group.Size()
		}
		if !a.Group.Oldest().CreatedAt.Equal(b.Group.Oldest().CreatedAt) {
			return a.Group.Oldest().CreatedAt.Before(b.Group.Oldest().CreatedAt)
		}
		if a.Worker.ID != b.Worker.ID {
			return a.Worker.ID < b.Worker.ID
		}
		return a.Group.Oldest().ID < b.Group.Oldest().ID
	})
}

// feasible drops candidates that can never be committed: over capacity, or a
// busy worker whose cost does not qualify.
func (e *Engine) feasible(d request.Domain, cands []Candidate) []Candidate {
	out := cands[:0:0]
	for _, c := range cands {
		if d == request.DomainRide && c.State.ActiveSeats+c.Group.Seats() > e.cfg.Cost.VehicleCapacity {
			continue
		}
		if !e.cost.Qualifies(d, c.State, c.Cost) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// greedy walks sorted candidates once, committing each one that does not
// touch an already committed worker or request.
func greedy(cands []Candidate) []Candidate {
	usedWorkers := make(map[types.ID]bool)
	usedRequests := make(map[types.ID]bool)
	var out []Candidate
	for _, c := range cands {
		if usedWorkers[c.Worker.ID] || anyUsed(usedRequests, c.Group) {
			continue
		}
		usedWorkers[c.Worker.ID] = true
		for _, r := range c.Group.Requests {
			usedRequests[r.ID] = true
		}
		out = append(out, c)
	}
	return out
}

func anyUsed(used map[types.ID]bool, g Group) bool {
	for _, r := range g.Requests {
		if used[r.ID] {
			return true
		}
	}
	return false
}
