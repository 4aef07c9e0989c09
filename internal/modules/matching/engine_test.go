// README: Matching engine tests (guards, grouping, capacity, deterministic ordering).
package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resortdispatch/internal/config"
	"resortdispatch/internal/modules/location"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/types"
)

func TestGuardReasons(t *testing.T) {
	e := testEngine(nil)

	res := e.ComputeAssignment(rideSnapshot(nil, []worker.Worker{driver("d1", &lobby)}))
	assert.Equal(t, ReasonNoEligibleRequests, res.Reason)
	assert.Empty(t, res.Pairs)

	// only an already assigned request: still nothing eligible
	held := activeRide("a", "d1", request.StatusAssigned, "Beach Grill", 1, time.Minute)
	res = e.ComputeAssignment(rideSnapshot([]request.Request{held}, []worker.Worker{driver("d1", &lobby)}))
	assert.Equal(t, ReasonNoEligibleRequests, res.Reason)

	reqs := []request.Request{rideReq("r1", "Main Lobby", "Beach Grill", 1, time.Minute)}
	res = e.ComputeAssignment(rideSnapshot(reqs, nil))
	assert.Equal(t, ReasonNoWorkers, res.Reason)

	// staff never serve rides
	res = e.ComputeAssignment(rideSnapshot(reqs, []worker.Worker{staff("s1", "Spa")}))
	assert.Equal(t, ReasonNoWorkers, res.Reason)

	res = e.ComputeAssignment(rideSnapshot(reqs, []worker.Worker{offlineDriver("d1")}))
	assert.Equal(t, ReasonNoOnlineWorkers, res.Reason)
	assert.Empty(t, res.Pairs)
}

func TestGuardIsIdempotent(t *testing.T) {
	e := testEngine(nil)
	snap := rideSnapshot(nil, []worker.Worker{driver("d1", &lobby)})
	first := e.ComputeAssignment(snap)
	second := e.ComputeAssignment(snap)
	assert.Equal(t, ReasonNoEligibleRequests, first.Reason)
	assert.Equal(t, first, second)
}

// Scenario D: no online driver, one waiting request.
func TestScenarioNoOnlineDrivers(t *testing.T) {
	e := testEngine(nil)
	reqs := []request.Request{rideReq("r1", "Main Lobby", "Beach Grill", 2, 10*time.Minute)}
	snap := rideSnapshot(reqs, []worker.Worker{offlineDriver("d1"), offlineDriver("d2")})

	res := e.ComputeAssignment(snap)
	assert.Equal(t, ReasonNoOnlineWorkers, res.Reason)
	assert.Empty(t, res.Pairs)
	assert.Equal(t, request.StatusSearching, snap.Requests[0].Status, "engine never mutates the snapshot")
}

func TestActiveAssignmentKeepsDriverOnline(t *testing.T) {
	e := testEngine(nil)
	d := offlineDriver("d1")
	pickup := location.Offset(lobby, 100, 0)
	held := activeRide("a", "d1", request.StatusOnTrip, "Main Lobby", 1, 10*time.Minute)
	snap := rideSnapshot([]request.Request{held, rideReq("r1", gps(pickup), "Beach Grill", 1, time.Minute)}, []worker.Worker{d})

	res := e.ComputeAssignment(snap)
	require.Equal(t, ReasonNone, res.Reason)
	require.Len(t, res.Pairs, 1)
	assert.True(t, res.Pairs[0].IsChainTrip)
}

func TestGreedyPrefersLowestCost(t *testing.T) {
	e := testEngine(nil)
	near := driver("near", ptr(location.Offset(lobby, 50, 0)))
	far := driver("far", ptr(location.Offset(lobby, 2000, 0)))
	reqs := []request.Request{rideReq("r1", "Main Lobby", "Beach Grill", 1, time.Minute)}

	res := e.ComputeAssignment(rideSnapshot(reqs, []worker.Worker{far, near}))
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, types.ID("near"), res.Pairs[0].WorkerID)
	assert.Equal(t, types.ID("r1"), res.Pairs[0].RequestID)
	assert.Equal(t, []types.ID{"r1"}, res.Pairs[0].RequestIDs)
}

func TestEachWorkerAndRequestUsedOnce(t *testing.T) {
	e := testEngine(nil)
	workers := []worker.Worker{
		driver("d1", ptr(location.Offset(lobby, 10, 0))),
		driver("d2", ptr(location.Offset(lobby, 20, 0))),
		driver("d3", ptr(location.Offset(lobby, 30, 0))),
	}
	reqs := []request.Request{
		rideReq("r1", "Main Lobby", "Beach Grill", 1, 3*time.Minute),
		rideReq("r2", "Main Lobby", "Ocean Villa 12", 1, 2*time.Minute),
		rideReq("r3", "Beach Grill", "Main Lobby", 1, time.Minute),
		rideReq("r4", "Ocean Villa 12", "Main Lobby", 1, 0),
	}

	res := e.ComputeAssignment(rideSnapshot(reqs, workers))
	require.Len(t, res.Pairs, 3)
	seenW := map[types.ID]bool{}
	seenR := map[types.ID]bool{}
	for _, p := range res.Pairs {
		assert.False(t, seenW[p.WorkerID])
		assert.False(t, seenR[p.RequestID])
		seenW[p.WorkerID] = true
		seenR[p.RequestID] = true
	}
	// the oldest request wins the wait discount, the newest waits a cycle
	assert.True(t, seenR["r1"])
	assert.False(t, seenR["r4"])
}

// Scenario C: busy driver whose drop-off is 150 m from the new pickup beats
// any available driver more than 5150 m away.
func TestScenarioChainTripWins(t *testing.T) {
	e := testEngine(nil)
	dropoff := types.Point{Lat: 16.0400, Lng: 108.2480}
	pickup := location.Offset(dropoff, 150, 0)

	busy := driver("busy", ptr(location.Offset(dropoff, -2500, 0)))
	held := activeRide("a", "busy", request.StatusOnTrip, gps(dropoff), 2, 4*time.Minute)
	avail := driver("avail", ptr(location.Offset(pickup, 5200, 0)))
	reqs := []request.Request{held, rideReq("r1", gps(pickup), "Beach Grill", 2, 30*time.Second)}

	res := e.ComputeAssignment(rideSnapshot(reqs, []worker.Worker{avail, busy}))
	require.Len(t, res.Pairs, 1)
	p := res.Pairs[0]
	assert.Equal(t, types.ID("busy"), p.WorkerID)
	assert.True(t, p.IsChainTrip)
	assert.Less(t, p.Cost, 0.0)
	assert.InDelta(t, 150-10000-30*10, p.Cost, 0.5)
}

func TestBusyDriverWithoutChainIsSkipped(t *testing.T) {
	e := testEngine(nil)
	busy := driver("busy", &lobby)
	held := activeRide("a", "busy", request.StatusAssigned, "Ocean Villa 12", 1, time.Minute)
	reqs := []request.Request{held, rideReq("r1", "Main Lobby", "Beach Grill", 1, time.Minute)}

	res := e.ComputeAssignment(rideSnapshot(reqs, []worker.Worker{busy}))
	assert.Equal(t, ReasonNone, res.Reason)
	assert.Empty(t, res.Pairs, "busy driver only takes chain trips")
	assert.Equal(t, 1, res.Candidates)
}

func TestCapacityInvariant(t *testing.T) {
	e := testEngine(nil)
	pickup := location.Offset(lobby, 50, 0)
	busy := driver("busy", &lobby)
	held := activeRide("a", "busy", request.StatusAssigned, "Main Lobby", 5, time.Minute)

	tooBig := rideReq("big", gps(pickup), "Beach Grill", 3, time.Minute)
	res := e.ComputeAssignment(rideSnapshot([]request.Request{held, tooBig}, []worker.Worker{busy}))
	assert.Empty(t, res.Pairs, "5 seated + 3 exceeds 7")

	fits := rideReq("fits", gps(pickup), "Beach Grill", 2, time.Minute)
	res = e.ComputeAssignment(rideSnapshot([]request.Request{held, fits}, []worker.Worker{busy}))
	require.Len(t, res.Pairs, 1)
	assert.True(t, res.Pairs[0].IsChainTrip)
}

func TestCapacityInvariantRandomized(t *testing.T) {
	e := testEngine(func(c *config.DispatchConfig) { c.GroupSharedPickups = true })
	for seed := 0; seed < 25; seed++ {
		snap := SyntheticSnapshot(int64(seed), 12, 6, t0)
		res := e.ComputeAssignment(snap)
		states := workerStates(snap)
		for _, p := range res.Pairs {
			seats := states[p.WorkerID].ActiveSeats
			for _, id := range p.RequestIDs {
				r, ok := snap.Request(id)
				require.True(t, ok)
				seats += r.Seats()
			}
			assert.LessOrEqual(t, seats, 7, "seed %d worker %s", seed, p.WorkerID)
		}
	}
}

func TestTieBreakPrefersLargerGroup(t *testing.T) {
	e := testEngine(func(c *config.DispatchConfig) { c.GroupSharedPickups = true })
	d := driver("d1", &lobby)
	reqs := []request.Request{
		rideReq("r1", "Main Lobby", "Beach Grill", 2, time.Minute),
		rideReq("r2", "main lobby", "BEACH GRILL", 3, 30*time.Second),
	}

	res := e.ComputeAssignment(rideSnapshot(reqs, []worker.Worker{d}))
	require.Len(t, res.Pairs, 1)
	p := res.Pairs[0]
	assert.Equal(t, []types.ID{"r1", "r2"}, p.RequestIDs)
	assert.Equal(t, types.ID("r1"), p.RequestID)
	// group cost is the oldest member's cost
	assert.InDelta(t, -5000-60*10, p.Cost, 0.5)
}

func TestSharedPickupGroupRespectsCapacity(t *testing.T) {
	e := testEngine(func(c *config.DispatchConfig) { c.GroupSharedPickups = true })
	reqs := []*request.Request{}
	for i, party := range []int{4, 4, 3} {
		r := rideReq(string(rune('a'+i)), "Main Lobby", "Beach Grill", party, time.Duration(3-i)*time.Minute)
		reqs = append(reqs, &r)
	}
	groups := e.buildGroups(request.DomainRide, reqs)
	require.Len(t, groups, 4)
	shared := groups[3]
	assert.Equal(t, []types.ID{"a", "c"}, shared.IDs())
	assert.Equal(t, 7, shared.Seats())
}

func TestTieBreakIsDeterministic(t *testing.T) {
	e := testEngine(nil)
	workers := []worker.Worker{driver("b", nil), driver("a", nil)}
	reqs := []request.Request{
		rideReq("r2", "Main Lobby", "Beach Grill", 1, time.Minute),
		rideReq("r1", "Main Lobby", "Beach Grill", 1, time.Minute),
	}

	first := e.ComputeAssignment(rideSnapshot(reqs, workers))
	require.Len(t, first.Pairs, 2)
	assert.Equal(t, types.ID("a"), first.Pairs[0].WorkerID)
	assert.Equal(t, types.ID("r1"), first.Pairs[0].RequestID)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.ComputeAssignment(rideSnapshot(reqs, workers)))
	}
}

func TestUnresolvablePickupStaysAssignable(t *testing.T) {
	e := testEngine(nil)
	reqs := []request.Request{rideReq("r1", "behind the big tree", "Beach Grill", 1, time.Minute)}
	res := e.ComputeAssignment(rideSnapshot(reqs, []worker.Worker{driver("d1", &lobby)}))
	require.Len(t, res.Pairs, 1)
	assert.InDelta(t, 1_000_000-600, res.Pairs[0].Cost, 1e-6)
}

func TestCurrentRequestPrefersInTransit(t *testing.T) {
	early := activeRide("early", "d1", request.StatusAssigned, "x", 1, 10*time.Minute)
	late := activeRide("late", "d1", request.StatusAssigned, "y", 1, 2*time.Minute)
	moving := activeRide("moving", "d1", request.StatusOnTrip, "z", 1, time.Minute)

	snap := rideSnapshot([]request.Request{late, early}, nil)
	st := workerStates(snap)["d1"]
	assert.Equal(t, types.ID("early"), st.Current.ID)
	assert.Equal(t, 2, st.ActiveCount)
	assert.Equal(t, 2, st.ActiveSeats)

	snap = rideSnapshot([]request.Request{early, moving, late}, nil)
	assert.Equal(t, types.ID("moving"), workerStates(snap)["d1"].Current.ID)
}

func TestServiceMatchingByDepartment(t *testing.T) {
	e := testEngine(nil)
	snap := Snapshot{
		Domain: request.DomainService,
		Now:    t0,
		Requests: []request.Request{
			serviceReq("towels", "Housekeeping", 2*time.Minute),
			serviceReq("massage", "Spa", time.Minute),
			serviceReq("pool", "Maintenance", time.Minute),
		},
		Workers: []worker.Worker{
			staff("hk1", "housekeeping"),
			staff("spa1", "Spa"),
			driver("d1", &lobby),
		},
		Resolver: testResolver(),
	}

	res := e.ComputeAssignment(snap)
	require.Equal(t, ReasonNone, res.Reason)
	require.Len(t, res.Pairs, 2)
	got := map[types.ID]types.ID{}
	for _, p := range res.Pairs {
		got[p.RequestID] = p.WorkerID
		assert.False(t, p.IsChainTrip)
	}
	assert.Equal(t, types.ID("hk1"), got["towels"])
	assert.Equal(t, types.ID("spa1"), got["massage"])
}

func TestServiceBusyStaffGate(t *testing.T) {
	confirmed := func(id, wid string) request.Request {
		r := serviceReq(id, "Spa", 10*time.Minute)
		r.Status = request.StatusConfirmed
		r.AssignedWorkerID = ptr(types.ID(wid))
		r.ConfirmedAt = ptr(t0.Add(-time.Minute))
		return r
	}
	reqs := []request.Request{
		confirmed("c1", "spa1"), confirmed("c2", "spa1"), confirmed("c3", "spa1"),
		serviceReq("new", "Spa", time.Minute),
	}
	snap := Snapshot{Domain: request.DomainService, Now: t0, Requests: reqs, Workers: []worker.Worker{staff("spa1", "Spa")}, Resolver: testResolver()}

	// load 3/1 = 3 costs 1000, under the 1500 gate
	res := testEngine(nil).ComputeAssignment(snap)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, 1000.0, res.Pairs[0].Cost)

	strict := testEngine(func(c *config.DispatchConfig) { c.Cost.ServiceBusyThreshold = 500 })
	assert.Empty(t, strict.ComputeAssignment(snap).Pairs)
}

func TestDepartmentLoads(t *testing.T) {
	mk := func(dept string) request.Request {
		r := serviceReq("x", dept, 0)
		r.Status = request.StatusConfirmed
		return r
	}
	snap := Snapshot{
		Requests: []request.Request{mk("Spa"), mk("Spa"), mk("Spa"), mk("Spa"), mk("Spa"), mk("Spa"), mk("Spa"), mk("Kitchen")},
		Workers:  []worker.Worker{staff("a", "Spa"), staff("b", "Spa"), staff("c", "Kitchen")},
	}
	loads := departmentLoads(snap)
	assert.Equal(t, 3, loads["spa"])
	assert.Equal(t, 1, loads["kitchen"])
}
