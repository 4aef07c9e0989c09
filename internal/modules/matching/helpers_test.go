package matching

import (
	"time"

	"resortdispatch/internal/config"
	"resortdispatch/internal/modules/location"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/types"
)

var (
	t0     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lobby  = types.Point{Lat: 16.0400, Lng: 108.2480}
	villas = []location.Location{
		{ID: "l1", Name: "Main Lobby", Type: location.TypeFacility, Position: lobby},
		{ID: "l2", Name: "Beach Grill", Type: location.TypeRestaurant, Position: location.Offset(lobby, 0, 800)},
		{ID: "l3", Name: "Ocean Villa 12", Type: location.TypeVilla, Position: location.Offset(lobby, 1200, 0)},
	}
)

func testResolver(extra ...location.Location) *location.Resolver {
	return location.NewResolver(append(append([]location.Location{}, villas...), extra...))
}

func testDispatchConfig() config.DispatchConfig {
	cfg := config.DefaultDispatch()
	cfg.GroupSharedPickups = false
	return cfg
}

func testEngine(mod func(*config.DispatchConfig)) *Engine {
	cfg := testDispatchConfig()
	if mod != nil {
		mod(&cfg)
	}
	return NewEngine(cfg, NewCostModel(cfg.Cost, ZeroJitter), nil)
}

func gps(p types.Point) string { return location.FormatGPS(p) }

func ptr[T any](v T) *T { return &v }

// driver returns an online driver (heartbeat 5 s ago); pos may be nil.
func driver(id string, pos *types.Point) worker.Worker {
	return worker.Worker{
		ID:            types.ID(id),
		Role:          worker.RoleDriver,
		Name:          id,
		Position:      pos,
		LastHeartbeat: ptr(t0.Add(-5 * time.Second)),
	}
}

func offlineDriver(id string) worker.Worker {
	w := driver(id, nil)
	w.LastHeartbeat = ptr(t0.Add(-2 * time.Minute))
	return w
}

func staff(id, dept string) worker.Worker {
	return worker.Worker{
		ID:            types.ID(id),
		Role:          worker.RoleStaff,
		Name:          id,
		Department:    dept,
		LastHeartbeat: ptr(t0.Add(-5 * time.Second)),
	}
}

// rideReq is a SEARCHING ride created waited before t0.
func rideReq(id, pickup, dest string, party int, waited time.Duration) request.Request {
	return request.Request{
		ID:          types.ID(id),
		Domain:      request.DomainRide,
		Status:      request.StatusSearching,
		Pickup:      pickup,
		Destination: dest,
		PartySize:   party,
		RoomNumber:  id,
		GuestName:   "guest " + id,
		CreatedAt:   t0.Add(-waited),
	}
}

func serviceReq(id, dept string, waited time.Duration) request.Request {
	return request.Request{
		ID:         types.ID(id),
		Domain:     request.DomainService,
		Status:     request.StatusPending,
		Department: dept,
		CreatedAt:  t0.Add(-waited),
	}
}

// activeRide is a ride already held by workerID in status, confirmed
// confirmedAgo before t0.
func activeRide(id, workerID string, status request.Status, dest string, party int, confirmedAgo time.Duration) request.Request {
	r := rideReq(id, "Main Lobby", dest, party, confirmedAgo+time.Minute)
	r.Status = status
	r.StatusVersion = 1
	r.AssignedWorkerID = ptr(types.ID(workerID))
	r.ConfirmedAt = ptr(t0.Add(-confirmedAgo))
	if status == request.StatusOnTrip {
		r.PickedUpAt = r.ConfirmedAt
	}
	return r
}

func rideSnapshot(reqs []request.Request, workers []worker.Worker) Snapshot {
	return Snapshot{
		Domain:   request.DomainRide,
		Now:      t0,
		Requests: reqs,
		Workers:  workers,
		Resolver: testResolver(),
	}
}
