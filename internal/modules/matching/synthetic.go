// README: Synthetic fleet state for load checks and the bench command.
package matching

import (
	"fmt"
	"math/rand"
	"time"

	"resortdispatch/internal/modules/location"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/types"
)

// resortCenter anchors generated positions; everything lands within ~2 km.
var resortCenter = types.Point{Lat: 16.0400, Lng: 108.2480}

// SyntheticSnapshot builds a reproducible ride snapshot with nRequests
// waiting requests and nWorkers drivers, a third of them busy. Pickups and
// drop-offs are GPS literals, so no registry is needed to resolve them.
func SyntheticSnapshot(seed int64, nRequests, nWorkers int, now time.Time) Snapshot {
	rnd := rand.New(rand.NewSource(seed))
	point := func() types.Point {
		return location.Offset(resortCenter, rnd.Float64()*4000-2000, rnd.Float64()*4000-2000)
	}

	snap := Snapshot{Domain: request.DomainRide, Now: now, Resolver: location.NewResolver(nil)}
	for i := 0; i < nWorkers; i++ {
		hb := now.Add(-time.Duration(rnd.Intn(20)) * time.Second)
		w := worker.Worker{
			ID:            types.ID(fmt.Sprintf("w%04d", i)),
			Role:          worker.RoleDriver,
			Name:          fmt.Sprintf("driver %d", i),
			LastHeartbeat: &hb,
		}
		if rnd.Intn(4) > 0 {
			p := point()
			w.Position = &p
		}
		snap.Workers = append(snap.Workers, w)

		if i%3 == 0 {
			confirmed := now.Add(-time.Duration(rnd.Intn(600)) * time.Second)
			wid := w.ID
			snap.Requests = append(snap.Requests, request.Request{
				ID:               types.ID(fmt.Sprintf("a%04d", i)),
				Domain:           request.DomainRide,
				Status:           request.StatusAssigned,
				StatusVersion:    1,
				Pickup:           location.FormatGPS(point()),
				Destination:      location.FormatGPS(point()),
				PartySize:        1 + rnd.Intn(6),
				CreatedAt:        confirmed.Add(-time.Minute),
				AssignedWorkerID: &wid,
				ConfirmedAt:      &confirmed,
			})
		}
	}
	for i := 0; i < nRequests; i++ {
		snap.Requests = append(snap.Requests, request.Request{
			ID:          types.ID(fmt.Sprintf("r%04d", i)),
			Domain:      request.DomainRide,
			Status:      request.StatusSearching,
			Pickup:      location.FormatGPS(point()),
			Destination: location.FormatGPS(point()),
			PartySize:   1 + rnd.Intn(request.MaxPartySize),
			CreatedAt:   now.Add(-time.Duration(rnd.Intn(900)) * time.Second),
		})
	}
	return snap
}
