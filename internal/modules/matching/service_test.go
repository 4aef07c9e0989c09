package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resortdispatch/internal/modules/location"
	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/types"
)

type fakeRequestFeed struct {
	reqs []request.Request
	err  error
}

func (f *fakeRequestFeed) ListOpen(_ context.Context, d request.Domain) ([]request.Request, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []request.Request
	for _, r := range f.reqs {
		if r.Domain == d {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeWorkerFeed struct {
	workers []worker.Worker
}

func (f *fakeWorkerFeed) List(_ context.Context, role worker.Role) ([]worker.Worker, error) {
	var out []worker.Worker
	for _, w := range f.workers {
		if w.Role == role {
			out = append(out, w)
		}
	}
	return out, nil
}

type fakeLocations struct {
	err error
}

func (f fakeLocations) Resolver(context.Context) (*location.Resolver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return testResolver(), nil
}

type serviceFixture struct {
	svc      *Service
	reqs     *fakeRequestFeed
	workers  *fakeWorkerFeed
	assigner *fakeAssigner
	metrics  *Metrics
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &serviceFixture{
		reqs:     &fakeRequestFeed{},
		workers:  &fakeWorkerFeed{},
		assigner: &fakeAssigner{},
		metrics:  m,
	}
	f.svc = NewService(Deps{
		Requests:  f.reqs,
		Workers:   f.workers,
		Locations: fakeLocations{},
		Engine:    testEngine(nil),
		Executor:  NewExecutor(f.assigner, ExecutorOptions{Metrics: m}),
		Metrics:   m,
	})
	f.svc.now = func() time.Time { return t0 }
	return f
}

func TestLoadSnapshotFiltersByDomain(t *testing.T) {
	f := newServiceFixture(t)
	f.reqs.reqs = []request.Request{
		rideReq("r1", "Main Lobby", "Beach Grill", 1, time.Minute),
		serviceReq("s1", "Spa", time.Minute),
	}
	f.workers.workers = []worker.Worker{driver("d1", &lobby), staff("st1", "Spa")}

	snap, err := f.svc.LoadSnapshot(context.Background(), request.DomainRide)
	require.NoError(t, err)
	assert.Equal(t, t0, snap.Now)
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, types.ID("r1"), snap.Requests[0].ID)
	require.Len(t, snap.Workers, 1)
	assert.Equal(t, worker.RoleDriver, snap.Workers[0].Role)
	assert.NotNil(t, snap.Resolver)
}

func TestLoadSnapshotErrors(t *testing.T) {
	f := newServiceFixture(t)
	f.reqs.err = errors.New("db gone")
	_, err := f.svc.LoadSnapshot(context.Background(), request.DomainRide)
	assert.ErrorContains(t, err, "load requests")

	f.reqs.err = nil
	f.svc.locations = fakeLocations{err: errors.New("no table")}
	_, err = f.svc.LoadSnapshot(context.Background(), request.DomainRide)
	assert.ErrorContains(t, err, "load locations")
}

// Scenario B: operator trigger assigns the nearest available driver.
func TestProposeAssignmentCommits(t *testing.T) {
	f := newServiceFixture(t)
	near := location.Offset(lobby, 50, 0)
	far := location.Offset(lobby, 900, 0)
	f.reqs.reqs = []request.Request{rideReq("r1", "Main Lobby", "Beach Grill", 2, 30*time.Second)}
	f.workers.workers = []worker.Worker{driver("far", &far), driver("near", &near)}

	out, err := f.svc.ProposeAssignment(context.Background(), request.DomainRide)
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, out.Reason)
	assert.Equal(t, TriggerOperator, out.Trigger)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 1, out.Proposed)
	require.Len(t, out.Pairs, 1)
	assert.Equal(t, types.ID("near"), out.Pairs[0].WorkerID)
	assert.InDelta(t, 50-5000-300, out.Pairs[0].Cost, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("RIDE", "operator", "matched")))
}

func TestProposeAssignmentGuardSkipsExecutor(t *testing.T) {
	f := newServiceFixture(t)
	f.reqs.reqs = []request.Request{rideReq("r1", "Main Lobby", "Beach Grill", 2, time.Minute)}

	out, err := f.svc.ProposeAssignment(context.Background(), request.DomainRide)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoWorkers, out.Reason)
	assert.NotNil(t, out.Pairs)
	assert.Empty(t, out.Pairs)
	assert.Empty(t, f.assigner.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("RIDE", "operator", string(ReasonNoWorkers))))
}

func TestProposeAssignmentReportsRaces(t *testing.T) {
	f := newServiceFixture(t)
	f.reqs.reqs = []request.Request{rideReq("r1", "Main Lobby", "Beach Grill", 2, time.Minute)}
	f.workers.workers = []worker.Worker{driver("d1", &lobby)}
	f.assigner.errs = map[types.ID]error{"r1": request.ErrConflict}

	out, err := f.svc.ProposeAssignment(context.Background(), request.DomainRide)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Proposed)
	assert.Empty(t, out.Pairs)
	assert.Equal(t, 1, out.Races)
}
