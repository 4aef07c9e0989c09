package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/notify"
	"resortdispatch/internal/types"
)

type fakeAssigner struct {
	mu    sync.Mutex
	errs  map[types.ID]error
	calls []request.AssignCommand
}

func (f *fakeAssigner) Assign(ctx context.Context, cmd request.AssignCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("assign called without a deadline")
	}
	f.calls = append(f.calls, cmd)
	return f.errs[cmd.RequestID]
}

type fakeETA struct {
	minutes int
	err     error
	from    types.Point
	to      types.Point
}

func (f *fakeETA) EstimateMinutes(_ context.Context, from, to types.Point) (int, error) {
	f.from, f.to = from, to
	return f.minutes, f.err
}

type captureNotifier struct {
	events []notify.AssignmentEvent
	err    error
}

func (c *captureNotifier) PublishAssignment(_ context.Context, e notify.AssignmentEvent) error {
	c.events = append(c.events, e)
	return c.err
}

func execSnapshot() Snapshot {
	reqs := []request.Request{
		rideReq("r1", "Beach Grill", "Main Lobby", 2, 3*time.Minute),
		rideReq("r2", "Main Lobby", "Ocean Villa 12", 1, 2*time.Minute),
		rideReq("r3", "Main Lobby", "Beach Grill", 1, time.Minute),
	}
	reqs[0].StatusVersion = 4
	return rideSnapshot(reqs, []worker.Worker{driver("d1", &lobby), driver("d2", nil), driver("d3", &lobby)})
}

func execResult() Result {
	return Result{
		Domain: request.DomainRide,
		Pairs: []Pair{
			{WorkerID: "d1", RequestID: "r1", RequestIDs: []types.ID{"r1"}, Cost: -4000},
			{WorkerID: "d2", RequestID: "r2", RequestIDs: []types.ID{"r2"}, Cost: 4880},
			{WorkerID: "d3", RequestID: "r3", RequestIDs: []types.ID{"r3"}, Cost: -5600},
		},
	}
}

func TestExecuteCommitsWithSnapshotVersion(t *testing.T) {
	as := &fakeAssigner{}
	eta := &fakeETA{minutes: 3}
	n := &captureNotifier{}
	ex := NewExecutor(as, ExecutorOptions{ETA: eta, Notifier: n})

	rep := ex.Execute(context.Background(), "run-1", TriggerOperator, execSnapshot(), execResult())

	require.Len(t, rep.Committed, 3)
	assert.Zero(t, rep.Races)
	assert.Empty(t, rep.Failures)

	require.Len(t, as.calls, 3)
	first := as.calls[0]
	assert.Equal(t, types.ID("r1"), first.RequestID)
	assert.Equal(t, types.ID("d1"), first.WorkerID)
	assert.Equal(t, request.StatusSearching, first.Status)
	assert.Equal(t, 4, first.Version)
	assert.Equal(t, 3, first.ETAMinutes)

	// d2 has no GPS: placeholder ETA
	assert.Equal(t, 5, as.calls[1].ETAMinutes)
	assert.Equal(t, 5, rep.Committed[1].ETAMinutes)

	require.Len(t, n.events, 3)
	assert.Equal(t, "run-1", n.events[0].RunID)
	assert.Equal(t, string(TriggerOperator), n.events[0].Trigger)
	assert.Equal(t, types.ID("r1"), n.events[0].RequestID)
	assert.NotEmpty(t, n.events[0].EventID)
}

func TestExecuteETAUsesResolvedPickup(t *testing.T) {
	eta := &fakeETA{minutes: 7}
	ex := NewExecutor(&fakeAssigner{}, ExecutorOptions{ETA: eta})
	snap := execSnapshot()

	rep := ex.Execute(context.Background(), "run", TriggerAuto, snap, Result{Pairs: execResult().Pairs[:1]})
	require.Len(t, rep.Committed, 1)
	assert.Equal(t, 7, rep.Committed[0].ETAMinutes)
	assert.Equal(t, lobby, eta.from)
	assert.Equal(t, villas[1].Position, eta.to)
}

func TestExecuteETAFailureFallsBack(t *testing.T) {
	eta := &fakeETA{err: errors.New("quota")}
	ex := NewExecutor(&fakeAssigner{}, ExecutorOptions{ETA: eta, DefaultETA: 6})
	rep := ex.Execute(context.Background(), "run", TriggerAuto, execSnapshot(), Result{Pairs: execResult().Pairs[:1]})
	require.Len(t, rep.Committed, 1)
	assert.Equal(t, 6, rep.Committed[0].ETAMinutes)
}

func TestExecuteRaceAndFailureDoNotStopBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	as := &fakeAssigner{errs: map[types.ID]error{
		"r1": request.ErrConflict,
		"r2": errors.New("connection reset"),
	}}
	n := &captureNotifier{}
	ex := NewExecutor(as, ExecutorOptions{Notifier: n, Metrics: m})

	rep := ex.Execute(context.Background(), "run", TriggerOperator, execSnapshot(), execResult())

	assert.Equal(t, 1, rep.Races)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, types.ID("r2"), rep.Failures[0].RequestID)
	assert.Contains(t, rep.Failures[0].Error, "connection reset")
	require.Len(t, rep.Committed, 1)
	assert.Equal(t, types.ID("r3"), rep.Committed[0].RequestID)
	assert.Len(t, as.calls, 3, "every pair is attempted")
	assert.Len(t, n.events, 1, "only commits are published")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.races.WithLabelValues("RIDE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("RIDE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.committed.WithLabelValues("RIDE")))
}

func TestExecuteGroupCommitsEachMember(t *testing.T) {
	as := &fakeAssigner{errs: map[types.ID]error{"r2": request.ErrConflict}}
	ex := NewExecutor(as, ExecutorOptions{})
	res := Result{Pairs: []Pair{{WorkerID: "d1", RequestID: "r1", RequestIDs: []types.ID{"r1", "r2", "r3"}}}}

	rep := ex.Execute(context.Background(), "run", TriggerOperator, execSnapshot(), res)
	require.Len(t, rep.Committed, 1)
	assert.Equal(t, []types.ID{"r1", "r3"}, rep.Committed[0].RequestIDs)
	assert.Equal(t, 1, rep.Races)
}

func TestExecuteUnknownRequestIsFailure(t *testing.T) {
	ex := NewExecutor(&fakeAssigner{}, ExecutorOptions{})
	res := Result{Pairs: []Pair{{WorkerID: "d1", RequestID: "ghost", RequestIDs: []types.ID{"ghost"}}}}
	rep := ex.Execute(context.Background(), "run", TriggerOperator, execSnapshot(), res)
	assert.Empty(t, rep.Committed)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, request.ErrNotFound.Error(), rep.Failures[0].Error)
}

func TestPublishErrorDoesNotUndoCommit(t *testing.T) {
	n := &captureNotifier{err: errors.New("nats down")}
	ex := NewExecutor(&fakeAssigner{}, ExecutorOptions{Notifier: n})
	rep := ex.Execute(context.Background(), "run", TriggerOperator, execSnapshot(), execResult())
	assert.Len(t, rep.Committed, 3)
	assert.Empty(t, rep.Failures)
}
