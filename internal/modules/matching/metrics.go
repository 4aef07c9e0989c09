// README: Prometheus collectors for dispatch runs. A nil *Metrics records nothing.
package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"resortdispatch/internal/modules/request"
)

type Metrics struct {
	runs      *prometheus.CounterVec
	committed *prometheus.CounterVec
	races     *prometheus.CounterVec
	failures  *prometheus.CounterVec
	ticks     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewMetrics registers dispatch metrics on reg. If reg is nil, the default
// registerer is used. Already registered collectors are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_runs_total",
			Help: "Matching runs by domain, trigger and outcome reason",
		}, []string{"domain", "trigger", "outcome"}),
		committed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_assignments_committed_total",
			Help: "Requests assigned to a worker",
		}, []string{"domain"}),
		races: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_commit_races_total",
			Help: "Assignments dropped because the request changed first",
		}, []string{"domain"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_execution_failures_total",
			Help: "Assignment writes that failed",
		}, []string{"domain"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_auto_assign_ticks_total",
			Help: "Auto-assign scheduler ticks by outcome",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_engine_duration_seconds",
			Help:    "Time spent computing one assignment",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"domain", "strategy"}),
	}

	var err error
	if m.runs, err = registerCounter(reg, m.runs); err != nil {
		return nil, err
	}
	if m.committed, err = registerCounter(reg, m.committed); err != nil {
		return nil, err
	}
	if m.races, err = registerCounter(reg, m.races); err != nil {
		return nil, err
	}
	if m.failures, err = registerCounter(reg, m.failures); err != nil {
		return nil, err
	}
	if m.ticks, err = registerCounter(reg, m.ticks); err != nil {
		return nil, err
	}
	if err := reg.Register(m.latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	return m, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) recordRun(d request.Domain, t Trigger, reason Reason) {
	if m == nil {
		return
	}
	outcome := string(reason)
	if reason == ReasonNone {
		outcome = "matched"
	}
	m.runs.WithLabelValues(string(d), string(t), outcome).Inc()
}

func (m *Metrics) recordCommitted(d request.Domain) {
	if m == nil {
		return
	}
	m.committed.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) recordRace(d request.Domain) {
	if m == nil {
		return
	}
	m.races.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) recordFailure(d request.Domain) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) recordTick(outcome string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeEngine(d request.Domain, strategy string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(string(d), strategy).Observe(elapsed.Seconds())
}
