package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/bessopt/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records optimization runs in Prometheus metrics.
type PromSink struct {
	runs       *prometheus.CounterVec
	solveTime  *prometheus.HistogramVec
	cost       prometheus.Gauge
	steps      prometheus.Gauge
	undefined  prometheus.Counter
	lastRunUTC prometheus.Gauge
}

// NewPromSink registers run metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bess_optimization_runs_total",
			Help: "Total number of optimization runs by solver status",
		}, []string{"backend", "status"}),
		solveTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bess_solve_duration_seconds",
			Help:    "Time spent in the solver per run",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		cost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bess_schedule_total_cost",
			Help: "Total cost of the last successful schedule",
		}),
		steps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bess_schedule_steps",
			Help: "Number of timesteps in the last optimization run",
		}),
		undefined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bess_schedule_undefined_rows_total",
			Help: "Timesteps whose values could not be extracted",
		}),
		lastRunUTC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bess_last_run_timestamp_seconds",
			Help: "Unix time of the last optimization run",
		}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.solveTime, err = register(reg, s.solveTime); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.steps, err = register(reg, s.steps); err != nil {
		return nil, err
	}
	if s.undefined, err = register(reg, s.undefined); err != nil {
		return nil, err
	}
	if s.lastRunUTC, err = register(reg, s.lastRunUTC); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates counters and gauges for a run.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Backend, ev.Status).Inc()
	if ev.SolveDuration > 0 {
		s.solveTime.WithLabelValues(ev.Backend).Observe(ev.SolveDuration.Seconds())
	}
	if ev.CostAvailable {
		s.cost.Set(ev.TotalCost)
	}
	s.steps.Set(float64(ev.Steps))
	s.undefined.Add(float64(ev.UndefinedRows))
	if !ev.Time.IsZero() {
		s.lastRunUTC.Set(float64(ev.Time.Unix()))
	}
	return nil
}
