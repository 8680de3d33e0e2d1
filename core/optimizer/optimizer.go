package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/bessopt/core/input"
	"github.com/kilianp07/bessopt/core/logger"
	"github.com/kilianp07/bessopt/core/metrics"
	"github.com/kilianp07/bessopt/core/milp"
	"github.com/kilianp07/bessopt/core/model"
	"github.com/kilianp07/bessopt/core/monitoring"
	"github.com/kilianp07/bessopt/core/runlog"
)

// Config selects the solver backend and the formulation.
type Config struct {
	Backend    string                `json:"backend"`
	Conf       map[string]any        `json:"conf"`
	Efficiency model.EfficiencyModel `json:"efficiency_model"`
}

// SolverFactory constructs a solver for a backend name.
type SolverFactory func(name string, conf map[string]any) (milp.Solver, error)

// Optimizer runs assemble, build, solve and extract for one request.
// It holds no per-run state and can be shared across goroutines.
type Optimizer struct {
	cfg       Config
	log       logger.Logger
	sink      metrics.MetricsSink
	store     runlog.Store
	newSolver SolverFactory
	now       func() time.Time
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMetrics reports each run to sink.
func WithMetrics(sink metrics.MetricsSink) Option {
	return func(o *Optimizer) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithRunLog appends a record for each run to store.
func WithRunLog(store runlog.Store) Option {
	return func(o *Optimizer) {
		if store != nil {
			o.store = store
		}
	}
}

// WithSolverFactory overrides how solvers are constructed.
func WithSolverFactory(f SolverFactory) Option {
	return func(o *Optimizer) {
		if f != nil {
			o.newSolver = f
		}
	}
}

// New returns an Optimizer using the registered solver backends.
func New(cfg Config, log logger.Logger, opts ...Option) *Optimizer {
	o := &Optimizer{
		cfg:       cfg,
		log:       log,
		sink:      metrics.NopSink{},
		store:     runlog.NopStore{},
		newSolver: milp.NewSolver,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run computes the cost-minimizing schedule for the given series and
// parameters. The caller's slice is not modified.
func (o *Optimizer) Run(ctx context.Context, points []model.TimeSeriesPoint, grid model.GridParameters, batt model.BatteryParameters) (sched *model.Schedule, err error) {
	start := o.now()
	rec := runlog.Record{
		RunID:     uuid.NewString(),
		Timestamp: start,
		Backend:   o.cfg.Backend,
		Status:    milp.NotSolved.String(),
		Steps:     len(points),
	}
	defer func() {
		if r := recover(); r != nil {
			err = monitoring.PanicError(r, map[string]string{"run_id": rec.RunID})
			sched = nil
		}
		rec.Duration = o.now().Sub(start)
		if err != nil {
			rec.Error = err.Error()
		}
		o.report(ctx, rec, sched)
	}()

	in, err := input.Assemble(points, grid, batt)
	if err != nil {
		return nil, err
	}

	solver, err := o.newSolver(o.cfg.Backend, o.cfg.Conf)
	if err != nil {
		var unavailable *milp.SolverUnavailableError
		if !errors.As(err, &unavailable) {
			err = &milp.SolverUnavailableError{Backend: o.cfg.Backend, Err: err}
		}
		o.log.Errorf("Solver not created: %v", err)
		return nil, err
	}

	m, err := Build(in, BuildOptions{Efficiency: o.cfg.Efficiency})
	if err != nil {
		return nil, err
	}
	rec.Variables = m.Problem.NumVariables()
	rec.Constraints = m.Problem.NumConstraints()
	o.log.Infof("Defined %d variables and %d constraints", rec.Variables, rec.Constraints)

	sol, err := solver.Solve(ctx, m.Problem)
	if err != nil {
		monitoring.CaptureException(err, map[string]string{"run_id": rec.RunID, "stage": "solve"})
		return nil, fmt.Errorf("solve: %w", err)
	}
	rec.Status = sol.Status.String()
	rec.Nodes = sol.Nodes
	rec.SolveDuration = sol.Duration

	if !sol.Status.Solved() {
		o.log.Errorf("Solution cannot be found. Solver status: %s", sol.Status)
		return nil, &ModelInfeasibleError{Status: sol.Status}
	}
	o.log.Infow("Problem solved", map[string]any{
		"run_id":      rec.RunID,
		"status":      sol.Status.String(),
		"variables":   rec.Variables,
		"constraints": rec.Constraints,
		"nodes":       sol.Nodes,
		"solve_ms":    sol.Duration.Milliseconds(),
	})

	sched, err = Extract(sol, m, in, o.log)
	if err != nil {
		return nil, err
	}
	sched.RunID = rec.RunID
	rec.Objective = sched.Objective
	rec.TotalCost = sched.TotalCost
	rec.CostAvailable = sched.CostAvailable
	rec.UndefinedRows = sched.UndefinedRows
	return sched, nil
}

// report records the run in the run log and the metrics sink. Failures are
// logged only.
func (o *Optimizer) report(ctx context.Context, rec runlog.Record, sched *model.Schedule) {
	if err := o.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		o.log.Warnf("run log append failed: %v", err)
	}
	ev := metrics.RunEvent{
		RunID:         rec.RunID,
		Backend:       rec.Backend,
		Status:        rec.Status,
		Steps:         rec.Steps,
		Variables:     rec.Variables,
		Constraints:   rec.Constraints,
		Nodes:         rec.Nodes,
		SolveDuration: rec.SolveDuration,
		Duration:      rec.Duration,
		TotalCost:     rec.TotalCost,
		CostAvailable: rec.CostAvailable,
		UndefinedRows: rec.UndefinedRows,
		Failed:        rec.Error != "",
		Time:          rec.Timestamp,
	}
	if err := o.sink.RecordRun(ev); err != nil {
		o.log.Warnf("metrics record failed: %v", err)
	}
	if sched == nil {
		return
	}
	if sr, ok := o.sink.(metrics.ScheduleRecorder); ok {
		if err := sr.RecordSchedule(metrics.ScheduleEvent{RunID: sched.RunID, Prices: sched.Prices, Rows: sched.Rows}); err != nil {
			o.log.Warnf("metrics schedule record failed: %v", err)
		}
	}
}
