package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kilianp07/bessopt/config"
	"github.com/kilianp07/bessopt/core/model"
	coremon "github.com/kilianp07/bessopt/core/monitoring"
	"github.com/kilianp07/bessopt/infra/logger"
	"github.com/kilianp07/bessopt/infra/market"
	"github.com/kilianp07/bessopt/infra/params"
	"github.com/kilianp07/bessopt/pkg/export"
)

// OutputWriteError reports an artifact that could not be persisted. The
// schedule it belongs to is still valid.
type OutputWriteError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("write %s output %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error { return e.Err }

// Runner computes a schedule for one request.
type Runner interface {
	Run(ctx context.Context, points []model.TimeSeriesPoint, grid model.GridParameters, batt model.BatteryParameters) (*model.Schedule, error)
}

// Fetcher downloads a market series for a time range.
type Fetcher interface {
	Fetch(ctx context.Context, start, end time.Time) ([]model.TimeSeriesPoint, error)
}

// Publisher forwards a schedule to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, sched *model.Schedule) error
}

// Pipeline loads inputs, runs the optimizer and persists the result.
type Pipeline struct {
	cfg       *config.Config
	runner    Runner
	fetcher   Fetcher
	publisher Publisher
	log       logger.Logger
	now       func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithFetcher sets the client used when market.source is "smard".
func WithFetcher(f Fetcher) PipelineOption {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithPublisher publishes every schedule after the outputs are written.
func WithPublisher(pub Publisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLogger overrides the pipeline logger.
func WithLogger(l logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock overrides the clock used for default SMARD ranges.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline returns a pipeline over cfg. cfg must already carry defaults.
func NewPipeline(cfg *config.Config, runner Runner, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{cfg: cfg, runner: runner, log: logger.New("pipeline"), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one optimization. Optimization errors are returned with a nil
// schedule. When only outputs fail, the schedule is returned together with
// the joined *OutputWriteError values.
func (p *Pipeline) Run(ctx context.Context) (*model.Schedule, error) {
	points, err := p.LoadSeries(ctx)
	if err != nil {
		return nil, err
	}
	grid, batt, err := params.Load(p.cfg.Parameters.Path)
	if err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}
	p.log.Infof("Loaded %d market points and parameters from %s", len(points), p.cfg.Parameters.Path)

	sched, err := p.runner.Run(ctx, points, grid, batt)
	if err != nil {
		return nil, err
	}
	p.log.Infow("Schedule computed", map[string]any{
		"run_id":         sched.RunID,
		"total_cost":     sched.TotalCost,
		"cost_available": sched.CostAvailable,
		"undefined_rows": sched.UndefinedRows,
	})

	outErr := p.WriteOutputs(sched)
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, sched); err != nil {
			p.log.Errorf("publish schedule: %v", err)
		}
	}
	return sched, outErr
}

// LoadSeries returns the market series from the configured source.
func (p *Pipeline) LoadSeries(ctx context.Context) ([]model.TimeSeriesPoint, error) {
	mc := p.cfg.Market
	if mc.Source != "smard" {
		points, err := market.LoadTSV(mc.Path, mc.Location())
		if err != nil {
			return nil, fmt.Errorf("load market series: %w", err)
		}
		return points, nil
	}
	if p.fetcher == nil {
		return nil, errors.New("market source smard configured without a client")
	}
	start, end := ResolveRange(mc.SMARD, p.now().In(mc.Location()), mc.Location(), p.log)
	points, err := p.fetcher.Fetch(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch market series: %w", err)
	}
	if mc.SMARD.Save {
		if err := market.SaveTSV(mc.Path, points); err != nil {
			p.log.Warnf("save fetched series: %v", err)
		}
	}
	return points, nil
}

// ResolveRange parses the configured SMARD range. Empty or invalid bounds
// fall back to yesterday 00:00 and today 00:00.
func ResolveRange(c config.SMARDConfig, now time.Time, loc *time.Location, log logger.Logger) (time.Time, time.Time) {
	start, end := market.DefaultRange(now)
	if c.Start != "" {
		if t, err := market.ParseTime(c.Start, loc); err == nil {
			start = t
		} else {
			log.Warnf("invalid market.smard.start %q, using %s", c.Start, start.Format(time.RFC3339))
		}
	}
	if c.End != "" {
		if t, err := market.ParseTime(c.End, loc); err == nil {
			end = t
		} else {
			log.Warnf("invalid market.smard.end %q, using %s", c.End, end.Format(time.RFC3339))
		}
	}
	return start, end
}

// WriteOutputs persists every configured artifact. Each failure is logged,
// reported to the monitor and returned as an *OutputWriteError.
func (p *Pipeline) WriteOutputs(sched *model.Schedule) error {
	oc := p.cfg.Output
	if err := os.MkdirAll(oc.Dir, 0o755); err != nil {
		return p.outputFailed(&OutputWriteError{Artifact: "directory", Path: oc.Dir, Err: err}, sched)
	}
	artifacts := []struct {
		name  string
		file  string
		write func(io.Writer, *model.Schedule) error
	}{
		{"cost", oc.CostFile, export.WriteCostCSV},
		{"operation", oc.OperationFile, export.WriteOperationCSV},
		{"json", oc.JSONFile, export.WriteJSON},
		{"chart", oc.ChartFile, export.WriteChartHTML},
	}
	var errs []error
	for _, a := range artifacts {
		if a.file == "" || a.file == "-" {
			continue
		}
		path := filepath.Join(oc.Dir, a.file)
		if err := writeFile(path, sched, a.write); err != nil {
			errs = append(errs, p.outputFailed(&OutputWriteError{Artifact: a.name, Path: path, Err: err}, sched))
			continue
		}
		p.log.Infof("Wrote %s output to %s", a.name, path)
	}
	return errors.Join(errs...)
}

func (p *Pipeline) outputFailed(err *OutputWriteError, sched *model.Schedule) error {
	p.log.Errorf("%v", err)
	coremon.CaptureException(err, map[string]string{"module": "pipeline", "artifact": err.Artifact, "run_id": sched.RunID})
	return err
}

func writeFile(path string, sched *model.Schedule, write func(io.Writer, *model.Schedule) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, sched); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
