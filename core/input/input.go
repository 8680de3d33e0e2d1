package input

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/bessopt/core/model"
)

// MinPoints is the smallest series from which an interval can be derived.
const MinPoints = 2

// InsufficientDataError is returned when the series is too short to derive
// the timestep length.
type InsufficientDataError struct {
	Points int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient market data: %d point(s), need at least %d to determine the time interval", e.Points, MinPoints)
}

var (
	// ErrInvalidInterval indicates the first two timestamps do not define a
	// positive interval.
	ErrInvalidInterval = errors.New("non-positive time interval between first two points")
	// ErrInvalidParameters wraps a rejected grid or battery record.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrNonFinite indicates a NaN or infinite price, load or generation.
	ErrNonFinite = errors.New("non-finite market value")
)

// Input is the per-timestep view of one optimization run.
type Input struct {
	points  []model.TimeSeriesPoint
	dt      float64
	grid    model.GridParameters
	battery model.BatteryParameters
}

// Assemble validates and normalizes the inputs. The caller's slice is not
// modified.
func Assemble(points []model.TimeSeriesPoint, grid model.GridParameters, battery model.BatteryParameters) (*Input, error) {
	if len(points) < MinPoints {
		return nil, &InsufficientDataError{Points: len(points)}
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if err := battery.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	sorted := make([]model.TimeSeriesPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	for i, p := range sorted {
		if !finite(p.Price) || !finite(p.Load) || !finite(p.Wind) || !finite(p.Solar) {
			return nil, fmt.Errorf("%w at point %d (%s)", ErrNonFinite, i, p.Time.Format(time.RFC3339))
		}
	}

	dt := IntervalHours(sorted[0].Time, sorted[1].Time)
	if dt <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Input{points: sorted, dt: dt, grid: grid, battery: battery}, nil
}

// IntervalHours returns the distance between two timestamps rounded to the
// nearest second and expressed in hours.
func IntervalHours(a, b time.Time) float64 {
	secs := math.Round(b.Sub(a).Seconds())
	return secs / 3600
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Steps returns the number of timesteps T.
func (in *Input) Steps() int { return len(in.points) }

// Dt returns the timestep length in hours.
func (in *Input) Dt() float64 { return in.dt }

// At returns the market values of timestep i.
func (in *Input) At(i int) model.TimeSeriesPoint { return in.points[i] }

// StartTime returns the timestamp of the first interval.
func (in *Input) StartTime() time.Time { return in.points[0].Time }

// Times returns a copy of the interval timestamps.
func (in *Input) Times() []time.Time {
	out := make([]time.Time, len(in.points))
	for i, p := range in.points {
		out[i] = p.Time
	}
	return out
}

// Prices returns a copy of the price series.
func (in *Input) Prices() []float64 {
	out := make([]float64, len(in.points))
	for i, p := range in.points {
		out[i] = p.Price
	}
	return out
}

// Grid returns the grid limits, constant across timesteps.
func (in *Input) Grid() model.GridParameters { return in.grid }

// Battery returns the battery record, constant across timesteps.
func (in *Input) Battery() model.BatteryParameters { return in.battery }
