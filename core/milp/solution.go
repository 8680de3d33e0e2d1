package milp

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoValue is returned when a value cannot be read from a solution.
var ErrNoValue = errors.New("no value available")

// Solution holds the solver outcome for one Problem.
type Solution struct {
	Status   Status
	Nodes    int
	Duration time.Duration

	values    []float64
	objective float64
	hasObj    bool
}

// NewSolution builds a solution carrying values. A NaN objective marks the
// objective as unavailable.
func NewSolution(status Status, values []float64, objective float64) *Solution {
	return &Solution{Status: status, values: values, objective: objective, hasObj: !math.IsNaN(objective)}
}

// Unsolved builds a solution without any assignment.
func Unsolved(status Status) *Solution {
	return &Solution{Status: status}
}

// Value returns the value assigned to v.
func (s *Solution) Value(v Var) (float64, error) {
	if !s.Status.Solved() {
		return 0, fmt.Errorf("%w: status %s", ErrNoValue, s.Status)
	}
	if int(v) < 0 || int(v) >= len(s.values) {
		return 0, fmt.Errorf("%w: variable %d out of range", ErrNoValue, v)
	}
	x := s.values[v]
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("%w: variable %d is not finite", ErrNoValue, v)
	}
	return x, nil
}

// Values returns a copy of the full assignment.
func (s *Solution) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Objective returns the objective value of the assignment.
func (s *Solution) Objective() (float64, error) {
	if !s.Status.Solved() || !s.hasObj {
		return 0, fmt.Errorf("%w: objective", ErrNoValue)
	}
	return s.objective, nil
}
