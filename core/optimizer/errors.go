package optimizer

import (
	"fmt"
	"time"

	"github.com/kilianp07/bessopt/core/milp"
)

// ModelInfeasibleError reports a solver outcome without a usable assignment.
type ModelInfeasibleError struct {
	Status milp.Status
}

func (e *ModelInfeasibleError) Error() string {
	return fmt.Sprintf("solution cannot be found, solver status: %s", e.Status)
}

// SolutionExtractionError describes a timestep whose values could not be read.
type SolutionExtractionError struct {
	Index int
	Time  time.Time
	Err   error
}

func (e *SolutionExtractionError) Error() string {
	return fmt.Sprintf("extract timestep %d (%s): %v", e.Index, e.Time.Format(time.RFC3339), e.Err)
}

func (e *SolutionExtractionError) Unwrap() error { return e.Err }
