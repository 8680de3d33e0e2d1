package cmd

import (
	"errors"
	"fmt"

	"github.com/kilianp07/bessopt/app"
	"github.com/kilianp07/bessopt/core/input"
	"github.com/kilianp07/bessopt/core/milp"
	"github.com/kilianp07/bessopt/core/optimizer"
)

// Exit codes returned by the binary.
const (
	ExitFailure      = 1
	ExitInfeasible   = 2
	ExitInvalidInput = 3
	ExitSolver       = 4
	ExitOutput       = 5
)

// Describe maps a command error to its exit code and message.
func Describe(err error) (int, string) {
	var infeasible *optimizer.ModelInfeasibleError
	var insufficient *input.InsufficientDataError
	var unavailable *milp.SolverUnavailableError
	var output *app.OutputWriteError
	switch {
	case errors.As(err, &infeasible):
		return ExitInfeasible, fmt.Sprintf("no feasible schedule: %v", err)
	case errors.As(err, &insufficient),
		errors.Is(err, input.ErrInvalidParameters),
		errors.Is(err, input.ErrInvalidInterval),
		errors.Is(err, input.ErrNonFinite):
		return ExitInvalidInput, fmt.Sprintf("invalid input: %v", err)
	case errors.As(err, &unavailable):
		return ExitSolver, fmt.Sprintf("solver unavailable: %v", err)
	case errors.As(err, &output):
		return ExitOutput, fmt.Sprintf("schedule computed but outputs incomplete: %v", err)
	default:
		return ExitFailure, fmt.Sprintf("error: %v", err)
	}
}
