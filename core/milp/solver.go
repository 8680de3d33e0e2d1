package milp

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/bessopt/core/factory"
)

// Solver solves a Problem. Solve blocks until a status is known, the context
// is done or the backend's own budget expires; budget exhaustion is reported
// through the Solution status, not the error. The error is reserved for
// problems the backend cannot accept.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

// SolverUnavailableError is returned when a backend cannot be constructed.
type SolverUnavailableError struct {
	Backend string
	Err     error
}

func (e *SolverUnavailableError) Error() string {
	return fmt.Sprintf("solver backend %q unavailable: %v", e.Backend, e.Err)
}

func (e *SolverUnavailableError) Unwrap() error { return e.Err }

var solverRegistry = factory.NewRegistry[Solver]()

// RegisterSolver adds a backend factory identified by name.
func RegisterSolver(name string, f factory.Factory[Solver]) error {
	return solverRegistry.Register(name, f)
}

// Backends lists the registered backend names.
func Backends() []string { return solverRegistry.Names() }

// NewSolver constructs the named backend. Any failure is reported as a
// *SolverUnavailableError.
func NewSolver(name string, conf map[string]any) (Solver, error) {
	s, err := solverRegistry.Create(factory.ModuleConfig{Type: name, Conf: conf})
	if err != nil {
		return nil, &SolverUnavailableError{Backend: name, Err: err}
	}
	if s == nil {
		return nil, &SolverUnavailableError{Backend: name, Err: errors.New("factory returned nil solver")}
	}
	return s, nil
}
