package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/bessopt/core/factory"
	"github.com/kilianp07/bessopt/core/milp"
	"github.com/kilianp07/bessopt/infra/logger"
)

// Backend is the registry name of this solver.
const Backend = "gonum"

// Config tunes the branch-and-bound search.
type Config struct {
	// MaxNodes bounds the number of relaxations solved; 0 means unlimited.
	MaxNodes int `json:"max_nodes"`
	// TimeLimit is the solve-time budget; 0 means none.
	TimeLimit time.Duration `json:"time_limit"`
	// Tolerance is passed to the simplex method and used for pruning.
	Tolerance float64 `json:"tolerance"`
	// IntegralityTolerance is the distance from an integer under which a
	// binary is considered integral.
	IntegralityTolerance float64 `json:"integrality_tolerance"`
	// MIPGap is the relative gap under which a node cannot improve the
	// incumbent.
	MIPGap float64 `json:"mip_gap"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.MaxNodes == 0 {
		c.MaxNodes = 100000
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-9
	}
	if c.IntegralityTolerance == 0 {
		c.IntegralityTolerance = 1e-6
	}
	if c.MIPGap == 0 {
		c.MIPGap = 1e-6
	}
}

// Validate rejects negative settings.
func (c Config) Validate() error {
	if c.MaxNodes < 0 || c.TimeLimit < 0 || c.Tolerance < 0 || c.IntegralityTolerance < 0 || c.MIPGap < 0 {
		return fmt.Errorf("solver settings must be non-negative")
	}
	if c.IntegralityTolerance >= 0.5 {
		return fmt.Errorf("integrality_tolerance must be below 0.5")
	}
	return nil
}

// Solver solves mixed-binary programs. The program is presolved once, LP
// relaxations use a bounded-variable revised simplex method warm started from
// the parent node, and integrality is enforced by depth-first branch-and-bound.
type Solver struct {
	cfg Config
	log logger.Logger

	// lpSolve runs one relaxation; tests replace it to inject failures.
	lpSolve func(context.Context, *simplex) lpStatus
}

func init() {
	_ = milp.RegisterSolver(Backend, func(conf map[string]any) (milp.Solver, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c)
	})
}

// New returns a Solver with defaults applied to cfg.
func New(cfg Config) (*Solver, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Solver{cfg: cfg, log: logger.New("solver")}
	s.lpSolve = func(ctx context.Context, lp *simplex) lpStatus { return lp.solve(ctx) }
	return s, nil
}

// Solve implements milp.Solver.
func (s *Solver) Solve(ctx context.Context, p *milp.Problem) (*milp.Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid problem: %w", err)
	}
	if s.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TimeLimit)
		defer cancel()
	}
	start := time.Now()
	res := s.branchAndBound(ctx, p)
	elapsed := time.Since(start)
	s.log.Debugw("solve finished", map[string]any{
		"status":      res.status.String(),
		"nodes":       res.nodes,
		"variables":   p.NumVariables(),
		"constraints": p.NumConstraints(),
		"elapsed_ms":  elapsed.Milliseconds(),
	})

	var sol *milp.Solution
	if res.status.Solved() {
		obj, _ := p.Objective()
		sol = milp.NewSolution(res.status, res.x, obj.Eval(res.x))
		if v := p.Violations(res.x, 1e-6); len(v) > 0 {
			s.log.Warnf("solution violates %d constraints beyond 1e-6", len(v))
		}
	} else {
		sol = milp.Unsolved(res.status)
	}
	sol.Nodes = res.nodes
	sol.Duration = elapsed
	return sol, nil
}
