package milp

import (
	"fmt"
	"math"
)

// Var is a handle into the variable arena of a Problem.
type Var int

// Kind distinguishes continuous from binary variables.
type Kind int

const (
	// Continuous variables take any value within their bounds.
	Continuous Kind = iota
	// Binary variables take 0 or 1.
	Binary
)

// Variable describes one decision variable. Bounds may be infinite.
type Variable struct {
	Name  string
	Lower float64
	Upper float64
	Kind  Kind
}

// Op is the relation of a linear constraint.
type Op int

const (
	// LE is expr <= rhs.
	LE Op = iota
	// GE is expr >= rhs.
	GE
	// EQ is expr == rhs.
	EQ
)

func (o Op) String() string {
	switch o {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "=="
	}
	return "?"
}

// Sense is the optimization direction.
type Sense int

const (
	// Minimize asks for the smallest objective value.
	Minimize Sense = iota
	// Maximize asks for the largest objective value.
	Maximize
)

// Constraint is Expr Op RHS, with Expr's constant folded into the left side.
type Constraint struct {
	Name string
	Expr Expr
	Op   Op
	RHS  float64
}

// Problem is a mixed-integer linear program under construction.
type Problem struct {
	vars  []Variable
	cons  []Constraint
	obj   Expr
	sense Sense
}

// NewProblem returns an empty minimization problem.
func NewProblem() *Problem { return &Problem{} }

// NewContinuous declares a continuous variable with the given bounds.
func (p *Problem) NewContinuous(name string, lb, ub float64) Var {
	p.vars = append(p.vars, Variable{Name: name, Lower: lb, Upper: ub, Kind: Continuous})
	return Var(len(p.vars) - 1)
}

// NewBinary declares a variable restricted to {0,1}.
func (p *Problem) NewBinary(name string) Var {
	p.vars = append(p.vars, Variable{Name: name, Lower: 0, Upper: 1, Kind: Binary})
	return Var(len(p.vars) - 1)
}

// AddConstraint appends a linear constraint.
func (p *Problem) AddConstraint(name string, e Expr, op Op, rhs float64) {
	p.cons = append(p.cons, Constraint{Name: name, Expr: e, Op: op, RHS: rhs})
}

// SetObjective sets the linear objective and its direction.
func (p *Problem) SetObjective(sense Sense, e Expr) {
	p.sense = sense
	p.obj = e
}

// NumVariables returns the number of declared variables.
func (p *Problem) NumVariables() int { return len(p.vars) }

// NumConstraints returns the number of constraints.
func (p *Problem) NumConstraints() int { return len(p.cons) }

// Variable returns the definition of v.
func (p *Problem) Variable(v Var) Variable { return p.vars[v] }

// Variables returns a copy of the variable arena.
func (p *Problem) Variables() []Variable {
	out := make([]Variable, len(p.vars))
	copy(out, p.vars)
	return out
}

// Constraints returns a copy of the constraint list.
func (p *Problem) Constraints() []Constraint {
	out := make([]Constraint, len(p.cons))
	copy(out, p.cons)
	return out
}

// Objective returns the objective expression and its direction.
func (p *Problem) Objective() (Expr, Sense) { return p.obj, p.sense }

// Validate checks that every term references a declared variable and every
// coefficient and bound is a number.
func (p *Problem) Validate() error {
	for i, v := range p.vars {
		if math.IsNaN(v.Lower) || math.IsNaN(v.Upper) {
			return fmt.Errorf("variable %d (%s): NaN bound", i, v.Name)
		}
		if v.Lower > v.Upper {
			return fmt.Errorf("variable %d (%s): lower bound %v above upper bound %v", i, v.Name, v.Lower, v.Upper)
		}
	}
	check := func(where string, e Expr) error {
		if !finite(e.Constant) {
			return fmt.Errorf("%s: non-finite constant", where)
		}
		for _, t := range e.Terms {
			if int(t.Var) < 0 || int(t.Var) >= len(p.vars) {
				return fmt.Errorf("%s: unknown variable %d", where, t.Var)
			}
			if !finite(t.Coef) {
				return fmt.Errorf("%s: non-finite coefficient on %s", where, p.vars[t.Var].Name)
			}
		}
		return nil
	}
	for _, c := range p.cons {
		if err := check("constraint "+c.Name, c.Expr); err != nil {
			return err
		}
		if math.IsNaN(c.RHS) {
			return fmt.Errorf("constraint %s: NaN right-hand side", c.Name)
		}
	}
	return check("objective", p.obj)
}

// Violations lists the constraints and bounds not satisfied by values within
// tol. It is meant for verifying solutions.
func (p *Problem) Violations(values []float64, tol float64) []string {
	var out []string
	if len(values) != len(p.vars) {
		return []string{fmt.Sprintf("expected %d values, got %d", len(p.vars), len(values))}
	}
	for i, v := range p.vars {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			out = append(out, fmt.Sprintf("%s=%v outside [%v, %v]", v.Name, x, v.Lower, v.Upper))
		}
		if v.Kind == Binary && math.Abs(x-math.Round(x)) > tol {
			out = append(out, fmt.Sprintf("%s=%v not integral", v.Name, x))
		}
	}
	for _, c := range p.cons {
		lhs := c.Expr.Eval(values)
		ok := true
		switch c.Op {
		case LE:
			ok = lhs <= c.RHS+tol
		case GE:
			ok = lhs >= c.RHS-tol
		case EQ:
			ok = math.Abs(lhs-c.RHS) <= tol
		}
		if !ok {
			out = append(out, fmt.Sprintf("%s: %v %s %v", c.Name, lhs, c.Op, c.RHS))
		}
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
