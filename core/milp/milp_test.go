package milp

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessopt/core/factory"
)

func TestProblemBuildAndViolations(t *testing.T) {
	p := NewProblem()
	x := p.NewContinuous("x", 0, 10)
	y := p.NewContinuous("y", math.Inf(-1), math.Inf(1))
	b := p.NewBinary("b")
	p.AddConstraint("sum", NewExpr(Term{x, 1}, Term{y, 1}), EQ, 5)
	p.AddConstraint("link", NewExpr().Plus(x, 1).Plus(b, -10), LE, 0)
	p.SetObjective(Minimize, NewExpr().Plus(y, 1).PlusConst(2))

	require.NoError(t, p.Validate())
	assert.Equal(t, 3, p.NumVariables())
	assert.Equal(t, 2, p.NumConstraints())
	assert.Equal(t, Binary, p.Variable(b).Kind)

	assert.Empty(t, p.Violations([]float64{5, 0, 1}, 1e-9))

	v := p.Violations([]float64{5, 1, 0.4}, 1e-9)
	assert.Len(t, v, 3, "sum broken, link broken, b fractional: %v", v)

	obj, sense := p.Objective()
	assert.Equal(t, Minimize, sense)
	assert.Equal(t, 3.0, obj.Eval([]float64{0, 1, 0}))
}

func TestProblemValidateErrors(t *testing.T) {
	p := NewProblem()
	x := p.NewContinuous("x", 0, 1)
	p.AddConstraint("bad", NewExpr(Term{x, math.Inf(1)}), LE, 1)
	assert.Error(t, p.Validate())

	p = NewProblem()
	p.NewContinuous("x", 0, 1)
	p.AddConstraint("ghost", NewExpr(Term{Var(7), 1}), LE, 1)
	assert.Error(t, p.Validate())

	p = NewProblem()
	p.NewContinuous("x", 2, 1)
	assert.Error(t, p.Validate())
}

func TestExprPlusDoesNotAlias(t *testing.T) {
	base := NewExpr(Term{0, 1})
	a := base.Plus(1, 2)
	b := base.Plus(2, 3)
	assert.Len(t, base.Terms, 1)
	assert.Equal(t, Var(1), a.Terms[1].Var)
	assert.Equal(t, Var(2), b.Terms[1].Var)
	assert.Equal(t, []float64{1, 2, 0}, a.Coefficients(3))
}

func TestSolutionValues(t *testing.T) {
	sol := NewSolution(Optimal, []float64{1.5, math.NaN()}, 42)
	v, err := sol.Value(0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	_, err = sol.Value(1)
	assert.ErrorIs(t, err, ErrNoValue)
	_, err = sol.Value(9)
	assert.ErrorIs(t, err, ErrNoValue)

	obj, err := sol.Objective()
	require.NoError(t, err)
	assert.Equal(t, 42.0, obj)

	_, err = NewSolution(Feasible, []float64{1}, math.NaN()).Objective()
	assert.ErrorIs(t, err, ErrNoValue)

	inf := Unsolved(Infeasible)
	_, err = inf.Value(0)
	assert.ErrorIs(t, err, ErrNoValue)
	_, err = inf.Objective()
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestStatus(t *testing.T) {
	assert.True(t, Optimal.Solved())
	assert.True(t, Feasible.Solved())
	for _, s := range []Status{NotSolved, Infeasible, Unbounded, Abnormal, Cancelled} {
		assert.False(t, s.Solved(), s.String())
	}
	assert.Equal(t, "INFEASIBLE", Infeasible.String())
	assert.Equal(t, "UNKNOWN", Status(99).String())
}

type fixedSolver struct{ status Status }

func (f fixedSolver) Solve(context.Context, *Problem) (*Solution, error) {
	return Unsolved(f.status), nil
}

func TestNewSolver(t *testing.T) {
	require.NoError(t, RegisterSolver("milp-test-fixed", func(map[string]any) (Solver, error) {
		return fixedSolver{status: NotSolved}, nil
	}))
	require.NoError(t, RegisterSolver("milp-test-broken", func(map[string]any) (Solver, error) {
		return nil, errors.New("library missing")
	}))

	s, err := NewSolver("milp-test-fixed", nil)
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Contains(t, Backends(), "milp-test-fixed")

	_, err = NewSolver("cbc", nil)
	var sue *SolverUnavailableError
	require.True(t, errors.As(err, &sue))
	assert.Equal(t, "cbc", sue.Backend)
	assert.ErrorIs(t, err, factory.ErrUnknownModule)

	_, err = NewSolver("milp-test-broken", nil)
	require.True(t, errors.As(err, &sue))
	assert.Contains(t, err.Error(), "library missing")
}
