package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessopt/core/input"
	"github.com/kilianp07/bessopt/core/milp"
	"github.com/kilianp07/bessopt/core/model"
)

func assembled(t *testing.T, points []model.TimeSeriesPoint, grid model.GridParameters, batt model.BatteryParameters) *input.Input {
	t.Helper()
	in, err := input.Assemble(points, grid, batt)
	require.NoError(t, err)
	return in
}

func constraintByName(p *milp.Problem, name string) (milp.Constraint, bool) {
	for _, c := range p.Constraints() {
		if c.Name == name {
			return c, true
		}
	}
	return milp.Constraint{}, false
}

func TestBuildShape(t *testing.T) {
	points, grid, batt := twoStepScenario()
	batt.DischargeEff = 0.9
	m, err := Build(assembled(t, points, grid, batt), BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, 12, m.Problem.NumVariables())
	assert.Equal(t, 22, m.Problem.NumConstraints())
	assert.False(t, m.DischargePinned)
	require.NoError(t, m.Problem.Validate())

	vars := m.Problem.Variables()
	for i := 0; i < 2; i++ {
		assert.Equal(t, milp.Binary, vars[m.ChargeStatus[i]].Kind)
		assert.Equal(t, 0.0, vars[m.ChargePower[i]].Upper)
		assert.True(t, math.IsInf(vars[m.ChargePower[i]].Lower, -1))
		assert.Equal(t, 0.0, vars[m.DischargePower[i]].Lower)
		assert.True(t, math.IsInf(vars[m.GridPower[i]].Lower, -1))
		assert.Equal(t, 1.0, vars[m.SoC[i]].Upper)
	}

	bal, ok := constraintByName(m.Problem, "balance[1]")
	require.True(t, ok)
	assert.Equal(t, milp.EQ, bal.Op)
	assert.Equal(t, 50.0, bal.RHS)

	soc0, ok := constraintByName(m.Problem, "soc_balance[0]")
	require.True(t, ok)
	assert.Equal(t, 0.5, soc0.RHS)
	soc1, ok := constraintByName(m.Problem, "soc_balance[1]")
	require.True(t, ok)
	assert.Equal(t, 0.0, soc1.RHS)
	coefs := soc1.Expr.Coefficients(m.Problem.NumVariables())
	assert.Equal(t, -1.0, coefs[m.SoC[0]])
	assert.Equal(t, 1.0, coefs[m.SoC[1]])
	assert.InDelta(t, 0.01*(1-1.0), coefs[m.ChargePower[1]], 1e-12)
	assert.InDelta(t, 0.01/(1-0.9), coefs[m.DischargePower[1]], 1e-12)

	buy, ok := constraintByName(m.Problem, "grid_buy[0]")
	require.True(t, ok)
	assert.Equal(t, 200.0, buy.RHS)

	obj, sense := m.Problem.Objective()
	assert.Equal(t, milp.Minimize, sense)
	oc := obj.Coefficients(m.Problem.NumVariables())
	assert.Equal(t, 10.0, oc[m.GridPower[0]])
	assert.Equal(t, 100.0, oc[m.GridPower[1]])
}

func TestBuildEfficiencyModels(t *testing.T) {
	points, grid, batt := twoStepScenario()
	batt.ChargeEff, batt.DischargeEff = 0.8, 0.5
	in := assembled(t, points, grid, batt)

	cases := []struct {
		eff               model.EfficiencyModel
		charge, discharge float64
	}{
		{model.EfficiencyAsSpecified, 0.2, 2},
		{model.EfficiencyRoundTrip, 0.8, 2},
	}
	for _, c := range cases {
		t.Run(string(c.eff), func(t *testing.T) {
			m, err := Build(in, BuildOptions{Efficiency: c.eff})
			require.NoError(t, err)
			rec, ok := constraintByName(m.Problem, "soc_balance[0]")
			require.True(t, ok)
			coefs := rec.Expr.Coefficients(m.Problem.NumVariables())
			assert.InDelta(t, 0.01*c.charge, coefs[m.ChargePower[0]], 1e-12)
			assert.InDelta(t, 0.01*c.discharge, coefs[m.DischargePower[0]], 1e-12)
		})
	}

	_, err := Build(in, BuildOptions{Efficiency: "lossless"})
	assert.Error(t, err)
}

func TestBuildPinsDischargeAtUnitEfficiency(t *testing.T) {
	points, grid, batt := twoStepScenario()
	m, err := Build(assembled(t, points, grid, batt), BuildOptions{Efficiency: model.EfficiencyAsSpecified})
	require.NoError(t, err)
	assert.True(t, m.DischargePinned)
	require.NoError(t, m.Problem.Validate())
	for _, v := range m.DischargePower {
		assert.Equal(t, 0.0, m.Problem.Variable(v).Upper)
	}

	m, err = Build(assembled(t, points, grid, batt), BuildOptions{Efficiency: model.EfficiencyRoundTrip})
	require.NoError(t, err)
	assert.False(t, m.DischargePinned)
}

func TestBuildRejectsMissingInput(t *testing.T) {
	_, err := Build(nil, BuildOptions{})
	var ide *input.InsufficientDataError
	assert.ErrorAs(t, err, &ide)
}
