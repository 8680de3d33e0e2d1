package optimizer

import (
	"fmt"
	"math"

	"github.com/kilianp07/bessopt/core/input"
	"github.com/kilianp07/bessopt/core/milp"
	"github.com/kilianp07/bessopt/core/model"
)

// BuildOptions tunes how the program is formulated.
type BuildOptions struct {
	Efficiency model.EfficiencyModel
}

// Model is the formulated program plus the per-timestep variable handles.
type Model struct {
	Problem        *milp.Problem
	GridPower      []milp.Var
	BattPower      []milp.Var
	ChargePower    []milp.Var
	DischargePower []milp.Var
	ChargeStatus   []milp.Var
	SoC            []milp.Var

	// DischargePinned is set when discharge_power is fixed at zero because
	// the state-of-charge coefficient of discharging is undefined.
	DischargePinned bool
}

// Build formulates the battery scheduling program for the assembled input.
func Build(in *input.Input, opts BuildOptions) (*Model, error) {
	if in == nil {
		return nil, fmt.Errorf("build model: %w", &input.InsufficientDataError{})
	}
	if in.Steps() < input.MinPoints {
		return nil, fmt.Errorf("build model: %w", &input.InsufficientDataError{Points: in.Steps()})
	}
	eff := opts.Efficiency
	if eff == "" {
		eff = model.EfficiencyAsSpecified
	}
	if !eff.Valid() {
		return nil, fmt.Errorf("build model: unknown efficiency model %q", eff)
	}

	grid := in.Grid()
	batt := in.Battery()
	n := in.Steps()
	dt := in.Dt()
	k := dt / batt.Capacity

	chargeCoef, dischargeCoef, pinned := socCoefficients(eff, batt)

	m := &Model{
		Problem:         milp.NewProblem(),
		GridPower:       make([]milp.Var, n),
		BattPower:       make([]milp.Var, n),
		ChargePower:     make([]milp.Var, n),
		DischargePower:  make([]milp.Var, n),
		ChargeStatus:    make([]milp.Var, n),
		SoC:             make([]milp.Var, n),
		DischargePinned: pinned,
	}
	p := m.Problem
	inf := math.Inf(1)

	dischargeUB := inf
	if pinned {
		dischargeUB = 0
	}
	for i := 0; i < n; i++ {
		m.GridPower[i] = p.NewContinuous(fmt.Sprintf("grid_power[%d]", i), -inf, inf)
		m.BattPower[i] = p.NewContinuous(fmt.Sprintf("batt_power[%d]", i), -inf, inf)
		m.ChargePower[i] = p.NewContinuous(fmt.Sprintf("charge_power[%d]", i), -inf, 0)
		m.DischargePower[i] = p.NewContinuous(fmt.Sprintf("discharge_power[%d]", i), 0, dischargeUB)
		m.ChargeStatus[i] = p.NewBinary(fmt.Sprintf("charge_status[%d]", i))
		m.SoC[i] = p.NewContinuous(fmt.Sprintf("soc[%d]", i), 0, 1)
	}

	objective := milp.NewExpr()
	for i := 0; i < n; i++ {
		pt := in.At(i)
		net := pt.NetLoad()
		gp, bp := m.GridPower[i], m.BattPower[i]
		cp, dp := m.ChargePower[i], m.DischargePower[i]
		cs, soc := m.ChargeStatus[i], m.SoC[i]

		p.AddConstraint(fmt.Sprintf("balance[%d]", i),
			milp.NewExpr().Plus(gp, 1).Plus(bp, 1), milp.EQ, net)

		p.AddConstraint(fmt.Sprintf("grid_buy[%d]", i),
			milp.NewExpr().Plus(gp, 1), milp.LE, grid.MaxBuyPower)
		p.AddConstraint(fmt.Sprintf("grid_sell[%d]", i),
			milp.NewExpr().Plus(gp, 1), milp.GE, -grid.MaxSellPower)

		plant := milp.NewExpr().Plus(dp, 1).Plus(cp, 1)
		p.AddConstraint(fmt.Sprintf("plant_import[%d]", i), plant, milp.LE, grid.MaxImportPower-net)
		p.AddConstraint(fmt.Sprintf("plant_export[%d]", i), plant, milp.GE, -grid.MaxExportPower-net)

		p.AddConstraint(fmt.Sprintf("battery_split[%d]", i),
			milp.NewExpr().Plus(bp, 1).Plus(cp, -1).Plus(dp, -1), milp.EQ, 0)

		// charge_power >= -rate*status and discharge_power <= rate*(1-status)
		p.AddConstraint(fmt.Sprintf("charge_mode[%d]", i),
			milp.NewExpr().Plus(cp, 1).Plus(cs, batt.MaxChargeRate), milp.GE, 0)
		p.AddConstraint(fmt.Sprintf("discharge_mode[%d]", i),
			milp.NewExpr().Plus(dp, 1).Plus(cs, batt.MaxDischargeRate), milp.LE, batt.MaxDischargeRate)

		rec := milp.NewExpr().Plus(soc, 1).Plus(cp, k*chargeCoef)
		if !pinned {
			rec = rec.Plus(dp, k*dischargeCoef)
		}
		rhs := batt.InitialSoC
		if i > 0 {
			rec = rec.Plus(m.SoC[i-1], -1)
			rhs = 0
		}
		p.AddConstraint(fmt.Sprintf("soc_balance[%d]", i), rec, milp.EQ, rhs)

		p.AddConstraint(fmt.Sprintf("soc_min[%d]", i), milp.NewExpr().Plus(soc, 1), milp.GE, batt.MinSoC)
		p.AddConstraint(fmt.Sprintf("soc_max[%d]", i), milp.NewExpr().Plus(soc, 1), milp.LE, batt.MaxSoC)

		objective = objective.Plus(gp, pt.Price*dt)
	}
	p.SetObjective(milp.Minimize, objective)
	return m, nil
}

// socCoefficients returns the state-of-charge weights applied to charge and
// discharge power. pinned reports that discharging must be disabled.
func socCoefficients(eff model.EfficiencyModel, b model.BatteryParameters) (charge, discharge float64, pinned bool) {
	if eff == model.EfficiencyRoundTrip {
		return b.ChargeEff, 1 / b.DischargeEff, false
	}
	if b.DischargeEff == 1 {
		return 1 - b.ChargeEff, 0, true
	}
	return 1 - b.ChargeEff, 1 / (1 - b.DischargeEff), false
}
