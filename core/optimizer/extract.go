package optimizer

import (
	"errors"
	"math"

	"github.com/kilianp07/bessopt/core/input"
	"github.com/kilianp07/bessopt/core/logger"
	"github.com/kilianp07/bessopt/core/milp"
	"github.com/kilianp07/bessopt/core/model"
)

// Extract reads the schedule out of a solved model. A solution without a
// usable assignment yields *ModelInfeasibleError. A timestep whose values
// cannot be read is logged and replaced by model.UndefinedRow.
func Extract(sol *milp.Solution, m *Model, in *input.Input, log logger.Logger) (*model.Schedule, error) {
	if sol == nil {
		return nil, &ModelInfeasibleError{Status: milp.NotSolved}
	}
	if !sol.Status.Solved() {
		return nil, &ModelInfeasibleError{Status: sol.Status}
	}

	n := in.Steps()
	sched := &model.Schedule{
		Status: sol.Status.String(),
		Dt:     in.Dt(),
		Steps:  n,
		Prices: in.Prices(),
		Rows:   make([]model.Row, n),
	}

	if obj, err := sol.Objective(); err == nil {
		sched.Objective = obj
		sched.TotalCost = round(obj/100, 2)
		sched.CostAvailable = true
	} else {
		log.Warnf("Objective value unavailable: %v", err)
	}

	for i := 0; i < n; i++ {
		t := in.At(i).Time
		row, err := extractRow(sol, m, i)
		if err != nil {
			xerr := &SolutionExtractionError{Index: i, Time: t, Err: err}
			log.Errorf("Failed to extract solution: %v", xerr)
			sched.Rows[i] = model.UndefinedRow(t)
			sched.UndefinedRows++
			continue
		}
		row.Time = t
		sched.Rows[i] = row
	}
	return sched, nil
}

func extractRow(sol *milp.Solution, m *Model, i int) (model.Row, error) {
	if i >= len(m.GridPower) {
		return model.Row{}, errors.New("timestep missing from model")
	}
	var errs []error
	read := func(v milp.Var) float64 {
		x, err := sol.Value(v)
		if err != nil {
			errs = append(errs, err)
		}
		return x
	}
	row := model.Row{
		GridPower:        round(read(m.GridPower[i]), 4),
		BatteryOutput:    round(read(m.BattPower[i]), 4),
		ChargingPower:    round(read(m.ChargePower[i]), 4),
		DischargingPower: round(read(m.DischargePower[i]), 4),
		SoC:              round(read(m.SoC[i]), 4),
		ChargeStatus:     int(math.Round(read(m.ChargeStatus[i]))),
	}
	if len(errs) > 0 {
		return model.Row{}, errors.Join(errs...)
	}
	return row, nil
}

// round rounds x to the given number of decimals and normalizes -0.
func round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(x*p) / p
	if r == 0 {
		return 0
	}
	return r
}
