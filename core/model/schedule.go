package model

import (
	"encoding/json"
	"math"
	"time"
)

// UndefinedStatus marks the charge status of a row that could not be read.
const UndefinedStatus = -1

// Row is the operating point of one timestep. When Undefined is set every
// numeric field holds NaN and ChargeStatus holds UndefinedStatus.
type Row struct {
	Time             time.Time `json:"time"`
	GridPower        float64   `json:"grid_power"`
	BatteryOutput    float64   `json:"battery_output"`
	ChargingPower    float64   `json:"charging_power"`
	DischargingPower float64   `json:"discharging_power"`
	SoC              float64   `json:"soc"`
	ChargeStatus     int       `json:"charge_status"`
	Undefined        bool      `json:"undefined,omitempty"`
}

// UndefinedRow returns the sentinel row used when a timestep's values cannot
// be read from the solution.
func UndefinedRow(t time.Time) Row {
	nan := math.NaN()
	return Row{
		Time:             t,
		GridPower:        nan,
		BatteryOutput:    nan,
		ChargingPower:    nan,
		DischargingPower: nan,
		SoC:              nan,
		ChargeStatus:     UndefinedStatus,
		Undefined:        true,
	}
}

// Schedule is the extracted result of one optimization run. It is not
// modified after extraction.
type Schedule struct {
	RunID         string    `json:"run_id"`
	Status        string    `json:"status"`
	Objective     float64   `json:"objective"`
	TotalCost     float64   `json:"total_cost"`
	CostAvailable bool      `json:"cost_available"`
	Dt            float64   `json:"dt_hours"`
	Steps         int       `json:"steps"`
	UndefinedRows int       `json:"undefined_rows"`
	Prices        []float64 `json:"prices"`
	Rows          []Row     `json:"rows"`
}

// MarshalJSON encodes undefined rows with null values since JSON has no NaN.
func (r Row) MarshalJSON() ([]byte, error) {
	type row Row
	if !r.Undefined {
		return json.Marshal(row(r))
	}
	return json.Marshal(struct {
		Time             time.Time `json:"time"`
		GridPower        *float64  `json:"grid_power"`
		BatteryOutput    *float64  `json:"battery_output"`
		ChargingPower    *float64  `json:"charging_power"`
		DischargingPower *float64  `json:"discharging_power"`
		SoC              *float64  `json:"soc"`
		ChargeStatus     *int      `json:"charge_status"`
		Undefined        bool      `json:"undefined"`
	}{Time: r.Time, Undefined: true})
}
