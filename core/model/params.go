package model

import (
	"fmt"
	"math"
)

// GridParameters bounds the exchange with the grid. A value of +Inf leaves
// the corresponding side unconstrained.
type GridParameters struct {
	MaxBuyPower    float64 `json:"max_buy_power" yaml:"max_buy_power"`
	MaxSellPower   float64 `json:"max_sell_power" yaml:"max_sell_power"`
	MaxImportPower float64 `json:"max_import_power" yaml:"max_import_power"`
	MaxExportPower float64 `json:"max_export_power" yaml:"max_export_power"`
}

// Validate checks that every limit is a non-negative magnitude.
func (g GridParameters) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"max_buy_power", g.MaxBuyPower},
		{"max_sell_power", g.MaxSellPower},
		{"max_import_power", g.MaxImportPower},
		{"max_export_power", g.MaxExportPower},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || f.v < 0 {
			return fmt.Errorf("grid %s must be non-negative, got %v", f.name, f.v)
		}
	}
	return nil
}

// BatteryParameters describes the storage asset being scheduled.
type BatteryParameters struct {
	MaxChargeRate    float64 `json:"max_charge_rate" yaml:"max_charge_rate"`       // power
	MaxDischargeRate float64 `json:"max_discharge_rate" yaml:"max_discharge_rate"` // power
	Capacity         float64 `json:"capacity" yaml:"capacity"`                     // energy
	ChargeEff        float64 `json:"charge_eff" yaml:"charge_eff"`
	DischargeEff     float64 `json:"discharge_eff" yaml:"discharge_eff"`
	MinSoC           float64 `json:"min_soc" yaml:"min_soc"`
	MaxSoC           float64 `json:"max_soc" yaml:"max_soc"`
	InitialSoC       float64 `json:"initial_soc" yaml:"initial_soc"`
}

// Validate checks physical consistency of the battery record.
func (b BatteryParameters) Validate() error {
	switch {
	case math.IsNaN(b.MaxChargeRate) || b.MaxChargeRate < 0 || math.IsInf(b.MaxChargeRate, 0):
		return fmt.Errorf("battery max_charge_rate must be finite and non-negative, got %v", b.MaxChargeRate)
	case math.IsNaN(b.MaxDischargeRate) || b.MaxDischargeRate < 0 || math.IsInf(b.MaxDischargeRate, 0):
		return fmt.Errorf("battery max_discharge_rate must be finite and non-negative, got %v", b.MaxDischargeRate)
	case !(b.Capacity > 0) || math.IsInf(b.Capacity, 0):
		return fmt.Errorf("battery capacity must be positive, got %v", b.Capacity)
	case !(b.ChargeEff > 0 && b.ChargeEff <= 1):
		return fmt.Errorf("battery charge_eff must be in (0,1], got %v", b.ChargeEff)
	case !(b.DischargeEff > 0 && b.DischargeEff <= 1):
		return fmt.Errorf("battery discharge_eff must be in (0,1], got %v", b.DischargeEff)
	case !(b.MinSoC >= 0 && b.MinSoC <= b.MaxSoC && b.MaxSoC <= 1):
		return fmt.Errorf("battery soc bounds must satisfy 0 <= min_soc <= max_soc <= 1, got [%v, %v]", b.MinSoC, b.MaxSoC)
	case !(b.InitialSoC >= b.MinSoC && b.InitialSoC <= b.MaxSoC):
		return fmt.Errorf("battery initial_soc %v outside [%v, %v]", b.InitialSoC, b.MinSoC, b.MaxSoC)
	}
	return nil
}

// EfficiencyModel selects how conversion losses enter the SoC recurrence.
type EfficiencyModel string

const (
	// EfficiencyAsSpecified scales charge power by (1-charge_eff) and divides
	// discharge power by (1-discharge_eff), as commissioned.
	EfficiencyAsSpecified EfficiencyModel = "as_specified"
	// EfficiencyRoundTrip scales charge power by charge_eff and divides
	// discharge power by discharge_eff.
	EfficiencyRoundTrip EfficiencyModel = "round_trip"
)

// Valid reports whether m is a known model. The empty value is accepted and
// means EfficiencyAsSpecified.
func (m EfficiencyModel) Valid() bool {
	switch m {
	case "", EfficiencyAsSpecified, EfficiencyRoundTrip:
		return true
	}
	return false
}
