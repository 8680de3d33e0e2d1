package model

import (
	"math"
	"testing"
)

func validBattery() BatteryParameters {
	return BatteryParameters{
		MaxChargeRate: 50, MaxDischargeRate: 50, Capacity: 100,
		ChargeEff: 0.95, DischargeEff: 0.95,
		MinSoC: 0.1, MaxSoC: 0.9, InitialSoC: 0.5,
	}
}

func TestBatteryParametersValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BatteryParameters)
		wantErr bool
	}{
		{"valid", func(*BatteryParameters) {}, false},
		{"lossless", func(b *BatteryParameters) { b.ChargeEff, b.DischargeEff = 1, 1 }, false},
		{"zero rates", func(b *BatteryParameters) { b.MaxChargeRate, b.MaxDischargeRate = 0, 0 }, false},
		{"zero capacity", func(b *BatteryParameters) { b.Capacity = 0 }, true},
		{"zero efficiency", func(b *BatteryParameters) { b.ChargeEff = 0 }, true},
		{"efficiency above one", func(b *BatteryParameters) { b.DischargeEff = 1.1 }, true},
		{"inverted soc bounds", func(b *BatteryParameters) { b.MinSoC, b.MaxSoC = 0.9, 0.1 }, true},
		{"initial outside bounds", func(b *BatteryParameters) { b.InitialSoC = 0.95 }, true},
		{"negative rate", func(b *BatteryParameters) { b.MaxChargeRate = -1 }, true},
		{"nan rate", func(b *BatteryParameters) { b.MaxDischargeRate = math.NaN() }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBattery()
			tt.mutate(&b)
			err := b.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestGridParametersValidate(t *testing.T) {
	g := GridParameters{MaxBuyPower: 200, MaxSellPower: math.Inf(1), MaxImportPower: 100, MaxExportPower: 0}
	if err := g.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.MaxSellPower = -5
	if err := g.Validate(); err == nil {
		t.Fatalf("expected error for negative limit")
	}
}

func TestEfficiencyModelValid(t *testing.T) {
	for _, m := range []EfficiencyModel{"", EfficiencyAsSpecified, EfficiencyRoundTrip} {
		if !m.Valid() {
			t.Errorf("%q should be valid", m)
		}
	}
	if EfficiencyModel("linear").Valid() {
		t.Errorf("unknown model accepted")
	}
}
