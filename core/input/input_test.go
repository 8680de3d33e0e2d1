package input

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessopt/core/model"
)

var (
	grid    = model.GridParameters{MaxBuyPower: 200, MaxSellPower: 200, MaxImportPower: 200, MaxExportPower: 200}
	battery = model.BatteryParameters{MaxChargeRate: 50, MaxDischargeRate: 50, Capacity: 100, ChargeEff: 0.9, DischargeEff: 0.9, MinSoC: 0, MaxSoC: 1, InitialSoC: 0.5}
)

func series(start time.Time, step time.Duration, n int) []model.TimeSeriesPoint {
	pts := make([]model.TimeSeriesPoint, n)
	for i := range pts {
		pts[i] = model.TimeSeriesPoint{Time: start.Add(time.Duration(i) * step), Price: float64(10 * (i + 1)), Load: 50}
	}
	return pts
}

func TestAssemble_InsufficientData(t *testing.T) {
	for _, n := range []int{0, 1} {
		_, err := Assemble(series(time.Now(), time.Hour, n), grid, battery)
		var ide *InsufficientDataError
		require.True(t, errors.As(err, &ide), "n=%d err=%v", n, err)
		assert.Equal(t, n, ide.Points)
	}
}

func TestAssemble_StepsAndDt(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		step time.Duration
		n    int
		dt   float64
	}{
		{time.Hour, 24, 1},
		{15 * time.Minute, 96, 0.25},
		{15*time.Minute + 400*time.Millisecond, 4, 0.25},
		{15*time.Minute + 600*time.Millisecond, 4, 901.0 / 3600},
	}
	for _, tt := range tests {
		in, err := Assemble(series(start, tt.step, tt.n), grid, battery)
		require.NoError(t, err)
		assert.Equal(t, tt.n, in.Steps())
		assert.InDelta(t, tt.dt, in.Dt(), 1e-12)
	}
}

func TestAssemble_SortsWithoutMutatingCaller(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pts := series(start, time.Hour, 3)
	pts[0], pts[2] = pts[2], pts[0]
	in, err := Assemble(pts, grid, battery)
	require.NoError(t, err)
	assert.Equal(t, start, in.StartTime())
	assert.Equal(t, []float64{10, 20, 30}, in.Prices())
	assert.Equal(t, 30.0, pts[0].Price, "caller slice must be left untouched")
}

func TestAssemble_InvalidInputs(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	dup := series(start, 0, 2)
	_, err := Assemble(dup, grid, battery)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	badBatt := battery
	badBatt.InitialSoC = 2
	_, err = Assemble(series(start, time.Hour, 2), grid, badBatt)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	badGrid := grid
	badGrid.MaxBuyPower = -1
	_, err = Assemble(series(start, time.Hour, 2), badGrid, battery)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	nan := series(start, time.Hour, 2)
	nan[1].Load = math.NaN()
	_, err = Assemble(nan, grid, battery)
	assert.Error(t, err)
}

func TestInputAccessors(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	in, err := Assemble(series(start, time.Hour, 2), grid, battery)
	require.NoError(t, err)
	assert.Equal(t, grid, in.Grid())
	assert.Equal(t, battery, in.Battery())
	assert.Equal(t, 20.0, in.At(1).Price)
	assert.Equal(t, []time.Time{start, start.Add(time.Hour)}, in.Times())
}
