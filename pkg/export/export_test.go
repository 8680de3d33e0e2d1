package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessopt/core/model"
)

func sampleSchedule() *model.Schedule {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return &model.Schedule{
		RunID:         "run-1",
		Status:        "optimal",
		Objective:     500,
		TotalCost:     5,
		CostAvailable: true,
		Dt:            1,
		Steps:         2,
		UndefinedRows: 1,
		Prices:        []float64{10, 100},
		Rows: []model.Row{
			{Time: t0, GridPower: 100, BatteryOutput: -50, ChargingPower: -50, SoC: 1, ChargeStatus: 1},
			model.UndefinedRow(t0.Add(time.Hour)),
		},
	}
}

func TestWriteCostCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCostCSV(&buf, sampleSchedule()))
	assert.Equal(t, "total_cost\n5\n", buf.String())

	s := sampleSchedule()
	s.CostAvailable = false
	buf.Reset()
	require.NoError(t, WriteCostCSV(&buf, s))
	assert.Equal(t, "total_cost\nN/A\n", buf.String())
}

func TestWriteOperationCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOperationCSV(&buf, sampleSchedule()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time,grid_power,battery_output,charging_power,discharging_power,soc,charge_status", lines[0])
	assert.Equal(t, "01/06/2024 00:00,100,-50,-50,0,1,1", lines[1])
	assert.Equal(t, "01/06/2024 01:00,NaN,NaN,NaN,NaN,NaN,NaN", lines[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleSchedule()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	rows, ok := decoded["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)
	undefined, ok := rows[1].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, undefined["soc"])
}

func TestWriteChartHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChartHTML(&buf, sampleSchedule()))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "SOC")
	assert.Contains(t, html, "Price")
	assert.Contains(t, html, "01:00")
}
