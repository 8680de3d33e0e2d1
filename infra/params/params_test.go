package params

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlParams = `grid:
  max_buy_power: 200
  max_sell_power: inf
  max_import_power: .inf
battery:
  max_charge_rate: 50
  max_discharge_rate: 50
  capacity: 100
  charge_eff: 0.95
  discharge_eff: 0.9
  min_soc: 0.1
  max_soc: 0.9
  initial_soc: 0.5
`

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlParams), 0o644))

	grid, batt, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 200.0, grid.MaxBuyPower)
	assert.True(t, math.IsInf(grid.MaxSellPower, 1))
	assert.True(t, math.IsInf(grid.MaxImportPower, 1))
	assert.True(t, math.IsInf(grid.MaxExportPower, 1), "omitted limit is unbounded")
	assert.Equal(t, 100.0, batt.Capacity)
	assert.Equal(t, 0.95, batt.ChargeEff)
	assert.Equal(t, 0.5, batt.InitialSoC)
}

func TestLoadJSON(t *testing.T) {
	data := `{"grid":{"max_buy_power":10,"max_sell_power":"unlimited","max_import_power":null,"max_export_power":5},
"battery":{"max_charge_rate":1,"max_discharge_rate":1,"capacity":2,"charge_eff":1,"discharge_eff":1,"min_soc":0,"max_soc":1,"initial_soc":0}}`
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	grid, batt, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10.0, grid.MaxBuyPower)
	assert.True(t, math.IsInf(grid.MaxSellPower, 1))
	assert.True(t, math.IsInf(grid.MaxImportPower, 1))
	assert.Equal(t, 5.0, grid.MaxExportPower)
	assert.Equal(t, 2.0, batt.Capacity)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		ext  string
	}{
		{"no battery", "grid:\n  max_buy_power: 1\n", ".yaml"},
		{"negative limit", "grid:\n  max_buy_power: -1\nbattery:\n  capacity: 1\n  charge_eff: 1\n  discharge_eff: 1\n  max_soc: 1\n", ".yaml"},
		{"bad keyword", "grid:\n  max_buy_power: lots\n", ".yml"},
		{"bad battery", "battery:\n  capacity: 0\n", ".yaml"},
		{"format", "{}", ".toml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tc.data), tc.ext)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGridJSONRoundTrip(t *testing.T) {
	g := Grid{MaxBuyPower: ptr(Unlimited), MaxSellPower: ptr(Limit(3))}
	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"max_buy_power":"inf"`)

	var back Grid
	require.NoError(t, json.Unmarshal(b, &back))
	p := back.Parameters()
	assert.True(t, math.IsInf(p.MaxBuyPower, 1))
	assert.Equal(t, 3.0, p.MaxSellPower)
	assert.True(t, math.IsInf(p.MaxExportPower, 1))
}

func ptr(l Limit) *Limit { return &l }
