// Package params reads the grid and battery records from a parameter file.
package params

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/bessopt/core/model"
)

// Limit is a power bound that also accepts "inf", "unlimited" or an omitted
// value to mean no bound.
type Limit float64

// Unlimited is the bound used for omitted limits.
var Unlimited = Limit(math.Inf(1))

func parseLimit(s string) (Limit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inf", "+inf", ".inf", "infinity", "unlimited", "none":
		return Unlimited, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	return Limit(v), nil
}

// UnmarshalYAML accepts numbers and the unbounded keywords.
func (l *Limit) UnmarshalYAML(n *yaml.Node) error {
	var f float64
	if err := n.Decode(&f); err == nil {
		*l = Limit(f)
		return nil
	}
	v, err := parseLimit(n.Value)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// UnmarshalJSON accepts numbers, null and quoted keywords.
func (l *Limit) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = Unlimited
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*l = Limit(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid limit %s", b)
	}
	v, err := parseLimit(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// MarshalJSON writes unbounded limits as "inf".
func (l Limit) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(l), 1) {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(l))
}

// Grid is the grid record as written in parameter files.
type Grid struct {
	MaxBuyPower    *Limit `json:"max_buy_power" yaml:"max_buy_power"`
	MaxSellPower   *Limit `json:"max_sell_power" yaml:"max_sell_power"`
	MaxImportPower *Limit `json:"max_import_power" yaml:"max_import_power"`
	MaxExportPower *Limit `json:"max_export_power" yaml:"max_export_power"`
}

// Parameters converts the record, treating omitted limits as unbounded.
func (g Grid) Parameters() model.GridParameters {
	get := func(l *Limit) float64 {
		if l == nil {
			return float64(Unlimited)
		}
		return float64(*l)
	}
	return model.GridParameters{
		MaxBuyPower:    get(g.MaxBuyPower),
		MaxSellPower:   get(g.MaxSellPower),
		MaxImportPower: get(g.MaxImportPower),
		MaxExportPower: get(g.MaxExportPower),
	}
}

// FromGrid is the inverse of Grid.Parameters.
func FromGrid(p model.GridParameters) Grid {
	l := func(v float64) *Limit { x := Limit(v); return &x }
	return Grid{
		MaxBuyPower:    l(p.MaxBuyPower),
		MaxSellPower:   l(p.MaxSellPower),
		MaxImportPower: l(p.MaxImportPower),
		MaxExportPower: l(p.MaxExportPower),
	}
}

// File is the parameter document: one grid and one battery record.
type File struct {
	Grid    Grid                     `json:"grid" yaml:"grid"`
	Battery *model.BatteryParameters `json:"battery" yaml:"battery"`
}

// Resolve validates the document and returns the model records.
func (f File) Resolve() (model.GridParameters, model.BatteryParameters, error) {
	if f.Battery == nil {
		return model.GridParameters{}, model.BatteryParameters{}, fmt.Errorf("battery record missing")
	}
	grid := f.Grid.Parameters()
	if err := grid.Validate(); err != nil {
		return model.GridParameters{}, model.BatteryParameters{}, err
	}
	if err := f.Battery.Validate(); err != nil {
		return model.GridParameters{}, model.BatteryParameters{}, err
	}
	return grid, *f.Battery, nil
}

// Parse decodes data as JSON when ext is ".json" and as YAML otherwise.
func Parse(data []byte, ext string) (model.GridParameters, model.BatteryParameters, error) {
	var f File
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &f)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, &f)
	default:
		return model.GridParameters{}, model.BatteryParameters{}, fmt.Errorf("unsupported parameter format: %s", ext)
	}
	if err != nil {
		return model.GridParameters{}, model.BatteryParameters{}, fmt.Errorf("decode parameters: %w", err)
	}
	return f.Resolve()
}

// Load reads the parameter file at path.
func Load(path string) (model.GridParameters, model.BatteryParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.GridParameters{}, model.BatteryParameters{}, fmt.Errorf("read parameters: %w", err)
	}
	grid, batt, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return grid, batt, fmt.Errorf("%s: %w", path, err)
	}
	return grid, batt, nil
}
