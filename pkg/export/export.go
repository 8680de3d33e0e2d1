// Package export writes optimization results to files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/bessopt/core/model"
)

// OperationTimeLayout formats the index column of the operation table.
const OperationTimeLayout = "02/01/2006 15:04"

// OperationHeader lists the operation table columns after the index.
var OperationHeader = []string{"grid_power", "battery_output", "charging_power", "discharging_power", "soc", "charge_status"}

// WriteJSON writes the schedule to w in JSON format.
func WriteJSON(w io.Writer, s *model.Schedule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteCostCSV writes the single row cost table. An unavailable cost is
// written as N/A.
func WriteCostCSV(w io.Writer, s *model.Schedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"total_cost"}); err != nil {
		return err
	}
	cost := "N/A"
	if s.CostAvailable {
		cost = strconv.FormatFloat(s.TotalCost, 'f', -1, 64)
	}
	if err := cw.Write([]string{cost}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteOperationCSV writes one row per timestep. Undefined rows carry NaN.
func WriteOperationCSV(w io.Writer, s *model.Schedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, OperationHeader...)); err != nil {
		return err
	}
	for _, r := range s.Rows {
		status := strconv.Itoa(r.ChargeStatus)
		if r.Undefined {
			status = "NaN"
		}
		rec := []string{
			r.Time.Format(OperationTimeLayout),
			formatFloat(r.GridPower),
			formatFloat(r.BatteryOutput),
			formatFloat(r.ChargingPower),
			formatFloat(r.DischargingPower),
			formatFloat(r.SoC),
			status,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteChartHTML renders state of charge against market price.
func WriteChartHTML(w io.Writer, s *model.Schedule) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "State of charge vs market price"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "SOC"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Price"})

	xAxis := make([]string, 0, len(s.Rows))
	soc := make([]opts.LineData, 0, len(s.Rows))
	price := make([]opts.LineData, 0, len(s.Rows))
	for i, r := range s.Rows {
		xAxis = append(xAxis, r.Time.Format("15:04"))
		if r.Undefined || math.IsNaN(r.SoC) {
			// "-" is the echarts marker for a missing point.
			soc = append(soc, opts.LineData{Value: "-"})
		} else {
			soc = append(soc, opts.LineData{Value: r.SoC})
		}
		if i < len(s.Prices) {
			price = append(price, opts.LineData{Value: s.Prices[i]})
		} else {
			price = append(price, opts.LineData{Value: "-"})
		}
	}

	line.SetXAxis(xAxis).
		AddSeries("SOC", soc).
		AddSeries("Price", price, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
