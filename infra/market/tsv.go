package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/bessopt/core/model"
)

// TSVHeader is the column order written by WriteTSV.
var TSVHeader = []string{"time", "market_price", "load", "wind", "solar"}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05", time.DateOnly}

// columnAliases maps accepted header names onto TSVHeader entries.
var columnAliases = map[string]string{
	"time":         "time",
	"time_from":    "time",
	"timestamp":    "time",
	"market_price": "market_price",
	"price":        "market_price",
	"load":         "load",
	"wind":         "wind",
	"solar":        "solar",
}

// ParseTime accepts RFC3339 and the space separated layouts. Layouts without
// an offset are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadTSV parses a tab separated market series. Blank numeric cells read as
// 0 and rows with an unparsable timestamp are skipped.
func ReadTSV(r io.Reader, loc *time.Location) ([]model.TimeSeriesPoint, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty market file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(TSVHeader))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if col, ok := columnAliases[key]; ok {
			idx[col] = i
		}
	}
	for _, col := range TSVHeader {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("market file missing column %q", col)
		}
	}

	var points []model.TimeSeriesPoint
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cell := func(col string) string {
			if i := idx[col]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		ts, err := ParseTime(cell("time"), loc)
		if err != nil {
			continue
		}
		p := model.TimeSeriesPoint{Time: ts}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{"market_price", &p.Price},
			{"load", &p.Load},
			{"wind", &p.Wind},
			{"solar", &p.Solar},
		} {
			v, err := parseCell(cell(f.col))
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, f.col, err)
			}
			*f.dst = v
		}
		points = append(points, p)
	}
	return points, nil
}

func parseCell(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteTSV writes points with RFC3339 timestamps.
func WriteTSV(w io.Writer, points []model.TimeSeriesPoint) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(TSVHeader); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			p.Time.Format(time.RFC3339),
			strconv.FormatFloat(p.Price, 'f', -1, 64),
			strconv.FormatFloat(p.Load, 'f', -1, 64),
			strconv.FormatFloat(p.Wind, 'f', -1, 64),
			strconv.FormatFloat(p.Solar, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadTSV reads the series stored at path.
func LoadTSV(path string, loc *time.Location) ([]model.TimeSeriesPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market file: %w", err)
	}
	defer func() { _ = f.Close() }()
	points, err := ReadTSV(f, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

// SaveTSV writes the series to path, creating parent directories.
func SaveTSV(path string, points []model.TimeSeriesPoint) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create market dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create market file: %w", err)
	}
	if err := WriteTSV(f, points); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
