package market

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/bessopt/core/model"
	"github.com/kilianp07/bessopt/infra/logger"
)

// DefaultSMARDURL is the download-manager endpoint of smard.de.
const DefaultSMARDURL = "https://www.smard.de/nip-download-manager/nip/download/market-data"

// SMARD module identifiers.
const (
	ModuleWindOffshore = 1004067
	ModuleWindOnshore  = 1004068
	ModuleSolar        = 1001225
	ModuleDayAhead     = 8004169
	ModuleLoad         = 5000410
)

// smardTimeLayout is the German timestamp format used in SMARD exports.
const smardTimeLayout = "02.01.2006 15:04"

// ErrMissingData is returned when the merged series has gaps.
var ErrMissingData = errors.New("smard data incomplete")

// SMARDClient downloads generation, load and day-ahead price data.
type SMARDClient struct {
	baseURL  string
	region   string
	dataType string
	language string
	http     *http.Client
	loc      *time.Location
	log      logger.Logger
}

// Option configures a SMARDClient.
type Option func(*SMARDClient) error

// WithBaseURL overrides the download endpoint.
func WithBaseURL(u string) Option {
	return func(c *SMARDClient) error {
		if u == "" {
			return fmt.Errorf("empty SMARD base url")
		}
		c.baseURL = u
		return nil
	}
}

// WithRegion selects the bidding zone, "DE" by default.
func WithRegion(region string) Option {
	return func(c *SMARDClient) error {
		if region == "" {
			return fmt.Errorf("empty SMARD region")
		}
		c.region = region
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(h *http.Client) Option {
	return func(c *SMARDClient) error {
		if h == nil {
			return fmt.Errorf("nil http client")
		}
		c.http = h
		return nil
	}
}

// WithLocation sets the zone SMARD timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *SMARDClient) error {
		if loc == nil {
			return fmt.Errorf("nil location")
		}
		c.loc = loc
		return nil
	}
}

// NewSMARDClient returns a client for the public SMARD endpoint.
func NewSMARDClient(opts ...Option) (*SMARDClient, error) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return nil, fmt.Errorf("load Europe/Berlin: %w", err)
	}
	c := &SMARDClient{
		baseURL:  DefaultSMARDURL,
		region:   "DE",
		dataType: "discrete",
		language: "de",
		http:     &http.Client{Timeout: 30 * time.Second},
		loc:      loc,
		log:      logger.New("smard"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type smardRequest struct {
	RequestForm []smardForm `json:"request_form"`
}

type smardForm struct {
	Format        string `json:"format"`
	ModuleIDs     []int  `json:"moduleIds"`
	Region        string `json:"region"`
	TimestampFrom int64  `json:"timestamp_from"`
	TimestampTo   int64  `json:"timestamp_to"`
	Type          string `json:"type"`
	Language      string `json:"language"`
}

// smardRow is one parsed line: interval start/end and the module values.
type smardRow struct {
	from, to time.Time
	values   []float64
}

// Fetch downloads the three datasets for [start, end] and merges them into
// a sorted series. Wind is the sum of offshore and onshore generation and
// missing prices are carried forward from the previous interval.
func (c *SMARDClient) Fetch(ctx context.Context, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("smard range: end %s not after start %s", end, start)
	}
	var energy, price, load []smardRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		energy, err = c.download(gctx, start, end, []int{ModuleWindOffshore, ModuleWindOnshore, ModuleSolar})
		return err
	})
	g.Go(func() (err error) {
		price, err = c.download(gctx, start, end, []int{ModuleDayAhead})
		return err
	})
	g.Go(func() (err error) {
		load, err = c.download(gctx, start, end, []int{ModuleLoad})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(energy) == 0 || len(price) == 0 || len(load) == 0 {
		return nil, fmt.Errorf("%w: empty dataset (energy=%d price=%d load=%d)", ErrMissingData, len(energy), len(price), len(load))
	}
	points, err := merge(energy, price, load)
	if err != nil {
		return nil, err
	}
	c.log.Infof("fetched %d SMARD points from %s to %s", len(points), start.Format(time.RFC3339), end.Format(time.RFC3339))
	return points, nil
}

func (c *SMARDClient) download(ctx context.Context, start, end time.Time, modules []int) ([]smardRow, error) {
	body, err := json.Marshal(smardRequest{RequestForm: []smardForm{{
		Format:        "CSV",
		ModuleIDs:     modules,
		Region:        c.region,
		TimestampFrom: start.Unix() * 1000,
		TimestampTo:   end.Unix() * 1000,
		Type:          c.dataType,
		Language:      c.language,
	}}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("smard modules %v: %w", modules, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("smard modules %v: unexpected status code: %d, body: %s", modules, resp.StatusCode, msg)
	}
	rows, err := parseSMARDCSV(resp.Body, len(modules), c.loc)
	if err != nil {
		return nil, fmt.Errorf("smard modules %v: %w", modules, err)
	}
	if len(rows) == 0 {
		c.log.Warnf("no data returned for SMARD modules %v in the requested range", modules)
	}
	return rows, nil
}

// parseSMARDCSV reads a ';' separated export whose first two columns are the
// interval bounds followed by n value columns.
func parseSMARDCSV(r io.Reader, n int, loc *time.Location) ([]smardRow, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var rows []smardRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2+n {
			return nil, fmt.Errorf("row %v: expected %d columns", rec, 2+n)
		}
		from, err := time.ParseInLocation(smardTimeLayout, strings.TrimSpace(rec[0]), loc)
		if err != nil {
			return nil, fmt.Errorf("parse start %q: %w", rec[0], err)
		}
		to, err := time.ParseInLocation(smardTimeLayout, strings.TrimSpace(rec[1]), loc)
		if err != nil {
			return nil, fmt.Errorf("parse end %q: %w", rec[1], err)
		}
		row := smardRow{from: from, to: to, values: make([]float64, n)}
		for i := 0; i < n; i++ {
			v, err := ParseGermanNumber(rec[2+i])
			if err != nil {
				v = math.NaN()
			}
			row.values[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseGermanNumber converts "1.234,5" to 1234.5. A lone "-" means zero.
func ParseGermanNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "-" || s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

// merge joins generation and load on the interval, attaches prices by start
// time and forward-fills missing prices.
func merge(energy, price, load []smardRow) ([]model.TimeSeriesPoint, error) {
	type key struct{ from, to int64 }
	loads := make(map[key]float64, len(load))
	for _, r := range load {
		loads[key{r.from.Unix(), r.to.Unix()}] = r.values[0]
	}
	prices := make(map[int64]float64, len(price))
	for _, r := range price {
		prices[r.from.Unix()] = r.values[0]
	}

	byStart := make(map[int64]*model.TimeSeriesPoint)
	hasPrice := make(map[int64]bool)
	complete := make(map[int64]bool)
	for _, r := range energy {
		l, ok := loads[key{r.from.Unix(), r.to.Unix()}]
		if !ok {
			continue
		}
		p := &model.TimeSeriesPoint{
			Time:  r.from,
			Load:  l,
			Wind:  r.values[0] + r.values[1],
			Solar: r.values[2],
		}
		if v, ok := prices[r.from.Unix()]; ok {
			p.Price = v
			hasPrice[r.from.Unix()] = true
		}
		byStart[r.from.Unix()] = p
		complete[r.from.Unix()] = true
	}
	for _, r := range price {
		s := r.from.Unix()
		if _, ok := byStart[s]; ok {
			continue
		}
		byStart[s] = &model.TimeSeriesPoint{Time: r.from, Price: r.values[0]}
		hasPrice[s] = true
	}

	starts := make([]int64, 0, len(byStart))
	for s := range byStart {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]model.TimeSeriesPoint, 0, len(starts))
	var last float64
	seen := false
	var problems []string
	for _, s := range starts {
		p := *byStart[s]
		if hasPrice[s] && !math.IsNaN(p.Price) {
			last, seen = p.Price, true
		} else if seen {
			p.Price = last
		} else {
			problems = append(problems, fmt.Sprintf("%s: no market price", p.Time.Format(time.RFC3339)))
		}
		if !complete[s] {
			problems = append(problems, fmt.Sprintf("%s: no load or generation", p.Time.Format(time.RFC3339)))
		} else if math.IsNaN(p.Load) || math.IsNaN(p.Wind) || math.IsNaN(p.Solar) {
			problems = append(problems, fmt.Sprintf("%s: unparsable value", p.Time.Format(time.RFC3339)))
		}
		out = append(out, p)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingData, strings.Join(problems, "; "))
	}
	return out, nil
}

// DefaultRange returns yesterday 00:00 to today 00:00 in the zone of now.
func DefaultRange(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return end.AddDate(0, 0, -1), end
}

// Location returns the zone SMARD timestamps are read in.
func (c *SMARDClient) Location() *time.Location { return c.loc }
