package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	energyCSV = "Datum von;Datum bis;Wind Offshore [MWh];Wind Onshore [MWh];Photovoltaik [MWh]\n" +
		"01.06.2024 00:00;01.06.2024 01:00;1.234,5;100;-\n" +
		"01.06.2024 01:00;01.06.2024 02:00;1.000;200,25;0\n"
	loadCSV = "Datum von;Datum bis;Gesamt (Netzlast) [MWh]\n" +
		"01.06.2024 00:00;01.06.2024 01:00;40.000\n" +
		"01.06.2024 01:00;01.06.2024 02:00;39.500,5\n"
	priceCSV = "Datum von;Datum bis;Deutschland/Luxemburg [€/MWh]\n" +
		"01.06.2024 00:00;01.06.2024 01:00;-5,25\n"
)

type smardStub struct {
	mu       sync.Mutex
	requests []smardRequest
	bodies   map[int]string
	status   int
}

func (s *smardStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req smardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.RequestForm) != 1 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.status != 0 {
		http.Error(w, "unavailable", s.status)
		return
	}
	_, _ = fmt.Fprint(w, s.bodies[req.RequestForm[0].ModuleIDs[0]])
}

func newStubClient(t *testing.T, stub *smardStub) *SMARDClient {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	c, err := NewSMARDClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestSMARDFetch(t *testing.T) {
	stub := &smardStub{bodies: map[int]string{
		ModuleWindOffshore: energyCSV,
		ModuleLoad:         loadCSV,
		ModuleDayAhead:     priceCSV,
	}}
	c := newStubClient(t, stub)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, c.Location())
	points, err := c.Fetch(context.Background(), start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.True(t, points[0].Time.Equal(start))
	assert.Equal(t, 1334.5, points[0].Wind)
	assert.Equal(t, 0.0, points[0].Solar)
	assert.Equal(t, 40000.0, points[0].Load)
	assert.Equal(t, -5.25, points[0].Price)

	assert.Equal(t, 1200.25, points[1].Wind)
	assert.Equal(t, 39500.5, points[1].Load)
	assert.Equal(t, -5.25, points[1].Price, "price carried forward")

	require.Len(t, stub.requests, 3)
	for _, req := range stub.requests {
		form := req.RequestForm[0]
		assert.Equal(t, "CSV", form.Format)
		assert.Equal(t, "DE", form.Region)
		assert.Equal(t, start.UnixMilli(), form.TimestampFrom)
		assert.Equal(t, start.Add(2*time.Hour).UnixMilli(), form.TimestampTo)
	}
}

func TestSMARDFetchMissingPrice(t *testing.T) {
	stub := &smardStub{bodies: map[int]string{
		ModuleWindOffshore: energyCSV,
		ModuleLoad:         loadCSV,
		ModuleDayAhead: "Datum von;Datum bis;Preis\n" +
			"01.06.2024 01:00;01.06.2024 02:00;30\n",
	}}
	c := newStubClient(t, stub)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, c.Location())
	_, err := c.Fetch(context.Background(), start, start.Add(2*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingData))
	assert.Contains(t, err.Error(), "no market price")
}

func TestSMARDFetchHTTPError(t *testing.T) {
	c := newStubClient(t, &smardStub{status: http.StatusBadGateway})
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.Fetch(context.Background(), start, start.Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSMARDFetchInvalidRange(t *testing.T) {
	c, err := NewSMARDClient()
	require.NoError(t, err)
	now := time.Now()
	_, err = c.Fetch(context.Background(), now, now)
	assert.Error(t, err)
}

func TestNewSMARDClientOptions(t *testing.T) {
	_, err := NewSMARDClient(WithBaseURL(""))
	assert.Error(t, err)
	_, err = NewSMARDClient(WithHTTPClient(nil))
	assert.Error(t, err)
	_, err = NewSMARDClient(WithRegion(""))
	assert.Error(t, err)
	_, err = NewSMARDClient(WithLocation(nil))
	assert.Error(t, err)
}

func TestParseGermanNumber(t *testing.T) {
	cases := map[string]float64{
		"1.234,5": 1234.5,
		"-":       0,
		"":        0,
		"-12,75":  -12.75,
		"42":      42,
	}
	for in, want := range cases {
		got, err := ParseGermanNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseGermanNumber("n/a")
	assert.Error(t, err)
}

func TestParseSMARDCSVShortRow(t *testing.T) {
	_, err := parseSMARDCSV(strings.NewReader("a;b;c\n01.06.2024 00:00;01.06.2024 01:00\n"), 1, time.UTC)
	assert.Error(t, err)
}

func TestDefaultRange(t *testing.T) {
	now := time.Date(2024, 6, 2, 15, 30, 0, 0, time.UTC)
	start, end := DefaultRange(now)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), end)
}
