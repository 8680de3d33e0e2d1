package metrics_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/bessopt/core/factory"
	metrics "github.com/kilianp07/bessopt/core/metrics"
	_ "github.com/kilianp07/bessopt/infra/metrics"
)

type recordSink struct {
	runs      int
	schedules int
	err       error
}

func (r *recordSink) RecordRun(metrics.RunEvent) error {
	r.runs++
	return r.err
}

func (r *recordSink) RecordSchedule(metrics.ScheduleEvent) error {
	r.schedules++
	return nil
}

type runOnlySink struct{ runs int }

func (r *runOnlySink) RecordRun(metrics.RunEvent) error {
	r.runs++
	return nil
}

func TestMultiSink(t *testing.T) {
	failing := &recordSink{err: errors.New("down")}
	ok := &recordSink{}
	plain := &runOnlySink{}
	m := metrics.NewMultiSink(failing, ok, plain)

	err := m.RecordRun(metrics.RunEvent{RunID: "r"})
	assert.Error(t, err)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, ok.runs, "later sinks still called after a failure")
	assert.Equal(t, 1, plain.runs)

	require.NoError(t, m.RecordSchedule(metrics.ScheduleEvent{RunID: "r"}))
	assert.Equal(t, 1, ok.schedules)
}

func TestNewMetricsSink(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	multi, ok := s.(*metrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.ErrorIs(t, err, factory.ErrUnknownModule)
}

func TestConfigDecode(t *testing.T) {
	var cfg metrics.Config
	data := "sinks:\n  - type: nop\n  - type: nop\nprometheus_addr: \":2112\"\n"
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":2112", cfg.PrometheusAddr)
	s, err := metrics.NewMetricsSink(cfg.Sinks)
	require.NoError(t, err)
	assert.IsType(t, &metrics.MultiSink{}, s)

	var bad metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"conf":{}}]}`), &bad))
	assert.Error(t, bad.Validate())
}

func TestBuiltinSinkTypes(t *testing.T) {
	assert.Subset(t, metrics.SinkTypes(), []string{"influx", "nop", "prometheus"})

	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"token": "t"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics.sinks[0] (influx)")
}
