package metrics

import (
	"time"

	"github.com/kilianp07/bessopt/core/model"
)

// RunEvent summarizes one optimization run, successful or not.
type RunEvent struct {
	RunID         string
	Backend       string
	Status        string
	Steps         int
	Variables     int
	Constraints   int
	Nodes         int
	SolveDuration time.Duration
	Duration      time.Duration
	TotalCost     float64
	CostAvailable bool
	UndefinedRows int
	Failed        bool
	Time          time.Time
}

// MetricsSink records optimization runs for observability purposes.
type MetricsSink interface {
	RecordRun(ev RunEvent) error
}

// ScheduleEvent carries the rows of a successful run.
type ScheduleEvent struct {
	RunID  string
	Prices []float64
	Rows   []model.Row
}

// ScheduleRecorder is implemented by sinks able to store the schedule itself.
type ScheduleRecorder interface {
	RecordSchedule(ev ScheduleEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error           { return nil }
func (NopSink) RecordSchedule(ScheduleEvent) error { return nil }
