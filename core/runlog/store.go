package runlog

import (
	"context"
	"time"
)

// Record summarizes one optimization run.
type Record struct {
	RunID         string        `json:"run_id"`
	Timestamp     time.Time     `json:"timestamp"`
	Backend       string        `json:"backend"`
	Status        string        `json:"status"`
	Steps         int           `json:"steps"`
	Variables     int           `json:"variables"`
	Constraints   int           `json:"constraints"`
	Nodes         int           `json:"nodes"`
	SolveDuration time.Duration `json:"solve_duration"`
	Duration      time.Duration `json:"duration"`
	Objective     float64       `json:"objective"`
	TotalCost     float64       `json:"total_cost"`
	CostAvailable bool          `json:"cost_available"`
	UndefinedRows int           `json:"undefined_rows"`
	Error         string        `json:"error,omitempty"`
}

// Query filters stored records. Zero fields are ignored.
type Query struct {
	Start  time.Time
	End    time.Time
	Status string
	Limit  int
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return true
}

// Store persists run records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
