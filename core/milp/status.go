package milp

// Status is the outcome reported by a solver.
type Status int

const (
	NotSolved Status = iota
	Optimal
	Feasible
	Infeasible
	Unbounded
	Abnormal
	// Cancelled is reported when the solve-time budget expired or the caller
	// cancelled before any feasible assignment was found.
	Cancelled
)

var statusNames = map[Status]string{
	NotSolved:  "NOT_SOLVED",
	Optimal:    "OPTIMAL",
	Feasible:   "FEASIBLE",
	Infeasible: "INFEASIBLE",
	Unbounded:  "UNBOUNDED",
	Abnormal:   "ABNORMAL",
	Cancelled:  "CANCELLED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Solved reports whether the status carries a usable assignment.
func (s Status) Solved() bool { return s == Optimal || s == Feasible }
