package model

import "time"

// TimeSeriesPoint is one market interval as delivered by the data collaborator.
type TimeSeriesPoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"market_price"` // currency per energy unit
	Load  float64   `json:"load"`         // power
	Wind  float64   `json:"wind"`         // power
	Solar float64   `json:"solar"`        // power
}

// NetLoad returns the site demand left after local generation.
func (p TimeSeriesPoint) NetLoad() float64 {
	return p.Load - p.Solar - p.Wind
}
