package models

import "time"

// Trend is the direction of a numeric metric over its values
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// DateRange is an inclusive time window
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range, bounds included
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// MetricAggregation summarizes all values seen for one metric type.
// Numeric aggregations fill Values and the statistics; categorical ones fill MostCommon.
type MetricAggregation struct {
	Type       string    `json:"type"`
	Values     []float64 `json:"values"`
	Unit       *string   `json:"unit"`
	Average    *float64  `json:"average"`
	Min        *float64  `json:"min"`
	Max        *float64  `json:"max"`
	Trend      Trend     `json:"trend" validate:"trend"`
	MostCommon []string  `json:"most_common,omitempty"`
}

// QueryResult is the answer to a free-text metrics question
type QueryResult struct {
	DateRange DateRange           `json:"date_range"`
	Metrics   []MetricAggregation `json:"metrics"`
	Error     string              `json:"error,omitempty"`
}
