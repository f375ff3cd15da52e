package models

import "time"

// TaxonomyStat tracks how often a name has been seen and when it was last used
type TaxonomyStat struct {
	Count    int       `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// TaxonomyEntry is one named row of a sorted taxonomy view
type TaxonomyEntry struct {
	Name     string    `json:"name"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// Taxonomy is a snapshot of known activities and metric types, most used first
type Taxonomy struct {
	Activities []TaxonomyEntry `json:"activities"`
	Metrics    []TaxonomyEntry `json:"metrics"`
	Timestamp  time.Time       `json:"timestamp"`
}
