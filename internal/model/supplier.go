// Package model holds the shared supplier, ranking and run types.
package model

import (
	"maps"
	"time"
)

// Supplier is a raw supplier record as delivered by a record source. Fields
// holds the optional metric inputs under whatever alias the source used;
// values are numbers, booleans, numeric strings or nil.
type Supplier struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Industry string         `json:"industry"`
	Revenue  *float64       `json:"revenue,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Clone returns a copy of s whose Fields map can be edited without
// touching the original record.
func (s Supplier) Clone() Supplier {
	out := s
	if s.Revenue != nil {
		rev := *s.Revenue
		out.Revenue = &rev
	}
	out.Fields = maps.Clone(s.Fields)
	return out
}

// ScoreSnapshot is a persisted scoring result for one supplier under one
// settings hash. Payload carries the JSON-encoded breakdown.
type ScoreSnapshot struct {
	ID         string    `json:"id"`
	SupplierID string    `json:"supplier_id"`
	ConfigHash string    `json:"config_hash"`
	FinalScore float64   `json:"final_score"`
	Payload    []byte    `json:"payload"`
	ScoredAt   time.Time `json:"scored_at"`
}
