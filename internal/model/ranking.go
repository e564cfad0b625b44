package model

import "time"

// Ranking is one supplier's position in an ordered snapshot.
// Rank is 1-based and gapless.
type Ranking struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RankingIDs returns the supplier IDs in ranking order.
func RankingIDs(r []Ranking) []string {
	ids := make([]string, len(r))
	for i := range r {
		ids[i] = r[i].ID
	}
	return ids
}

// ScenarioType identifies one of the four scenario transforms.
type ScenarioType string

const (
	ScenarioUtility     ScenarioType = "s1"
	ScenarioSensitivity ScenarioType = "s2"
	ScenarioMissingness ScenarioType = "s3"
	ScenarioAblation    ScenarioType = "s4"
)

// Valid reports whether t is a known scenario type.
func (t ScenarioType) Valid() bool {
	switch t {
	case ScenarioUtility, ScenarioSensitivity, ScenarioMissingness, ScenarioAblation:
		return true
	}
	return false
}

// ScenarioRun is a persisted scenario execution. Result is the
// JSON-encoded scenario result.
type ScenarioRun struct {
	ID         string       `json:"id"`
	Type       ScenarioType `json:"type"`
	ConfigHash string       `json:"config_hash"`
	Seed       uint64       `json:"seed"`
	Suppliers  int          `json:"suppliers"`
	Failures   int          `json:"failures"`
	Result     []byte       `json:"result"`
	CreatedAt  time.Time    `json:"created_at"`
}
