// Package export renders scores and scenario results as CSV and ZIP bundles.
package export

import (
	"math"

	"github.com/shopspring/decimal"
)

// Placeholder written for values that do not exist, such as a disabled
// risk penalty.
const notAvailable = "N/A"

// Decimal places for tables and scalar objectives.
const (
	tablePlaces     = 2
	objectivePlaces = 6
)

func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func fixedPtr(v *float64, places int32) string {
	if v == nil {
		return notAvailable
	}
	return fixed(*v, places)
}
