package report

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// fixed formats v with exactly places decimals, rounding half away from
// zero the way a spreadsheet would rather than binary float rounding.
func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func f2(v float64) string { return fixed(v, 2) }

// capped clamps a drawdown for display; the raw metric can exceed 100% once
// equity goes negative.
func capped(pct float64) float64 { return math.Min(pct, 100) }
