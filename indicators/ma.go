// Package indicators provides the technical indicators used by the bundled
// strategies. Slice functions take an end index so callers cannot read past
// the bar they are deciding on.
package indicators

import (
	"fmt"

	"github.com/rustyeddy/backtester/market"
)

// SMA returns the simple moving average of the closes of bars[end-period:end].
// It returns 0 when period is not positive or fewer than period bars precede end.
func SMA(bars []market.Bar, end, period int) float64 {
	if period <= 0 || end < period || end > len(bars) {
		return 0
	}
	sum := 0.0
	for i := end - period; i < end; i++ {
		sum += bars[i].Close
	}
	return sum / float64(period)
}

// EMA calculates the exponential moving average of the closes of bars[:end],
// seeded with the SMA of the first period bars.
func EMA(bars []market.Bar, end, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if end > len(bars) {
		end = len(bars)
	}
	if end < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, end)
	}

	multiplier := 2.0 / float64(period+1)

	ema := 0.0
	for i := 0; i < period; i++ {
		ema += bars[i].Close
	}
	ema /= float64(period)

	for i := period; i < end; i++ {
		ema = (bars[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}

// Lowest returns the minimum low of bars[start:end]; ok is false for an
// empty window.
func Lowest(bars []market.Bar, start, end int) (low float64, ok bool) {
	for i := max(start, 0); i < end && i < len(bars); i++ {
		if !ok || bars[i].Low < low {
			low, ok = bars[i].Low, true
		}
	}
	return low, ok
}

// Highest returns the maximum high of bars[start:end].
func Highest(bars []market.Bar, start, end int) (high float64, ok bool) {
	for i := max(start, 0); i < end && i < len(bars); i++ {
		if !ok || bars[i].High > high {
			high, ok = bars[i].High, true
		}
	}
	return high, ok
}
