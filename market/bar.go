// Package market holds the bar model shared by data sources, the simulator
// and strategies, plus timestamp and timeframe helpers.
package market

import "sort"

// Bar is a single OHLCV sample. Timestamps are kept as strings so that the
// lexical order of the source matches the chronological order.
type Bar struct {
	Timestamp string  `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v,omitempty"`
}

// TypicalPrice is (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3.0
}

// SortBars sorts bars in place by timestamp. The sort is stable so bars that
// share a timestamp keep their source order.
func SortBars(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp < bars[j].Timestamp
	})
}
