// Package journal persists finished backtest runs: a summary row per run, its
// closed trades and its equity curve.
package journal

import "errors"

// ErrNotFound is returned by lookups for a run that was never recorded.
var ErrNotFound = errors.New("journal: not found")

// TradeRecord is one closed trade of a run. Seq is its position in the run's
// trade log, starting at 0.
type TradeRecord struct {
	RunID      string  `json:"run_id"`
	Seq        int     `json:"seq"`
	EntryTime  string  `json:"entry_time"`
	ExitTime   string  `json:"exit_time"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	RealizedPL float64 `json:"realized_pl"`
	PnLPct     float64 `json:"pnl_pct"`
}

// EquitySnapshot is one sample of a run's equity curve.
type EquitySnapshot struct {
	RunID     string  `json:"run_id"`
	Index     int     `json:"index"`
	Timestamp string  `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

type Journal interface {
	RecordRun(BacktestRun) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRun(BacktestRun) error       { return nil }
func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
