package journal

import (
	"fmt"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/report"
	"github.com/rustyeddy/backtester/sim"
)

// Results is what Save reads from a finished run. *report.Report and
// *sim.Engine both satisfy it.
type Results interface {
	Trades() []sim.Trade
	EquityCurve() []float64
}

// ApplyMetrics copies the computed metrics into the run row.
func (r *BacktestRun) ApplyMetrics(m report.Metrics) {
	r.InitialCash = m.InitialEquity
	r.FinalEquity = m.FinalEquity
	r.ReturnPct = m.TotalReturnPct
	r.MaxDDPct = m.MaxDrawdownPct
	r.Sharpe = m.Sharpe
	r.Trades = m.NumTrades
	r.Wins = m.WinningTrades
	r.Losses = m.LosingTrades
	r.WinRate = m.WinRatePct
	r.ProfitFactor = m.ProfitFactor
}

// Save records the run row, then every trade and equity sample under its
// RunID. It stops at the first error.
func Save(j Journal, run BacktestRun, res Results, bars []market.Bar) error {
	if run.RunID == "" {
		return fmt.Errorf("journal: run has no RunID")
	}
	if err := j.RecordRun(run); err != nil {
		return fmt.Errorf("journal: record run %s: %w", run.RunID, err)
	}
	for i, t := range res.Trades() {
		rec := TradeRecord{
			RunID:      run.RunID,
			Seq:        i,
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			Side:       t.Side.String(),
			Quantity:   t.Quantity,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			RealizedPL: t.PnL,
			PnLPct:     t.PnLPct,
		}
		if err := j.RecordTrade(rec); err != nil {
			return fmt.Errorf("journal: record trade %d: %w", i, err)
		}
	}
	for i, eq := range res.EquityCurve() {
		snap := EquitySnapshot{RunID: run.RunID, Index: i, Equity: eq}
		if i < len(bars) {
			snap.Timestamp = bars[i].Timestamp
		}
		if err := j.RecordEquity(snap); err != nil {
			return fmt.Errorf("journal: record equity %d: %w", i, err)
		}
	}
	return nil
}
