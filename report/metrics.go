// Package report turns a finished run into metrics, console summaries and
// report files.
package report

import (
	"math"

	"github.com/rustyeddy/backtester/sim"
)

// TradingDaysPerYear annualizes the per-bar Sharpe ratio.
const TradingDaysPerYear = 252.0

const positionEpsilon = 1e-9

// Source is the read-only view of an engine a report needs. *sim.Engine
// satisfies it.
type Source interface {
	Trades() []sim.Trade
	EquityCurve() []float64
	Position() float64
	AvgEntryPrice() float64
	LastClose() float64
	Equity() float64
}

type Metrics struct {
	InitialEquity  float64 `json:"initial_equity"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`

	NumTrades     int     `json:"num_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRatePct    float64 `json:"win_rate_pct"`
	AvgTradePnL   float64 `json:"avg_trade_pnl"`
	// ProfitFactor is gross profit over gross loss; 0 without losing trades.
	ProfitFactor float64 `json:"profit_factor"`

	OpenPosition  float64 `json:"open_position"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// HasOpenPosition reports whether the run ended with exposure.
func (m Metrics) HasOpenPosition() bool {
	return math.Abs(m.OpenPosition) >= positionEpsilon
}

// Compute derives the metrics of a run that started with initialCash.
func Compute(src Source, initialCash float64) Metrics {
	m := Metrics{
		InitialEquity: initialCash,
		FinalEquity:   src.Equity(),
	}
	if initialCash != 0 {
		m.TotalReturnPct = (m.FinalEquity - initialCash) / initialCash * 100
	}

	curve := src.EquityCurve()
	m.MaxDrawdownPct = MaxDrawdown(curve)
	m.Sharpe = Sharpe(curve)

	var total, grossWin, grossLoss float64
	trades := src.Trades()
	for _, t := range trades {
		total += t.PnL
		switch {
		case t.PnL > 0:
			m.WinningTrades++
			grossWin += t.PnL
		case t.PnL < 0:
			m.LosingTrades++
			grossLoss -= t.PnL
		}
	}
	m.NumTrades = len(trades)
	if m.NumTrades > 0 {
		m.WinRatePct = 100 * float64(m.WinningTrades) / float64(m.NumTrades)
		m.AvgTradePnL = total / float64(m.NumTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	}

	m.OpenPosition = src.Position()
	if m.HasOpenPosition() && src.LastClose() > 0 {
		m.UnrealizedPnL = m.OpenPosition * (src.LastClose() - src.AvgEntryPrice())
	}
	return m
}

// MaxDrawdown returns the largest decline from the curve's running peak, in
// percent. The peak is seeded with the first sample.
func MaxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak, maxDD := curve[0], 0.0
	for _, eq := range curve {
		if eq > peak {
			peak = eq
		}
		if peak != 0 {
			if dd := (peak - eq) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Sharpe is the mean over the sample standard deviation of the per-sample
// returns, scaled by sqrt(252). It is 0 with fewer than two samples or no
// variance.
func Sharpe(curve []float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] != 0 {
			returns[i-1] = (curve[i] - curve[i-1]) / curve[i-1]
		}
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	if len(returns) < 2 {
		return 0
	}
	sq := 0.0
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}
