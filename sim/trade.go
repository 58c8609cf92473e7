package sim

import "github.com/rustyeddy/backtester/market"

// Trade is a closed (or partially closed) round trip. Side is the side of
// the position that was closed, not the side of the closing order.
type Trade struct {
	EntryTime  string      `json:"entry_time"`
	ExitTime   string      `json:"exit_time"`
	Side       market.Side `json:"side"`
	Quantity   float64     `json:"quantity"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	PnL        float64     `json:"pnl"` // net of commission
	PnLPct     float64     `json:"pnl_pct"`
}

// Win reports whether the trade made money after commission.
func (t Trade) Win() bool { return t.PnL > 0 }
