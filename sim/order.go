package sim

import "github.com/rustyeddy/backtester/market"

// OrderType selects the fill model. Only Market orders are filled by the
// engine; Limit is carried for callers that want to record intent.
type OrderType int8

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	if t == Limit {
		return "limit"
	}
	return "market"
}

// Order is the single pending order slot of the engine.
type Order struct {
	Side       market.Side
	Quantity   float64
	Type       OrderType
	LimitPrice float64 // unused by the market fill path
}

// Fill describes what one ProcessOrders call did.
type Fill struct {
	Timestamp  string
	Side       market.Side
	Quantity   float64
	Price      float64
	ClosedQty  float64
	OpenedQty  float64
	Commission float64

	// RealizedPnL is the net P&L of the closed portion (zero when the fill
	// only opened or added).
	RealizedPnL float64
}
