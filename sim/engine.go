// Package sim is the execution and accounting engine of a backtest.
//
// The engine owns cash, a signed position with one average entry price, a
// single pending order slot, the closed-trade log and the equity curve. It
// is a plain state machine driven by (order, bar) pairs: orders placed while
// looking at bar N are filled by ProcessOrders at the open of bar N+1.
// An Engine is not safe for concurrent use; a backtest drives it from one
// goroutine.
package sim

import (
	"math"

	"github.com/rustyeddy/backtester/market"
)

// positionEpsilon snaps float residue to a flat position.
const positionEpsilon = 1e-9

// Config holds the account parameters of a run.
type Config struct {
	InitialCash float64 // starting cash and equity
	Commission  float64 // flat amount charged once per fill
	Slippage    float64 // adverse fraction of the open, e.g. 0.001 = 0.1%
}

type Engine struct {
	cfg Config

	cash      float64
	position  float64 // + long, - short
	avgEntry  float64
	equity    float64
	lastClose float64

	pending *Order

	trades      []Trade
	equityCurve []float64
	lastBarTime string
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		cash:   cfg.InitialCash,
		equity: cfg.InitialCash,
	}
}

// PlaceOrder stores a market order to be filled on the next bar. A
// non-positive quantity or a side other than Long or Short is ignored. Any order already pending is replaced,
// not queued.
func (e *Engine) PlaceOrder(side market.Side, quantity float64) {
	if quantity <= 0 || math.IsNaN(quantity) {
		return
	}
	if side != market.Long && side != market.Short {
		return
	}
	e.pending = &Order{
		Side:     side,
		Quantity: quantity,
		Type:     Market,
	}
}

// ProcessOrders fills the pending order, if any, at the bar's open adjusted
// for slippage. An order against the current position first closes up to
// |position| (recording a Trade); whatever is left opens or adds in the
// order's direction. Commission is charged once for the whole fill.
func (e *Engine) ProcessOrders(bar market.Bar) (Fill, bool) {
	if e.pending == nil {
		return Fill{}, false
	}
	order := *e.pending
	e.pending = nil

	side := order.Side
	qty := order.Quantity
	price := e.fillPrice(side, bar.Open)

	fill := Fill{
		Timestamp:  bar.Timestamp,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Commission: e.cfg.Commission,
	}

	// Cash moves by the signed notional of everything filled plus one
	// commission, whether the fill closes, opens or flips.
	e.cash -= side.Sign()*price*qty + e.cfg.Commission

	if e.opposes(side) {
		closeQty := math.Min(qty, math.Abs(e.position))
		e.closeQuantity(side, closeQty, price, bar.Timestamp, &fill)
		qty -= closeQty
	}

	if qty > 0 {
		e.openQuantity(side, qty, price)
		fill.OpenedQty = qty
	}

	e.lastBarTime = bar.Timestamp
	return fill, true
}

func (e *Engine) closeQuantity(side market.Side, closeQty, price float64, ts string, fill *Fill) {
	var gross float64
	if side == market.Long {
		// buying to cover a short
		gross = (e.avgEntry - price) * closeQty
	} else {
		gross = (price - e.avgEntry) * closeQty
	}
	net := gross - e.cfg.Commission

	closed := market.Long
	if e.position < 0 {
		closed = market.Short
	}

	t := Trade{
		EntryTime:  e.lastBarTime,
		ExitTime:   ts,
		Side:       closed,
		Quantity:   closeQty,
		EntryPrice: e.avgEntry,
		ExitPrice:  price,
		PnL:        net,
	}
	if t.EntryPrice != 0 {
		t.PnLPct = net / (t.EntryPrice * closeQty) * 100.0
	}
	e.trades = append(e.trades, t)

	e.position += side.Sign() * closeQty
	if math.Abs(e.position) < positionEpsilon {
		e.position = 0
		e.avgEntry = 0
	}

	fill.ClosedQty = closeQty
	fill.RealizedPnL = net
}

func (e *Engine) openQuantity(side market.Side, qty, price float64) {
	if e.position == 0 {
		e.avgEntry = price
		e.position = side.Sign() * qty
		return
	}
	held := math.Abs(e.position)
	e.avgEntry = (e.avgEntry*held + price*qty) / (held + qty)
	e.position += side.Sign() * qty
}

// UpdateEquity marks the position to the bar's close and appends the result
// to the equity curve. Call it exactly once per fully processed bar.
func (e *Engine) UpdateEquity(bar market.Bar) {
	e.lastClose = bar.Close
	e.equity = e.cash + e.position*bar.Close
	e.equityCurve = append(e.equityCurve, e.equity)
	e.lastBarTime = bar.Timestamp
}

// EquityAt is cash plus the position marked at price. It does not touch the
// recorded equity.
func (e *Engine) EquityAt(price float64) float64 {
	return e.cash + e.position*price
}

func (e *Engine) fillPrice(side market.Side, open float64) float64 {
	if side == market.Long {
		return open * (1 + e.cfg.Slippage)
	}
	return open * (1 - e.cfg.Slippage)
}

func (e *Engine) opposes(side market.Side) bool {
	return (side == market.Long && e.position < 0) ||
		(side == market.Short && e.position > 0)
}

func (e *Engine) Config() Config         { return e.cfg }
func (e *Engine) Position() float64      { return e.position }
func (e *Engine) Cash() float64          { return e.cash }
func (e *Engine) Equity() float64        { return e.equity }
func (e *Engine) LastClose() float64     { return e.lastClose }
func (e *Engine) AvgEntryPrice() float64 { return e.avgEntry }
func (e *Engine) LastBarTime() string    { return e.lastBarTime }
func (e *Engine) HasPendingOrder() bool  { return e.pending != nil }

// Pending returns a copy of the pending order.
func (e *Engine) Pending() (Order, bool) {
	if e.pending == nil {
		return Order{}, false
	}
	return *e.pending, true
}

// Trades returns a copy of the closed-trade log.
func (e *Engine) Trades() []Trade {
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// EquityCurve returns a copy of the per-bar equity samples.
func (e *Engine) EquityCurve() []float64 {
	out := make([]float64, len(e.equityCurve))
	copy(out, e.equityCurve)
	return out
}
