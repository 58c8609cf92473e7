package backtest

import (
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

// Strategy receives the run lifecycle callbacks. OnBar is called once per
// bar in order; orders it places fill at the next bar's open.
type Strategy interface {
	OnStart(ctx Context)
	OnBar(bar market.Bar, ctx Context)
	OnEnd(ctx Context)
}

// BaseStrategy provides no-op OnStart and OnEnd for embedding.
type BaseStrategy struct{}

func (BaseStrategy) OnStart(Context) {}
func (BaseStrategy) OnEnd(Context) {}

// Context is the capability surface a strategy sees during a run.
//
// Bars returns the whole loaded series. Strategies must not index past
// BarIndex; History returns the bounded prefix for callers that prefer it.
type Context interface {
	PlaceOrder(side market.Side, quantity float64)
	Position() float64
	Equity() float64
	Cash() float64
	LastClose() float64
	BarIndex() int
	Bars() []market.Bar
}

// barContext binds one engine and one bar series for a run.
type barContext struct {
	engine *sim.Engine
	bars   []market.Bar
	index  int
}

func newBarContext(engine *sim.Engine, bars []market.Bar) *barContext {
	return &barContext{engine: engine, bars: bars}
}

func (c *barContext) PlaceOrder(side market.Side, quantity float64) {
	c.engine.PlaceOrder(side, quantity)
}

func (c *barContext) Position() float64  { return c.engine.Position() }
func (c *barContext) Equity() float64    { return c.engine.Equity() }
func (c *barContext) Cash() float64      { return c.engine.Cash() }
func (c *barContext) LastClose() float64 { return c.engine.LastClose() }
func (c *barContext) BarIndex() int      { return c.index }
func (c *barContext) Bars() []market.Bar { return c.bars }

// History returns the bars up to and including the current index.
func History(ctx Context) []market.Bar {
	bars := ctx.Bars()
	end := ctx.BarIndex() + 1
	if end > len(bars) {
		end = len(bars)
	}
	if end < 0 {
		end = 0
	}
	return bars[:end:end]
}
