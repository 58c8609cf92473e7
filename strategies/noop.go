package strategies

import (
	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
)

// Noop never trades. It is the baseline: equity stays at the initial cash.
type Noop struct {
	backtest.BaseStrategy
}

func (Noop) OnBar(market.Bar, backtest.Context) {}

func init() {
	Register("noop", 1, func(Params) (backtest.Strategy, string, error) {
		return Noop{}, "", nil
	})
}
