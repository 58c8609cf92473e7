package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// SMACrossover holds a position in the direction of the fast SMA relative to
// the slow one. An opposite signal closes the position; a new one is opened
// on a later bar once flat.
type SMACrossover struct {
	backtest.BaseStrategy

	Fast int
	Slow int
	// Size is the fraction of equity committed per entry.
	Size float64
}

func (s *SMACrossover) OnBar(bar market.Bar, ctx backtest.Context) {
	n := ctx.BarIndex() + 1
	if n < s.Slow || bar.Close <= 0 {
		return
	}

	bars := ctx.Bars()
	fast := indicators.SMA(bars, n, s.Fast)
	slow := indicators.SMA(bars, n, s.Slow)
	pos := ctx.Position()

	switch {
	case pos > 0 && fast < slow:
		ctx.PlaceOrder(market.Short, whole(pos))
		return
	case pos < 0 && fast > slow:
		ctx.PlaceOrder(market.Long, whole(pos))
		return
	case pos != 0:
		return
	}

	qty := units(ctx.Equity(), bar.Close, s.Size)
	if fast > slow {
		ctx.PlaceOrder(market.Long, qty)
	} else if fast < slow {
		ctx.PlaceOrder(market.Short, qty)
	}
}

func newSMACrossover(p Params) (backtest.Strategy, string, error) {
	r := p.reader()
	s := &SMACrossover{
		Fast: r.Int("fast", 9),
		Slow: r.Int("slow", 21),
		Size: r.Float("size", 1.0),
	}
	r.check(s.Fast >= 1, "fast must be >= 1")
	r.check(s.Slow >= 1, "slow must be >= 1")
	r.check(s.Size >= 0 && s.Size <= 10, "size must be between 0 and 10 (fraction of equity)")
	if r.err != nil {
		return nil, "", r.err
	}
	return s, fmt.Sprintf("fast=%d slow=%d size=%g", s.Fast, s.Slow, s.Size), nil
}

func init() {
	Register("sma_crossover", 21, newSMACrossover)
}
