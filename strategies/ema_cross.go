package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// EMACross enters on a cross of a fast EMA over a slow one and exits on the
// opposite cross. Entries can be gated on trend strength: with a positive
// ADXThreshold a new position needs a ready ADX at or above the threshold,
// and RequireDI also needs the directional index to agree with the cross.
type EMACross struct {
	backtest.BaseStrategy

	Fast, Slow   int
	ADXPeriod    int
	ADXThreshold float64
	RequireDI    bool
	Size         float64

	fast, slow *indicators.RunningEMA
	adx        *indicators.ADX
	// prevRel is the last fast/slow relation: -1 below, +1 above, 0 unknown.
	prevRel int
}

func (s *EMACross) OnStart(backtest.Context) {
	s.fast, _ = indicators.NewRunningEMA(s.Fast)
	s.slow, _ = indicators.NewRunningEMA(s.Slow)
	s.adx, _ = indicators.NewADX(s.ADXPeriod)
	s.prevRel = 0
}

func (s *EMACross) OnBar(bar market.Bar, ctx backtest.Context) {
	if bar.Close <= 0 {
		return
	}
	fv := s.fast.Update(bar.Close)
	sv := s.slow.Update(bar.Close)
	s.adx.Update(bar)
	if !s.fast.Ready() || !s.slow.Ready() {
		return
	}

	rel := 0
	switch {
	case fv > sv:
		rel = 1
	case fv < sv:
		rel = -1
	}
	prev := s.prevRel
	if rel != 0 {
		s.prevRel = rel
	}
	if prev == 0 || rel == 0 || rel == prev {
		return
	}

	pos := ctx.Position()
	switch {
	case rel > 0 && pos < 0:
		ctx.PlaceOrder(market.Long, whole(pos))
	case rel < 0 && pos > 0:
		ctx.PlaceOrder(market.Short, whole(pos))
	case pos != 0:
	case rel > 0 && s.trending(market.Long):
		ctx.PlaceOrder(market.Long, units(ctx.Equity(), bar.Close, s.Size))
	case rel < 0 && s.trending(market.Short):
		ctx.PlaceOrder(market.Short, units(ctx.Equity(), bar.Close, s.Size))
	}
}

// trending reports whether the ADX gate allows an entry on side.
func (s *EMACross) trending(side market.Side) bool {
	if s.ADXThreshold <= 0 {
		return true
	}
	if !s.adx.Ready() || s.adx.Value() < s.ADXThreshold {
		return false
	}
	if !s.RequireDI {
		return true
	}
	if side == market.Long {
		return s.adx.PlusDI() > s.adx.MinusDI()
	}
	return s.adx.MinusDI() > s.adx.PlusDI()
}

func newEMACross(p Params) (backtest.Strategy, string, error) {
	r := p.reader()
	s := &EMACross{
		Fast:         r.Int("fast", 12),
		Slow:         r.Int("slow", 26),
		ADXPeriod:    r.Int("adx", 14),
		ADXThreshold: r.Float("adx_threshold", 20),
		RequireDI:    r.Bool("require_di", false),
		Size:         r.Float("size", 1.0),
	}
	r.check(s.Fast >= 1, "fast must be >= 1")
	r.check(s.Slow > s.Fast, "slow must be greater than fast")
	r.check(s.ADXPeriod >= 1, "adx must be >= 1")
	r.check(s.ADXThreshold >= 0 && s.ADXThreshold <= 100, "adx_threshold must be between 0 and 100")
	r.check(s.Size >= 0 && s.Size <= 10, "size must be between 0 and 10 (fraction of equity)")
	if r.err != nil {
		return nil, "", r.err
	}

	desc := fmt.Sprintf("fast=%d slow=%d size=%g", s.Fast, s.Slow, s.Size)
	if s.ADXThreshold > 0 {
		desc += fmt.Sprintf(" adx=%d@%g", s.ADXPeriod, s.ADXThreshold)
		if s.RequireDI {
			desc += " di"
		}
	}
	return s, desc, nil
}

func init() {
	Register("ema_cross", 26, newEMACross)
}
