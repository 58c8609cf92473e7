package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// OnePointOh trades trendline breaks. It fits least-squares lines to the
// last Lookback highs and lows. A close crossing up through a falling line
// of highs goes long; a close crossing down through a rising line of lows
// goes short. The stop is the swing extreme of the previous StopLookback
// bars and the target sits RiskReward times the risk away from the entry.
type OnePointOh struct {
	backtest.BaseStrategy

	Lookback     int
	StopLookback int
	Fraction     float64
	RiskReward   float64

	inPosition bool
	long       bool
	stop       float64
	target     float64
}

func (s *OnePointOh) OnStart(backtest.Context) {
	s.inPosition = false
	s.long = true
	s.stop, s.target = 0, 0
}

func (s *OnePointOh) OnBar(bar market.Bar, ctx backtest.Context) {
	if bar.Close <= 0 {
		return
	}

	if pos := ctx.Position(); s.inPosition && pos != 0 {
		qty := whole(pos)
		if qty <= 0 {
			s.inPosition = false
			return
		}
		// stop is checked before target
		if s.long && (bar.Low <= s.stop || bar.High >= s.target) {
			ctx.PlaceOrder(market.Short, qty)
			s.inPosition = false
			return
		}
		if !s.long && (bar.High >= s.stop || bar.Low <= s.target) {
			ctx.PlaceOrder(market.Long, qty)
			s.inPosition = false
			return
		}
	}

	i := ctx.BarIndex()
	if s.inPosition || i < s.Lookback || i < 1 {
		return
	}

	bars := ctx.Bars()
	window := bars[i-s.Lookback+1 : i+1]
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for k, b := range window {
		highs[k] = b.High
		lows[k] = b.Low
	}
	highLine := indicators.FitLine(highs)
	lowLine := indicators.FitLine(lows)

	prevX, currX := float64(s.Lookback-2), float64(s.Lookback-1)
	prevClose, last := bars[i-1].Close, bar.Close
	start := max(i-s.StopLookback, 0)

	if highLine.Slope < 0 && prevClose <= highLine.At(prevX) && last > highLine.At(currX) {
		stop, ok := indicators.Lowest(bars, start, i)
		if !ok || stop >= last {
			return
		}
		s.enter(ctx, market.Long, last, stop, last+s.RiskReward*(last-stop))
		return
	}

	if lowLine.Slope > 0 && prevClose >= lowLine.At(prevX) && last < lowLine.At(currX) {
		stop, ok := indicators.Highest(bars, start, i)
		if !ok || stop <= last {
			return
		}
		s.enter(ctx, market.Short, last, stop, last-s.RiskReward*(stop-last))
	}
}

func (s *OnePointOh) enter(ctx backtest.Context, side market.Side, entry, stop, target float64) {
	equity := ctx.Equity()
	if equity <= 0 || math.Abs(entry-stop) <= 0 {
		return
	}
	qty := math.Trunc(equity * s.Fraction / entry)
	if qty < 1 {
		qty = 1
	}

	ctx.PlaceOrder(side, qty)
	s.inPosition = true
	s.long = side == market.Long
	s.stop = stop
	s.target = target
}

func newOnePointOh(p Params) (backtest.Strategy, string, error) {
	r := p.reader()
	s := &OnePointOh{
		Lookback:     r.Int("lookback", 20),
		StopLookback: r.Int("stop_lookback", 20),
		Fraction:     r.Float("fraction", 0.15),
		RiskReward:   r.Float("rr", 3.0),
	}
	r.check(s.Lookback >= 2, "lookback must be >= 2")
	r.check(s.StopLookback >= 1, "stop_lookback must be >= 1")
	r.check(s.Fraction > 0 && s.Fraction <= 10, "fraction must be in (0, 10]")
	r.check(s.RiskReward > 0, "rr must be > 0")
	if r.err != nil {
		return nil, "", r.err
	}

	desc := fmt.Sprintf("lookback=%d stop_lookback=%d fraction=%g rr=%g",
		s.Lookback, s.StopLookback, s.Fraction, s.RiskReward)
	return s, desc, nil
}

func init() {
	Register("one_point_oh", 21, newOnePointOh)
}
