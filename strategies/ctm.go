package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// ctmShortSlow is the slow SMA of the short side.
const ctmShortSlow = 333

// CTM trades the distance of price from three SMAs per side. The long
// distance is the smallest of price minus each long SMA, the short distance
// the largest of price minus each short SMA. Longs enter while the long
// distance is positive and exit when it crosses below zero; shorts mirror
// that. An optional Kalman-smoothed trailing trend filter gates entries.
type CTM struct {
	backtest.BaseStrategy

	Long  CTMSide
	Short CTMSide

	longFilter  *trendFilter
	shortFilter *trendFilter
	prevLong    float64
	prevShort   float64
	hasPrev     bool
}

// CTMSide configures one direction of CTM.
type CTMSide struct {
	Enabled   bool
	Fast      int
	Medium    int
	Slow      int
	CrossOnly bool
	EquityPct float64

	// KalmanTrend requires the trailing level to have advanced in the trade
	// direction on the entry bar.
	KalmanTrend bool
	KalmanGain  float64
	DistInit    float64
	DistMin     float64
	DistStep    float64
}

type trendFilter struct {
	kalman *indicators.Kalman
	loft   *indicators.Loft
}

func newTrendFilter(side CTMSide, start indicators.Trend) *trendFilter {
	if !side.KalmanTrend {
		return nil
	}
	return &trendFilter{
		kalman: indicators.NewKalman(side.KalmanGain),
		loft:   indicators.NewLoft(start, side.DistInit, side.DistMin, side.DistStep),
	}
}

// update returns whether the filter allows an entry in want's direction.
// A nil filter always allows.
func (f *trendFilter) update(price float64, want indicators.Trend) bool {
	if f == nil {
		return true
	}
	trend, moved := f.loft.Update(f.kalman.Update(price))
	return moved && trend == want
}

func (s *CTM) OnStart(backtest.Context) {
	s.longFilter = newTrendFilter(s.Long, indicators.Up)
	s.shortFilter = newTrendFilter(s.Short, indicators.Down)
	s.prevLong, s.prevShort = 0, 0
	s.hasPrev = false
}

func (s *CTM) warmup() int {
	return max(s.Long.Fast, s.Long.Medium, s.Long.Slow, s.Short.Fast, s.Short.Medium, s.Short.Slow)
}

func (s *CTM) OnBar(bar market.Bar, ctx backtest.Context) {
	price := bar.Close
	if price <= 0 {
		return
	}

	// the filters run from the first bar so they are warm when SMAs are
	longOK := s.longFilter.update(price, indicators.Up)
	shortOK := s.shortFilter.update(price, indicators.Down)

	n := ctx.BarIndex() + 1
	if n < s.warmup() {
		s.hasPrev = false
		return
	}

	bars := ctx.Bars()
	distLong := min(
		price-indicators.SMA(bars, n, s.Long.Fast),
		price-indicators.SMA(bars, n, s.Long.Medium),
		price-indicators.SMA(bars, n, s.Long.Slow),
	)
	distShort := max(
		price-indicators.SMA(bars, n, s.Short.Fast),
		price-indicators.SMA(bars, n, s.Short.Medium),
		price-indicators.SMA(bars, n, s.Short.Slow),
	)
	defer func() {
		s.prevLong, s.prevShort = distLong, distShort
		s.hasPrev = true
	}()

	pos := ctx.Position()

	closeLong := s.Long.Enabled && s.hasPrev && s.prevLong >= 0 && distLong < 0
	closeShort := s.Short.Enabled && s.hasPrev && s.prevShort <= 0 && distShort > 0
	if closeLong && pos > 0 {
		ctx.PlaceOrder(market.Short, whole(pos))
		return
	}
	if closeShort && pos < 0 {
		ctx.PlaceOrder(market.Long, whole(pos))
		return
	}
	if pos != 0 {
		return
	}

	enterLong := false
	if s.Long.Enabled {
		if s.Long.CrossOnly {
			enterLong = s.hasPrev && s.prevLong <= 0 && distLong > 0
		} else {
			enterLong = distLong > 0
		}
		enterLong = enterLong && longOK
	}
	enterShort := false
	if s.Short.Enabled {
		if s.Short.CrossOnly {
			enterShort = s.hasPrev && s.prevShort >= 0 && distShort < 0
		} else {
			enterShort = distShort < 0
		}
		enterShort = enterShort && shortOK
	}

	switch {
	case enterLong:
		ctx.PlaceOrder(market.Long, units(ctx.Equity(), price, s.Long.EquityPct))
	case enterShort:
		ctx.PlaceOrder(market.Short, units(ctx.Equity(), price, s.Short.EquityPct))
	}
}

func defaultCTMSide(fast, slow int) CTMSide {
	return CTMSide{
		Enabled:    true,
		Fast:       fast,
		Medium:     fast,
		Slow:       slow,
		EquityPct:  1.0,
		KalmanGain: 2400,
		DistInit:   0.7,
		DistMin:    1.2,
		DistStep:   0.001,
	}
}

func newCTM(p Params) (backtest.Strategy, string, error) {
	r := p.reader()
	fast := r.Int("fast", 9)
	slow := r.Int("slow", 21)
	shortSlow := r.Int("short_slow", ctmShortSlow)

	s := &CTM{
		Long:  defaultCTMSide(fast, slow),
		Short: defaultCTMSide(fast, shortSlow),
	}
	s.Long.Enabled = r.Bool("long", true)
	s.Short.Enabled = r.Bool("short", true)
	s.Long.CrossOnly = r.Bool("long_cross_only", false)
	s.Short.CrossOnly = r.Bool("short_cross_only", false)
	s.Long.KalmanTrend = r.Bool("kalman_long", false)
	s.Short.KalmanTrend = r.Bool("kalman_short", false)
	if r.Bool("kalman", false) {
		s.Long.KalmanTrend, s.Short.KalmanTrend = true, true
	}

	r.check(fast >= 1, "fast must be >= 1")
	r.check(slow >= 1, "slow must be >= 1")
	r.check(shortSlow >= 1, "short_slow must be >= 1")
	if r.err != nil {
		return nil, "", r.err
	}

	desc := fmt.Sprintf("long=%d/%d short=%d/%d", s.Long.Fast, s.Long.Slow, s.Short.Fast, s.Short.Slow)
	if s.Long.KalmanTrend || s.Short.KalmanTrend {
		desc += " kalman=on"
	}
	return s, desc, nil
}

func init() {
	Register("ctm", ctmShortSlow, newCTM)
}
