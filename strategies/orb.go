package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
)

const defaultORBFraction = 0.15

// ORB is an opening range breakout day trader. The bar stamped at the session
// start sets the range; the next bar closing outside it enters in that
// direction with the opposite side of the range as stop. Any position is
// closed on the first bar of the next day.
type ORB struct {
	backtest.BaseStrategy

	SessionHour   int
	SessionMinute int
	// EquityFraction sizes each day's entry.
	EquityFraction float64

	day       string
	stage     orbStage
	high, low float64
	triggered bool
	stop      float64
}

type orbStage int

const (
	orbWaitRange orbStage = iota
	orbWaitTrigger
	orbManage
)

func (s *ORB) OnStart(backtest.Context) {
	s.day = ""
	s.resetDay()
}

func (s *ORB) resetDay() {
	s.stage = orbWaitRange
	s.high, s.low = 0, 0
	s.triggered = false
	s.stop = 0
}

func (s *ORB) OnBar(bar market.Bar, ctx backtest.Context) {
	day := market.Date(bar.Timestamp)
	if day == "" || bar.Close <= 0 {
		return
	}
	pos := ctx.Position()

	if day != s.day {
		switch {
		case pos > 0:
			ctx.PlaceOrder(market.Short, whole(pos))
		case pos < 0:
			ctx.PlaceOrder(market.Long, whole(pos))
		}
		s.day = day
		s.resetDay()
	}

	switch s.stage {
	case orbWaitRange:
		// Date-only series: the first bar of each day is the range bar.
		h, m, hasClock := market.ClockTime(bar.Timestamp)
		if !hasClock || (h == s.SessionHour && m == s.SessionMinute) {
			s.high, s.low = bar.High, bar.Low
			s.stage = orbWaitTrigger
		}

	case orbWaitTrigger:
		if !s.triggered && pos == 0 {
			qty := units(ctx.Equity(), bar.Close, s.EquityFraction)
			switch {
			case bar.Close > s.high:
				ctx.PlaceOrder(market.Long, qty)
				s.stop = s.low
				s.triggered = true
			case bar.Close < s.low:
				ctx.PlaceOrder(market.Short, qty)
				s.stop = s.high
				s.triggered = true
			}
		}
		s.stage = orbManage

	case orbManage:
		if s.stop == 0 {
			return
		}
		if pos > 0 && bar.Low <= s.stop {
			ctx.PlaceOrder(market.Short, whole(pos))
			s.stop = 0
		} else if pos < 0 && bar.High >= s.stop {
			ctx.PlaceOrder(market.Long, whole(pos))
			s.stop = 0
		}
	}
}

func newORB(p Params) (backtest.Strategy, string, error) {
	r := p.reader()
	s := &ORB{
		SessionHour:    r.Int("session_hour", 9),
		SessionMinute:  r.Int("session_minute", 30),
		EquityFraction: defaultORBFraction,
	}
	// size only overrides the default when it reads as a fraction of equity
	if size := r.Float("size", 0); size >= 0.01 && size < 1 {
		s.EquityFraction = size
	}
	r.check(s.SessionHour >= 0 && s.SessionHour <= 23, "session_hour must be 0-23")
	r.check(s.SessionMinute >= 0 && s.SessionMinute <= 59, "session_minute must be 0-59")
	if r.err != nil {
		return nil, "", r.err
	}

	desc := fmt.Sprintf("session=%d:%02d %d%% equity EOD exit",
		s.SessionHour, s.SessionMinute, int(s.EquityFraction*100))
	return s, desc, nil
}

func init() {
	Register("orb", 10, newORB)
}
