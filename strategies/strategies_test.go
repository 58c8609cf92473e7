package strategies

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

type placed struct {
	side market.Side
	qty  float64
}

// fakeContext is a hand-driven backtest.Context.
type fakeContext struct {
	bars   []market.Bar
	index  int
	pos    float64
	equity float64
	orders []placed
}

func (c *fakeContext) PlaceOrder(side market.Side, qty float64) {
	c.orders = append(c.orders, placed{side, qty})
}
func (c *fakeContext) Position() float64  { return c.pos }
func (c *fakeContext) Equity() float64    { return c.equity }
func (c *fakeContext) Cash() float64      { return c.equity }
func (c *fakeContext) LastClose() float64 { return c.bars[c.index].Close }
func (c *fakeContext) BarIndex() int      { return c.index }
func (c *fakeContext) Bars() []market.Bar { return c.bars }

// feed drives s over bars, returning the orders placed per bar index.
func feed(s backtest.Strategy, ctx *fakeContext) map[int][]placed {
	out := make(map[int][]placed)
	s.OnStart(ctx)
	for i, b := range ctx.bars {
		ctx.index = i
		ctx.orders = nil
		s.OnBar(b, ctx)
		if len(ctx.orders) > 0 {
			out[i] = ctx.orders
		}
	}
	s.OnEnd(ctx)
	return out
}

func series(ts func(i int) string, closes ...float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Timestamp: ts(i), Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
	}
	return bars
}

func minutes(i int) string {
	return fmt.Sprintf("2024-01-02T%02d:%02d:00", 10+i/60, i%60)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"ctm", "ema_cross", "noop", "one_point_oh", "orb", "sma_crossover"}, Names())
	assert.True(t, Has(" SMA_Crossover "))
	assert.False(t, Has("martingale"))

	assert.Equal(t, 333, MinBars("ctm"))
	assert.Equal(t, 10, MinBars("orb"))
	assert.Equal(t, 21, MinBars("sma_crossover"))
	assert.Equal(t, DefaultMinBars, MinBars("unknown"))

	_, _, err := New("martingale", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown strategy "martingale"`)
	assert.Contains(t, err.Error(), "sma_crossover")
}

func TestNewDescriptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params Params
		desc   string
	}{
		{"sma_crossover", nil, "fast=9 slow=21 size=1"},
		{"sma_crossover", Params{"fast": "5", "SLOW": 30, "size": 0.5}, "fast=5 slow=30 size=0.5"},
		{"orb", nil, "session=9:30 15% equity EOD exit"},
		{"orb", Params{"session_hour": 14, "session_minute": 0, "size": 0.2}, "session=14:00 20% equity EOD exit"},
		{"orb", Params{"size": 1.0}, "session=9:30 15% equity EOD exit"},
		{"one_point_oh", nil, "lookback=20 stop_lookback=20 fraction=0.15 rr=3"},
		{"ctm", nil, "long=9/21 short=9/333"},
		{"ctm", Params{"kalman": true, "fast": 22, "slow": 70}, "long=22/70 short=22/333 kalman=on"},
		{"ema_cross", nil, "fast=12 slow=26 size=1 adx=14@20"},
		{"ema_cross", Params{"adx_threshold": 25, "require_di": "true"}, "fast=12 slow=26 size=1 adx=14@25 di"},
		{"ema_cross", Params{"adx_threshold": 0, "fast": 5, "slow": 8}, "fast=5 slow=8 size=1"},
		{"noop", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.desc, func(t *testing.T) {
			s, desc, err := New(tt.name, tt.params)
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.Equal(t, tt.desc, desc)
		})
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params Params
		errMsg string
	}{
		{"sma_crossover", Params{"fast": 0}, "fast must be >= 1"},
		{"sma_crossover", Params{"slow": -1}, "slow must be >= 1"},
		{"sma_crossover", Params{"size": 11}, "size must be between 0 and 10"},
		{"sma_crossover", Params{"fast": "nine"}, `invalid value for fast: "nine" (expected integer)`},
		{"orb", Params{"session_hour": 24}, "session_hour must be 0-23"},
		{"orb", Params{"session_minute": 60}, "session_minute must be 0-59"},
		{"one_point_oh", Params{"lookback": 1}, "lookback must be >= 2"},
		{"ctm", Params{"kalman": "maybe"}, "expected boolean"},
		{"ema_cross", Params{"fast": 26}, "slow must be greater than fast"},
		{"ema_cross", Params{"adx": 0}, "adx must be >= 1"},
		{"ema_cross", Params{"adx_threshold": 101}, "adx_threshold must be between 0 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.errMsg, func(t *testing.T) {
			_, _, err := New(tt.name, tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Contains(t, err.Error(), tt.name+": ")
		})
	}
}

func TestSMACrossoverSignals(t *testing.T) {
	t.Parallel()

	// falling then rising closes
	closes := []float64{10, 9, 8, 7, 6, 7, 9, 11, 13}
	ctx := &fakeContext{bars: series(minutes, closes...), equity: 1000}
	s := &SMACrossover{Fast: 2, Slow: 3, Size: 0.5}

	orders := feed(s, ctx)

	// bar 2 is the first with enough history: fast 8.5 < slow 9, flat -> short
	require.Contains(t, orders, 2)
	assert.Equal(t, []placed{{market.Short, 62}}, orders[2], "floor(1000/8*0.5)")
	// flat the whole time in the fake, so every bar with a signal enters
	assert.NotContains(t, orders, 0)
	assert.NotContains(t, orders, 1)
}

func TestSMACrossoverExitsOnOppositeSignal(t *testing.T) {
	t.Parallel()

	closes := []float64{10, 11, 12, 11, 9}
	ctx := &fakeContext{bars: series(minutes, closes...), equity: 1000, pos: 7.6}
	s := &SMACrossover{Fast: 2, Slow: 3, Size: 1}

	orders := feed(s, ctx)

	assert.NotContains(t, orders, 2, "fast above slow while long: hold")
	require.Contains(t, orders, 4)
	assert.Equal(t, []placed{{market.Short, 7}}, orders[4], "exit with whole units")
}

func TestSMACrossoverMinimumOneUnit(t *testing.T) {
	t.Parallel()

	ctx := &fakeContext{bars: series(minutes, 100, 101, 102), equity: 10}
	orders := feed(&SMACrossover{Fast: 1, Slow: 2, Size: 0.1}, ctx)
	assert.Equal(t, []placed{{market.Long, 1}}, orders[1])
}

func orbDay(day string, bars ...[4]float64) []market.Bar {
	clock := []string{"09:15", "09:30", "09:45", "10:00", "10:15", "10:30"}
	out := make([]market.Bar, len(bars))
	for i, b := range bars {
		out[i] = market.Bar{Timestamp: day + "T" + clock[i] + ":00", Open: b[0], High: b[1], Low: b[2], Close: b[3]}
	}
	return out
}

func TestORBLongBreakout(t *testing.T) {
	t.Parallel()

	bars := orbDay("2024-01-02",
		[4]float64{99, 100, 98, 99},    // pre-session
		[4]float64{100, 102, 99, 101},  // range 99..102
		[4]float64{101, 104, 101, 103}, // close above high: long
		[4]float64{103, 105, 102, 104}, // hold
		[4]float64{104, 104, 98.5, 99}, // low through stop 99
		[4]float64{99, 100, 98, 99.5},
	)
	ctx := &fakeContext{bars: bars, equity: 10000}
	s, _, err := New("orb", nil)
	require.NoError(t, err)

	s.OnStart(ctx)
	var got []placed
	for i, b := range bars {
		ctx.index = i
		ctx.orders = nil
		if i >= 3 {
			ctx.pos = 14
		}
		s.OnBar(b, ctx)
		got = append(got, ctx.orders...)
	}

	require.Len(t, got, 2)
	assert.Equal(t, placed{market.Long, 14}, got[0], "floor(10000/103*0.15)")
	assert.Equal(t, placed{market.Short, 14}, got[1])
}

func TestORBShortAndNewDayExit(t *testing.T) {
	t.Parallel()

	day1 := orbDay("2024-01-02",
		[4]float64{100, 101, 99, 100},
		[4]float64{100, 102, 99, 101},
		[4]float64{100, 100, 97, 98},
	)
	day2 := orbDay("2024-01-03",
		[4]float64{98, 99, 97, 98},
	)
	bars := append(day1, day2...)

	ctx := &fakeContext{bars: bars, equity: 1000}
	s := &ORB{SessionHour: 9, SessionMinute: 30, EquityFraction: 0.5}

	s.OnStart(ctx)
	var got []placed
	for i, b := range bars {
		ctx.index = i
		ctx.orders = nil
		if i == 3 {
			ctx.pos = -5
		}
		s.OnBar(b, ctx)
		got = append(got, ctx.orders...)
	}

	require.Len(t, got, 2)
	assert.Equal(t, placed{market.Short, 5}, got[0], "floor(1000/98*0.5)")
	assert.Equal(t, placed{market.Long, 5}, got[1], "closed on the next day's first bar")
}

func TestORBDateOnlySeries(t *testing.T) {
	t.Parallel()

	day := func(i int) string { return fmt.Sprintf("2024-01-%02d", i+2) }
	bars := series(day, 10, 11, 12)
	ctx := &fakeContext{bars: bars, equity: 100}

	// each date-only bar is its own day, so a range never gets a trigger bar
	orders := feed(&ORB{SessionHour: 9, SessionMinute: 30, EquityFraction: 0.15}, ctx)
	assert.Empty(t, orders)
}

func TestOnePointOhLongBreak(t *testing.T) {
	t.Parallel()

	// highs in the window fall 24, 22, 20, 21; the last close breaks the line
	bars := []market.Bar{
		{Timestamp: "t0", Open: 25, High: 26, Low: 23, Close: 24},
		{Timestamp: "t1", Open: 24, High: 24, Low: 21, Close: 22},
		{Timestamp: "t2", Open: 22, High: 22, Low: 19, Close: 20},
		{Timestamp: "t3", Open: 20, High: 20, Low: 17, Close: 18},
		{Timestamp: "t4", Open: 18, High: 21, Low: 18, Close: 20.5},
	}
	ctx := &fakeContext{bars: bars, equity: 1000}
	s := &OnePointOh{Lookback: 4, StopLookback: 3, Fraction: 0.5, RiskReward: 2}

	orders := feed(s, ctx)

	require.Len(t, orders, 1)
	require.Contains(t, orders, 4)
	assert.Equal(t, []placed{{market.Long, 24}}, orders[4], "trunc(1000*0.5/20.5)")
	assert.True(t, s.inPosition)
	assert.True(t, s.long)
	assert.Equal(t, 17.0, s.stop, "lowest low of the 3 bars before entry")
	assert.InDelta(t, 27.5, s.target, 1e-9)
}

func TestOnePointOhExitAtStop(t *testing.T) {
	t.Parallel()

	s := &OnePointOh{Lookback: 4, StopLookback: 3, Fraction: 0.5, RiskReward: 2}
	s.inPosition, s.long, s.stop, s.target = true, true, 15, 33

	ctx := &fakeContext{
		bars:   []market.Bar{{Timestamp: "t", Open: 16, High: 17, Low: 14, Close: 16}},
		pos:    23,
		equity: 1000,
	}
	s.OnBar(ctx.bars[0], ctx)

	assert.Equal(t, []placed{{market.Short, 23}}, ctx.orders)
	assert.False(t, s.inPosition)
}

func TestCTMEntersAndExits(t *testing.T) {
	t.Parallel()

	s := &CTM{
		Long:  defaultCTMSide(2, 3),
		Short: defaultCTMSide(2, 3),
	}
	closes := []float64{10, 10, 10, 12, 14, 9}
	ctx := &fakeContext{bars: series(minutes, closes...), equity: 100}

	s.OnStart(ctx)
	var got []placed
	for i, b := range ctx.bars {
		ctx.index = i
		ctx.orders = nil
		if i == 5 {
			ctx.pos = 8
		}
		s.OnBar(b, ctx)
		got = append(got, ctx.orders...)
	}

	// bar 3: price 12 is above every SMA -> long floor(100/12)
	// bar 4: still flat in the fake -> long floor(100/14)
	// bar 5: long distance crosses below zero while long -> exit
	require.Len(t, got, 3)
	assert.Equal(t, placed{market.Long, 8}, got[0])
	assert.Equal(t, placed{market.Long, 7}, got[1])
	assert.Equal(t, placed{market.Short, 8}, got[2])
}

func TestEMACrossSignals(t *testing.T) {
	t.Parallel()

	// flat, dip (baseline below), rally (cross up), drop (cross down)
	bars := series(minutes, 10, 10, 10, 8, 12, 6)
	newCross := func(t *testing.T, p Params) backtest.Strategy {
		s, _, err := New("ema_cross", p)
		require.NoError(t, err)
		return s
	}

	t.Run("ungated entries", func(t *testing.T) {
		t.Parallel()

		got := feed(newCross(t, Params{"fast": 2, "slow": 3, "adx_threshold": 0}), &fakeContext{bars: bars, equity: 1000})
		assert.Equal(t, map[int][]placed{
			4: {{market.Long, 83}},
			5: {{market.Short, 166}},
		}, got)
	})

	t.Run("opposite cross exits", func(t *testing.T) {
		t.Parallel()

		got := feed(newCross(t, Params{"fast": 2, "slow": 3, "adx_threshold": 0}), &fakeContext{bars: bars, equity: 1000, pos: 83})
		assert.Equal(t, map[int][]placed{5: {{market.Short, 83}}}, got)
	})

	t.Run("adx gate blocks entries until ready", func(t *testing.T) {
		t.Parallel()

		got := feed(newCross(t, Params{"fast": 2, "slow": 3}), &fakeContext{bars: bars, equity: 1000})
		assert.Empty(t, got)
	})
}

func TestStrategiesRunOnEngine(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 400)
	for i := range closes {
		// slow wave so every strategy sees crossings
		closes[i] = 100 + 10*float64((i/25)%2) + float64(i%25)*0.4
	}
	bars := series(minutes, closes...)

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s, _, err := New(name, nil)
			require.NoError(t, err)

			engine := sim.NewEngine(sim.Config{InitialCash: 100000})
			r := &backtest.Runner{Engine: engine, Bars: bars, Strategy: s}
			res, err := r.Run()
			require.NoError(t, err)
			assert.Equal(t, res.BarsProcessed, len(engine.EquityCurve()))
			assert.False(t, res.StoppedEarly())
		})
	}
}
