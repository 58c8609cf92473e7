package backtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rustyeddy/backtester/internal/telemetry"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

type order struct {
	side market.Side
	qty  float64
}

// scriptStrategy places the scripted order (if any) on each bar index and
// records what it observed.
type scriptStrategy struct {
	orders map[int]order

	starts  int
	ends     int
	seen     []int
	lastLen  int
	endPos   float64
	endIndex int
}

func (s *scriptStrategy) OnStart(ctx Context) { s.starts++ }

func (s *scriptStrategy) OnBar(bar market.Bar, ctx Context) {
	i := ctx.BarIndex()
	s.seen = append(s.seen, i)
	s.lastLen = len(History(ctx))
	if o, ok := s.orders[i]; ok {
		ctx.PlaceOrder(o.side, o.qty)
	}
}

func (s *scriptStrategy) OnEnd(ctx Context) {
	s.ends++
	s.endPos = ctx.Position()
	s.endIndex = ctx.BarIndex()
}

func flatBars(n int, price float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Timestamp: fmt.Sprintf("2024-01-02T10:%02d:00", i),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
		}
	}
	return bars
}

func TestRunnerValidation(t *testing.T) {
	t.Parallel()

	t.Run("missing engine", func(t *testing.T) {
		t.Parallel()

		r := &Runner{Bars: flatBars(1, 1), Strategy: &scriptStrategy{}}
		_, err := r.Run()
		require.ErrorIs(t, err, ErrNoEngine)
		assert.Equal(t, "backtest: Engine is required", err.Error())
	})

	t.Run("missing strategy", func(t *testing.T) {
		t.Parallel()

		r := &Runner{Engine: sim.NewEngine(sim.Config{InitialCash: 1}), Bars: flatBars(1, 1)}
		_, err := r.Run()
		require.ErrorIs(t, err, ErrNoStrategy)
	})

	t.Run("no bars", func(t *testing.T) {
		t.Parallel()

		engine := sim.NewEngine(sim.Config{InitialCash: 1000})
		strat := &scriptStrategy{}
		r := &Runner{Engine: engine, Strategy: strat}

		_, err := r.Run()
		require.ErrorIs(t, err, ErrNoBars)
		assert.Zero(t, strat.starts, "no callbacks on a failed run")
		assert.Empty(t, engine.EquityCurve())
		assert.Equal(t, NotStarted, r.State())
	})
}

func TestRunnerCompletes(t *testing.T) {
	t.Parallel()

	bars := flatBars(5, 100)
	engine := sim.NewEngine(sim.Config{InitialCash: 10000})
	strat := &scriptStrategy{}

	r := &Runner{Engine: engine, Bars: bars, Strategy: strat}
	res, err := r.Run()
	require.NoError(t, err)

	assert.True(t, res.Completed())
	assert.Equal(t, Completed, r.State())
	assert.Empty(t, res.StopReason)
	assert.Equal(t, 5, res.BarsProcessed)
	assert.Equal(t, 5, res.Bars)
	assert.Len(t, engine.EquityCurve(), 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, strat.seen)
	assert.Equal(t, 1, strat.starts)
	assert.Equal(t, 1, strat.ends)
	assert.Equal(t, 10000.0, res.FinalEquity)
	assert.Zero(t, res.MaxDrawdownPct)

	_, err = r.Run()
	require.ErrorIs(t, err, ErrAlreadyRun)
	assert.Equal(t, 1, strat.ends)
}

func TestRunnerFillsOnNextBarOpen(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Timestamp: "2024-01-02T10:00", Open: 100, High: 101, Low: 99, Close: 100},
		{Timestamp: "2024-01-02T10:01", Open: 102, High: 104, Low: 101, Close: 103},
		{Timestamp: "2024-01-02T10:02", Open: 105, High: 106, Low: 104, Close: 106},
	}
	engine := sim.NewEngine(sim.Config{InitialCash: 10000})
	strat := &scriptStrategy{orders: map[int]order{
		0: {market.Long, 10},
		1: {market.Short, 10},
	}}

	r := &Runner{Engine: engine, Bars: bars, Strategy: strat}
	res, err := r.Run()
	require.NoError(t, err)
	require.True(t, res.Completed())

	trades := engine.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 102.0, trades[0].EntryPrice, "bar 0 order fills at bar 1 open")
	assert.Equal(t, 105.0, trades[0].ExitPrice, "bar 1 order fills at bar 2 open")
	assert.InDelta(t, 30.0, trades[0].PnL, 1e-9)
	assert.Equal(t, "2024-01-02T10:02", trades[0].ExitTime)

	assert.Equal(t, []float64{10000, 10010, 10030}, engine.EquityCurve())
	assert.Equal(t, 3, strat.lastLen, "history is bounded to the current bar")
}

func TestRunnerLastBarOrderNeverFills(t *testing.T) {
	t.Parallel()

	engine := sim.NewEngine(sim.Config{InitialCash: 10000})
	strat := &scriptStrategy{orders: map[int]order{2: {market.Long, 1}}}

	r := &Runner{Engine: engine, Bars: flatBars(3, 50), Strategy: strat}
	_, err := r.Run()
	require.NoError(t, err)

	assert.Zero(t, strat.endPos)
	assert.True(t, engine.HasPendingOrder())
	assert.Equal(t, 10000.0, engine.Cash())
}

// Equity marked at the open goes to zero on bar 2: the run stops before the
// strategy sees bar 2 and records exactly one terminal sample.
func TestRunnerStopsWhenEquityGoneAtOpen(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Timestamp: "t0", Open: 100, High: 100, Low: 100, Close: 100},
		{Timestamp: "t1", Open: 100, High: 150, Low: 100, Close: 150},
		{Timestamp: "t2", Open: 200, High: 200, Low: 200, Close: 200},
		{Timestamp: "t3", Open: 90, High: 90, Low: 90, Close: 90},
	}
	engine := sim.NewEngine(sim.Config{InitialCash: 1000})
	strat := &scriptStrategy{orders: map[int]order{0: {market.Short, 10}}}

	core, logs := observer.New(zapcore.InfoLevel)
	metrics := telemetry.New()
	r := &Runner{Engine: engine, Bars: bars, Strategy: strat, Logger: zap.New(core), Metrics: metrics}
	res, err := r.Run()
	require.NoError(t, err)

	assert.True(t, res.StoppedEarly())
	assert.Equal(t, ReasonNoEquity, res.StopReason)
	assert.Equal(t, []int{0, 1}, strat.seen, "no strategy turn on the insolvent bar")
	assert.Equal(t, 1, strat.ends)
	assert.Equal(t, 2, strat.endIndex, "OnEnd sees the bar the run stopped on")
	assert.Equal(t, 3, res.BarsProcessed)

	curve := engine.EquityCurve()
	require.Len(t, curve, 3)
	assert.Equal(t, 500.0, curve[1])
	assert.Equal(t, 0.0, curve[2])
	assert.Equal(t, 0.0, res.FinalEquity)
	assert.InDelta(t, 100.0, res.MaxDrawdownPct, 1e-9, "terminal sample counts toward drawdown")
	assert.InDelta(t, res.MaxDrawdownPct, gaugeValue(t, metrics, "backtest_max_drawdown_percent"), 1e-9)
	assert.Zero(t, gaugeValue(t, metrics, "backtest_final_equity"))

	warn := logs.FilterMessage("backtest stopped early").All()
	require.Len(t, warn, 1)
	assert.Equal(t, ReasonNoEquity, warn[0].ContextMap()["reason"])
}

func gaugeValue(t *testing.T, c *telemetry.Collector, name string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestRunnerStopsWhenEquityGoneAtClose(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Timestamp: "t0", Open: 100, High: 100, Low: 100, Close: 100},
		{Timestamp: "t1", Open: 100, High: 250, Low: 100, Close: 250},
		{Timestamp: "t2", Open: 250, High: 250, Low: 250, Close: 250},
	}
	engine := sim.NewEngine(sim.Config{InitialCash: 1000})
	strat := &scriptStrategy{orders: map[int]order{0: {market.Short, 10}}}

	r := &Runner{Engine: engine, Bars: bars, Strategy: strat}
	res, err := r.Run()
	require.NoError(t, err)

	assert.True(t, res.StoppedEarly())
	assert.Equal(t, ReasonNoEquity, res.StopReason)
	assert.Equal(t, []int{0, 1}, strat.seen)
	assert.Equal(t, 2, res.BarsProcessed)
	assert.Equal(t, []float64{1000, -500}, engine.EquityCurve())
	assert.Equal(t, 1, strat.ends)
	assert.GreaterOrEqual(t, res.MaxDrawdownPct, 100.0)
}

func TestRunnerDrawdownTracksRunningPeak(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{Timestamp: "t0", Open: 100, Close: 100},
		{Timestamp: "t1", Open: 100, Close: 120},
		{Timestamp: "t2", Open: 120, Close: 90},
		{Timestamp: "t3", Open: 90, Close: 110},
	}
	engine := sim.NewEngine(sim.Config{InitialCash: 1000})
	strat := &scriptStrategy{orders: map[int]order{0: {market.Long, 10}}}

	r := &Runner{Engine: engine, Bars: bars, Strategy: strat}
	res, err := r.Run()
	require.NoError(t, err)
	require.True(t, res.Completed())

	// peak 1200 at t1, trough 900 at t2
	assert.Equal(t, 1200.0, res.PeakEquity)
	assert.InDelta(t, 25.0, res.MaxDrawdownPct, 1e-9)
}

func TestHistoryBounds(t *testing.T) {
	t.Parallel()

	bars := flatBars(4, 1)
	ctx := newBarContext(sim.NewEngine(sim.Config{}), bars)

	ctx.index = 0
	assert.Len(t, History(ctx), 1)
	assert.Len(t, ctx.Bars(), 4, "Bars is not truncated")

	ctx.index = 3
	assert.Len(t, History(ctx), 4)

	ctx.index = 10
	assert.Len(t, History(ctx), 4)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not started", NotStarted.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "stopped early", StoppedEarly.String())
	assert.Equal(t, "unknown", State(42).String())
}
