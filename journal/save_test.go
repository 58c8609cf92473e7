package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/report"
	"github.com/rustyeddy/backtester/sim"
)

type results struct {
	trades []sim.Trade
	curve  []float64
}

func (r results) Trades() []sim.Trade    { return r.trades }
func (r results) EquityCurve() []float64 { return r.curve }

var (
	_ Results = (*sim.Engine)(nil)
	_ Results = (*report.Report)(nil)
	_ Journal = Nop{}
	_ Journal = (*SQLite)(nil)
	_ Journal = (*CSVJournal)(nil)
)

// failing fails the named call and counts the rest.
type failing struct {
	Nop
	on     string
	trades int
	equity int
}

var errBoom = errors.New("boom")

func (f *failing) RecordRun(BacktestRun) error {
	if f.on == "run" {
		return errBoom
	}
	return nil
}

func (f *failing) RecordTrade(TradeRecord) error {
	f.trades++
	if f.on == "trade" {
		return errBoom
	}
	return nil
}

func (f *failing) RecordEquity(EquitySnapshot) error {
	f.equity++
	if f.on == "equity" {
		return errBoom
	}
	return nil
}

func sampleResults() (results, []market.Bar) {
	res := results{
		trades: []sim.Trade{
			{EntryTime: "t1", ExitTime: "t2", Side: market.Long, Quantity: 2, EntryPrice: 10, ExitPrice: 12, PnL: 4, PnLPct: 20},
			{EntryTime: "t2", ExitTime: "t3", Side: market.Short, Quantity: 2, EntryPrice: 12, ExitPrice: 13, PnL: -2, PnLPct: -8.33},
		},
		curve: []float64{100, 100, 104, 102},
	}
	bars := []market.Bar{{Timestamp: "t0"}, {Timestamp: "t1"}, {Timestamp: "t2"}}
	return res, bars
}

func TestSaveSQLite(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	res, bars := sampleResults()
	run := sampleRun("R1", nowUTC())
	require.NoError(t, Save(j, run, res, bars))

	ctx := context.Background()
	got, err := j.GetRun(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, run.Strategy, got.Strategy)

	trades, err := j.ListTradesByRunID(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, TradeRecord{
		RunID: "R1", Seq: 1, EntryTime: "t2", ExitTime: "t3", Side: "short",
		Quantity: 2, EntryPrice: 12, ExitPrice: 13, RealizedPL: -2, PnLPct: -8.33,
	}, trades[1])

	equity, err := j.ListEquityByRunID(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, equity, 4)
	assert.Equal(t, "t2", equity[2].Timestamp)
	assert.Empty(t, equity[3].Timestamp, "sample past the last bar")
	assert.Equal(t, 102.0, equity[3].Equity)
}

func TestSaveErrors(t *testing.T) {
	t.Parallel()

	res, bars := sampleResults()

	err := Save(Nop{}, BacktestRun{}, res, bars)
	assert.ErrorContains(t, err, "no RunID")

	tests := []struct {
		on         string
		wantTrades int
		wantEquity int
	}{
		{"run", 0, 0},
		{"trade", 1, 0},
		{"equity", 2, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.on, func(t *testing.T) {
			t.Parallel()

			j := &failing{on: tt.on}
			err := Save(j, BacktestRun{RunID: "R1"}, res, bars)
			require.ErrorIs(t, err, errBoom)
			assert.Equal(t, tt.wantTrades, j.trades)
			assert.Equal(t, tt.wantEquity, j.equity)
		})
	}
}

func TestApplyMetrics(t *testing.T) {
	t.Parallel()

	var run BacktestRun
	run.ApplyMetrics(report.Metrics{
		InitialEquity:  1000,
		FinalEquity:    1100,
		TotalReturnPct: 10,
		MaxDrawdownPct: 3,
		Sharpe:         1.5,
		NumTrades:      4,
		WinningTrades:  3,
		LosingTrades:   1,
		WinRatePct:     75,
		ProfitFactor:   2,
	})

	assert.Equal(t, 1100.0, run.FinalEquity)
	assert.Equal(t, 100.0, run.NetPL())
	assert.Equal(t, 3, run.Wins)
	assert.Equal(t, 1, run.Losses)
	assert.Equal(t, 75.0, run.WinRate)
	assert.Equal(t, 2.0, run.ProfitFactor)
}
