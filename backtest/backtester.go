package backtest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/rustyeddy/backtester/internal/telemetry"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

// BarSource produces an ascending bar series. market/data sources satisfy it.
type BarSource interface {
	Load(ctx context.Context) ([]market.Bar, error)
}

// Backtester owns loading: it pulls bars from a source, aggregates them to
// the requested resolution and runs a fresh engine over them.
type Backtester struct {
	Source     BarSource
	Resolution market.Resolution
	Config     sim.Config
	Strategy   Strategy

	// MinBars rejects a series shorter than the strategy's warmup. Zero
	// accepts any non-empty series.
	MinBars int

	Logger  *zap.Logger
	Metrics *telemetry.Collector
}

// Session is everything a finished run leaves behind for reporting.
type Session struct {
	Engine *sim.Engine
	Bars   []market.Bar
	Result Result
}

// Load returns the aggregated bars without running anything.
func (b *Backtester) Load(ctx context.Context) ([]market.Bar, error) {
	if b.Source == nil {
		return nil, fmt.Errorf("backtest: Source is required")
	}
	bars, err := b.Source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("backtest: load bars: %w", err)
	}
	bars = market.Aggregate(bars, b.Resolution)
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	if len(bars) < b.MinBars {
		return nil, fmt.Errorf("%w: only %d bars (need %d)", ErrTooFewBars, len(bars), b.MinBars)
	}
	return bars, nil
}

// Run loads the data and runs the strategy. A load failure returns an error
// and no session; the engine is only created once bars are available.
func (b *Backtester) Run(ctx context.Context) (*Session, error) {
	if b.Strategy == nil {
		return nil, ErrNoStrategy
	}
	bars, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}

	logging.OrNop(b.Logger).Debug("bars loaded",
		zap.Int("bars", len(bars)),
		zap.Stringer("resolution", b.Resolution),
		zap.String("first", bars[0].Timestamp),
		zap.String("last", bars[len(bars)-1].Timestamp),
	)

	engine := sim.NewEngine(b.Config)
	r := &Runner{
		Engine:   engine,
		Bars:     bars,
		Strategy: b.Strategy,
		Logger:   b.Logger,
		Metrics:  b.Metrics,
	}
	res, err := r.Run()
	if err != nil {
		return nil, err
	}
	return &Session{Engine: engine, Bars: bars, Result: res}, nil
}
