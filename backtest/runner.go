package backtest

import (
	"errors"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/rustyeddy/backtester/internal/telemetry"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

// Early stop reasons reported in Result.StopReason.
const (
	ReasonNoEquity    = "no more equity"
	ReasonMaxDrawdown = "max drawdown 100%"
)

var (
	ErrNoBars     = errors.New("backtest: no bars to process")
	ErrTooFewBars = errors.New("backtest: too few bars")
	ErrNoEngine   = errors.New("backtest: Engine is required")
	ErrNoStrategy = errors.New("backtest: Strategy is required")
	ErrAlreadyRun = errors.New("backtest: runner has already run")
)

type State int

const (
	NotStarted State = iota
	Running
	Completed
	StoppedEarly
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case StoppedEarly:
		return "stopped early"
	default:
		return "unknown"
	}
}

// Result is the outcome of one run.
type Result struct {
	State      State
	StopReason string

	// BarsProcessed counts bars whose close step ran, so it always equals
	// the length of the engine's equity curve.
	BarsProcessed int
	Bars          int

	PeakEquity     float64
	MaxDrawdownPct float64
	FinalEquity    float64
}

func (r Result) Completed() bool    { return r.State == Completed }
func (r Result) StoppedEarly() bool { return r.State == StoppedEarly }

// Runner drives an engine over a bar series with one strategy. A Runner runs
// once; build a new engine and runner for every run.
type Runner struct {
	Engine   *sim.Engine
	Bars     []market.Bar
	Strategy Strategy

	Logger  *zap.Logger
	Metrics *telemetry.Collector

	state State
}

// State reports where the runner is in its lifecycle.
func (r *Runner) State() State { return r.state }

// Run executes the bar loop. For every bar:
//  1. fill the pending order at the bar open
//  2. stop if equity marked at the open is gone, recording one last sample
//  3. give the strategy its turn
//  4. mark equity at the close
//  5. stop on insolvency or a 100% drawdown from the running peak
//
// OnEnd is called exactly once whichever way the loop ends.
func (r *Runner) Run() (Result, error) {
	if r.Engine == nil {
		return Result{}, ErrNoEngine
	}
	if r.Strategy == nil {
		return Result{}, ErrNoStrategy
	}
	if r.state != NotStarted {
		return Result{}, ErrAlreadyRun
	}
	if len(r.Bars) == 0 {
		return Result{}, ErrNoBars
	}

	log := logging.OrNop(r.Logger)
	engine := r.Engine
	ctx := newBarContext(engine, r.Bars)

	res := Result{
		Bars:       len(r.Bars),
		PeakEquity: engine.Config().InitialCash,
	}

	r.state = Running
	log.Info("backtest started",
		zap.Int("bars", len(r.Bars)),
		zap.Float64("cash", engine.Cash()),
	)
	r.Strategy.OnStart(ctx)

	for i, bar := range r.Bars {
		ctx.index = i
		if fill, ok := engine.ProcessOrders(bar); ok {
			r.Metrics.ObserveFill(fill.ClosedQty > 0)
			log.Debug("order filled",
				zap.Int("bar", i),
				zap.String("time", bar.Timestamp),
				zap.Stringer("side", fill.Side),
				zap.Float64("qty", fill.Quantity),
				zap.Float64("price", fill.Price),
				zap.Float64("realized", fill.RealizedPnL),
			)
		}

		if engine.EquityAt(bar.Open) <= 0 {
			engine.UpdateEquity(bar)
			res.BarsProcessed++
			r.Metrics.ObserveBar()
			res.track(engine.Equity())
			r.stop(&res, ReasonNoEquity)
			break
		}

		r.Strategy.OnBar(bar, ctx)

		engine.UpdateEquity(bar)
		res.BarsProcessed++
		r.Metrics.ObserveBar()

		equity := engine.Equity()
		drawdown := res.track(equity)

		if equity <= 0 {
			r.stop(&res, ReasonNoEquity)
			break
		}
		if drawdown >= 100 {
			r.stop(&res, ReasonMaxDrawdown)
			break
		}
	}

	if r.state == Running {
		r.state = Completed
	}
	res.State = r.state
	res.FinalEquity = engine.Equity()

	r.Strategy.OnEnd(ctx)

	r.Metrics.ObserveResult(res.FinalEquity, res.MaxDrawdownPct)
	log.Info("backtest finished",
		zap.Stringer("state", res.State),
		zap.Int("processed", res.BarsProcessed),
		zap.Float64("equity", res.FinalEquity),
		zap.Int("trades", len(engine.Trades())),
	)
	return res, nil
}

// track folds an equity sample into the running peak and the maximum
// drawdown, returning the sample's drawdown from the peak.
func (res *Result) track(equity float64) float64 {
	if equity > res.PeakEquity {
		res.PeakEquity = equity
	}
	drawdown := 100.0
	if res.PeakEquity > 0 {
		drawdown = (res.PeakEquity - equity) / res.PeakEquity * 100
	}
	if drawdown > res.MaxDrawdownPct {
		res.MaxDrawdownPct = drawdown
	}
	return drawdown
}

func (r *Runner) stop(res *Result, reason string) {
	r.state = StoppedEarly
	res.StopReason = reason
	r.Metrics.ObserveStop(reason)
	logging.OrNop(r.Logger).Warn("backtest stopped early",
		zap.String("reason", reason),
		zap.Int("bar", res.BarsProcessed-1),
		zap.Float64("equity", r.Engine.Equity()),
	)
}
