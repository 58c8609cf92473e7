// Package telemetry collects per-run counters with a private prometheus
// registry. Backtests are batch jobs, so metrics are written to a node
// exporter textfile instead of being served.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "backtest"

// Collector is safe to use as a nil pointer; every method is then a no-op.
type Collector struct {
	reg *prometheus.Registry

	bars         prometheus.Counter
	fills        prometheus.Counter
	tradesClosed prometheus.Counter
	earlyStops   *prometheus.CounterVec
	finalEquity  prometheus.Gauge
	maxDrawdown  prometheus.Gauge
}

// New registers the backtest metrics on a fresh registry.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		bars: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bars_processed_total",
			Help:      "Bars that completed a full engine cycle.",
		}),
		fills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Market orders filled at a bar open.",
		}),
		tradesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_closed_total",
			Help:      "Fills that reduced or closed a position.",
		}),
		earlyStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "early_stops_total",
			Help:      "Runs terminated before the last bar.",
		}, []string{"reason"}),
		finalEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "final_equity",
			Help:      "Account equity after the last processed bar.",
		}),
		maxDrawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_drawdown_percent",
			Help:      "Largest peak to trough equity decline of the run.",
		}),
	}

	c.reg.MustRegister(c.bars, c.fills, c.tradesClosed, c.earlyStops, c.finalEquity, c.maxDrawdown)
	return c
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.reg
}

func (c *Collector) ObserveBar() {
	if c == nil {
		return
	}
	c.bars.Inc()
}

// ObserveFill counts a fill; closed marks fills that realized P&L.
func (c *Collector) ObserveFill(closed bool) {
	if c == nil {
		return
	}
	c.fills.Inc()
	if closed {
		c.tradesClosed.Inc()
	}
}

func (c *Collector) ObserveStop(reason string) {
	if c == nil {
		return
	}
	c.earlyStops.WithLabelValues(reason).Inc()
}

// ObserveResult records the end-of-run gauges.
func (c *Collector) ObserveResult(finalEquity, maxDrawdownPct float64) {
	if c == nil {
		return
	}
	c.finalEquity.Set(finalEquity)
	c.maxDrawdown.Set(maxDrawdownPct)
}

// WriteTextfile writes all metrics in the text exposition format. The write
// goes through a temp file and rename so a scraper never sees a partial file.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("telemetry: write %s: %w", path, err)
	}
	return nil
}
