package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

// File names written by WriteAll.
const (
	TradesFile      = "trades.csv"
	EquityCurveFile = "equity_curve.csv"
	ReportFile      = "report.txt"
	SessionFile     = "session.json"
)

// DefaultLabel names a session that has no symbol.
const DefaultLabel = "backtest"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Report is a finished run ready to be printed or written to disk.
type Report struct {
	Strategy   string
	Params     string
	StopReason string
	Metrics    Metrics

	bars   []market.Bar
	trades []sim.Trade
	curve  []float64
}

// New computes the metrics of src and captures its trades and equity curve.
func New(src Source, bars []market.Bar, initialCash float64) *Report {
	return &Report{
		Metrics: Compute(src, initialCash),
		bars:    bars,
		trades:  src.Trades(),
		curve:   src.EquityCurve(),
	}
}

// FromSession builds a report for a run made by a backtest.Backtester.
func FromSession(s *backtest.Session, strategy, params string) *Report {
	r := New(s.Engine, s.Bars, s.Engine.Config().InitialCash)
	r.Strategy = strategy
	r.Params = params
	r.StopReason = s.Result.StopReason
	return r
}

func (r *Report) Bars() []market.Bar     { return r.bars }
func (r *Report) Trades() []sim.Trade    { return r.trades }
func (r *Report) EquityCurve() []float64 { return r.curve }

func (r *Report) header() string {
	if r.Strategy == "" {
		return ""
	}
	if r.Params == "" {
		return "Strategy: " + r.Strategy
	}
	return fmt.Sprintf("Strategy: %s (%s)", r.Strategy, r.Params)
}

func (r *Report) writeMetrics(w io.Writer) {
	m := r.Metrics
	fmt.Fprintf(w, "Initial equity:  %s\n", f2(m.InitialEquity))
	fmt.Fprintf(w, "Final equity:   %s\n", f2(m.FinalEquity))
	fmt.Fprintf(w, "Total return:   %s%%\n", f2(m.TotalReturnPct))
	fmt.Fprintf(w, "Max drawdown:   %s%%\n", f2(capped(m.MaxDrawdownPct)))
	fmt.Fprintf(w, "Sharpe ratio:   %s\n", fixed(m.Sharpe, 3))
	fmt.Fprintf(w, "Closed trades:  %d\n", m.NumTrades)
	fmt.Fprintf(w, "Winning trades: %d\n", m.WinningTrades)
	fmt.Fprintf(w, "Win rate:       %s%%\n", f2(m.WinRatePct))
	fmt.Fprintf(w, "Avg trade P&L:  %s\n", f2(m.AvgTradePnL))
	if m.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit factor:  %s\n", f2(m.ProfitFactor))
	}
	if m.HasOpenPosition() {
		dir := "short"
		if m.OpenPosition > 0 {
			dir = "long"
		}
		fmt.Fprintf(w, "Open position:   %s (%s)\n", f2(m.OpenPosition), dir)
		fmt.Fprintf(w, "Unrealized P&L:  %s\n", f2(m.UnrealizedPnL))
	}
}

// PrintSummary writes the console summary of the run.
func (r *Report) PrintSummary(w io.Writer) {
	fmt.Fprint(w, "\n========== Backtest Report ==========\n")
	if r.StopReason != "" {
		fmt.Fprintf(w, "*** Backtest stopped: %s ***\n\n", r.StopReason)
	}
	if h := r.header(); h != "" {
		fmt.Fprintln(w, h)
	}
	fmt.Fprintf(w, "Bars loaded:   %d\n", len(r.bars))
	r.writeMetrics(w)
	fmt.Fprint(w, "======================================\n\n")
}

func writeFile(path string, fn func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return f.Close()
}

// quote always quotes s, doubling embedded quotes. Timestamps are quoted so
// spreadsheets keep them as text.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteTradeLog writes every closed trade as CSV with a UTF-8 BOM.
func (r *Report) WriteTradeLog(path string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		w.Write(utf8BOM)
		w.WriteString("entry_time,exit_time,side,quantity,entry_price,exit_price,pnl,pnl_pct\n")
		for _, t := range r.trades {
			_, err := fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%s\n",
				quote(t.EntryTime), quote(t.ExitTime), t.Side,
				f2(t.Quantity), f2(t.EntryPrice), f2(t.ExitPrice), f2(t.PnL), f2(t.PnLPct))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteEquityCurve writes one row per equity sample. Samples past the end of
// the bar series get an empty timestamp.
func (r *Report) WriteEquityCurve(path string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		w.Write(utf8BOM)
		w.WriteString("bar_index,timestamp,equity\n")
		for i, eq := range r.curve {
			ts := ""
			if i < len(r.bars) {
				ts = r.bars[i].Timestamp
			}
			if _, err := fmt.Fprintf(w, "%d,%s,%s\n", i, quote(ts), f2(eq)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteReport writes the plain text report.
func (r *Report) WriteReport(path string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		w.WriteString("Backtest Report\n================\n\n")
		if r.StopReason != "" {
			fmt.Fprintf(w, "*** Backtest stopped: %s ***\n\n", r.StopReason)
		}
		if h := r.header(); h != "" {
			fmt.Fprintf(w, "%s\n\n", h)
		}
		r.writeMetrics(w)
		return nil
	})
}

type sessionBar struct {
	T string      `json:"t"`
	O json.Number `json:"o"`
	H json.Number `json:"h"`
	L json.Number `json:"l"`
	C json.Number `json:"c"`
	V json.Number `json:"v,omitempty"`
}

type sessionTrade struct {
	EntryTime  string      `json:"entry_time"`
	ExitTime   string      `json:"exit_time"`
	Side       string      `json:"side"`
	EntryPrice json.Number `json:"entry_price"`
	ExitPrice  json.Number `json:"exit_price"`
	Quantity   json.Number `json:"quantity"`
	PnL        json.Number `json:"pnl"`
}

// Session is the document written to session.json for the chart viewer.
type Session struct {
	Symbol   string         `json:"symbol"`
	Strategy string         `json:"strategy"`
	Params   string         `json:"params"`
	Bars     []sessionBar   `json:"bars"`
	Trades   []sessionTrade `json:"trades"`
}

func num(v float64) json.Number { return json.Number(fixed(v, 4)) }

// Session assembles the viewer document. An empty label becomes
// DefaultLabel.
func (r *Report) Session(label string) Session {
	if label == "" {
		label = DefaultLabel
	}
	s := Session{
		Symbol:   label,
		Strategy: r.Strategy,
		Params:   r.Params,
		Bars:     make([]sessionBar, 0, len(r.bars)),
		Trades:   make([]sessionTrade, 0, len(r.trades)),
	}
	for _, b := range r.bars {
		sb := sessionBar{T: b.Timestamp, O: num(b.Open), H: num(b.High), L: num(b.Low), C: num(b.Close)}
		if b.Volume != 0 {
			sb.V = num(b.Volume)
		}
		s.Bars = append(s.Bars, sb)
	}
	for _, t := range r.trades {
		s.Trades = append(s.Trades, sessionTrade{
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			Side:       t.Side.String(),
			EntryPrice: num(t.EntryPrice),
			ExitPrice:  num(t.ExitPrice),
			Quantity:   num(t.Quantity),
			PnL:        num(t.PnL),
		})
	}
	return s
}

// WriteSessionJSON writes the bars and trades for the chart viewer.
func (r *Report) WriteSessionJSON(path, label string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.Session(label))
	})
}

// WriteAll creates dir and writes all four report files into it.
func (r *Report) WriteAll(dir, label string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: mkdir %s: %w", dir, err)
	}
	steps := []func() error{
		func() error { return r.WriteTradeLog(filepath.Join(dir, TradesFile)) },
		func() error { return r.WriteEquityCurve(filepath.Join(dir, EquityCurveFile)) },
		func() error { return r.WriteReport(filepath.Join(dir, ReportFile)) },
		func() error { return r.WriteSessionJSON(filepath.Join(dir, SessionFile), label) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
