package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SummaryFile is the multi-symbol table written by Summary.WriteTable.
const SummaryFile = "all_symbols_summary.txt"

const ruleWidth = 76

// SymbolResult is one row of a multi-symbol summary.
type SymbolResult struct {
	Symbol     string
	Metrics    Metrics
	StopReason string
}

// Summary collects per-symbol results of one strategy, each run on its own
// account of InitialCash.
type Summary struct {
	Strategy    string
	Params      string
	InitialCash float64
	Results     []SymbolResult
}

func (s *Summary) Add(symbol string, r *Report) {
	s.Results = append(s.Results, SymbolResult{
		Symbol:     symbol,
		Metrics:    r.Metrics,
		StopReason: r.StopReason,
	})
}

// Combined aggregates every account: the return on the summed initial cash,
// the summed final equity and the total closed trades.
type Combined struct {
	Accounts     int
	InitialTotal float64
	FinalTotal   float64
	ReturnPct    float64
	Trades       int
}

func (s *Summary) Combined() Combined {
	c := Combined{
		Accounts:     len(s.Results),
		InitialTotal: s.InitialCash * float64(len(s.Results)),
	}
	pnl := 0.0
	for _, r := range s.Results {
		pnl += r.Metrics.FinalEquity - s.InitialCash
		c.Trades += r.Metrics.NumTrades
	}
	c.FinalTotal = c.InitialTotal + pnl
	if c.InitialTotal != 0 {
		c.ReturnPct = pnl / c.InitialTotal * 100
	}
	return c
}

func (s *Summary) writeRows(w io.Writer) Combined {
	rule := strings.Repeat("-", ruleWidth)
	fmt.Fprintf(w, "%10s%12s%10s%8s%14s%22s\n", "Symbol", "Return %", "MaxDD %", "Trades", "Final equity", "Stopped")
	fmt.Fprintln(w, rule)
	for _, r := range s.Results {
		stop := r.StopReason
		if stop == "" {
			stop = "-"
		}
		m := r.Metrics
		fmt.Fprintf(w, "%10s%12s%10s%8d%14s%22s\n",
			r.Symbol, f2(m.TotalReturnPct), f2(capped(m.MaxDrawdownPct)), m.NumTrades, f2(m.FinalEquity), stop)
	}
	fmt.Fprintln(w, rule)

	c := s.Combined()
	fmt.Fprintf(w, "%10s%12s%10s%8d%14s\n", "Combined", f2(c.ReturnPct), "", c.Trades, f2(c.FinalTotal))
	return c
}

// PrintTable writes the console table.
func (s *Summary) PrintTable(w io.Writer) {
	fmt.Fprint(w, "\n========== Backtest (all symbols) ==========\n")
	fmt.Fprintf(w, "Strategy: %s (%s)\n\n", s.Strategy, s.Params)
	c := s.writeRows(w)
	fmt.Fprintf(w, "  (Combined: %d accounts, %s initial total -> %s final total)\n",
		c.Accounts, fixed(c.InitialTotal, 0), fixed(c.FinalTotal, 0))
	fmt.Fprint(w, "============================================\n\n")
}

// WriteTable writes SummaryFile into dir, creating dir if needed, and
// returns the file's path.
func (s *Summary) WriteTable(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, SummaryFile)
	err := writeFile(path, func(w *bufio.Writer) error {
		fmt.Fprintf(w, "Backtest all symbols\nStrategy: %s (%s)\n\n", s.Strategy, s.Params)
		c := s.writeRows(w)
		_, err := fmt.Fprintf(w, "  (Combined: %d accounts, %s initial -> %s final)\n",
			c.Accounts, fixed(c.InitialTotal, 0), fixed(c.FinalTotal, 0))
		return err
	})
	return path, err
}
