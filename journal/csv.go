package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// CSVJournal appends trades and equity samples to two CSV files. Run
// summaries are not kept; report.txt covers them for file-based output.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}

	j := &CSVJournal{csv.NewWriter(tf), csv.NewWriter(ef), tf, ef}

	if err := j.write(j.trades, []string{"run_id", "seq", "entry_time", "exit_time", "side", "quantity", "entry_price", "exit_price", "realized_pl", "pnl_pct"}); err != nil {
		j.Close()
		return nil, err
	}
	if err := j.write(j.equity, []string{"run_id", "index", "timestamp", "equity"}); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordRun(BacktestRun) error { return nil }

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.write(j.trades, []string{
		t.RunID,
		strconv.Itoa(t.Seq),
		t.EntryTime,
		t.ExitTime,
		t.Side,
		f(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.RealizedPL),
		f(t.PnLPct),
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.write(j.equity, []string{
		e.RunID,
		strconv.Itoa(e.Index),
		e.Timestamp,
		f(e.Equity),
	})
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	j.equity.Flush()
	terr := j.tf.Close()
	eerr := j.ef.Close()
	for _, err := range []error{j.trades.Error(), j.equity.Error(), terr, eerr} {
		if err != nil {
			return err
		}
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
