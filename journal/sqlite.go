package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordRun(r BacktestRun) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, created, strategy, params, dataset, symbol, resolution, bars,
		 initial_cash, final_equity, return_pct, max_dd_pct, sharpe,
		 trades, wins, losses, win_rate, profit_factor, stop_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Strategy, r.Params, r.Dataset, r.Symbol, r.Resolution, r.Bars,
		r.InitialCash, r.FinalEquity, r.ReturnPct, r.MaxDDPct, r.Sharpe,
		r.Trades, r.Wins, r.Losses, r.WinRate, r.ProfitFactor, r.StopReason,
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, seq, entry_time, exit_time, side, quantity, entry_price, exit_price, realized_pl, pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Seq, t.EntryTime, t.ExitTime, t.Side,
		t.Quantity, t.EntryPrice, t.ExitPrice, t.RealizedPL, t.PnLPct,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, idx, timestamp, equity)
		VALUES (?, ?, ?, ?)`,
		e.RunID, e.Index, e.Timestamp, e.Equity,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
