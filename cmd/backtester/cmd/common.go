package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/rustyeddy/backtester/internal/telemetry"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/report"
)

// runFlagKeys maps config keys to the flags of run and all.
var runFlagKeys = map[string]string{
	"data.path":            "data",
	"data.databento_dir":   "databento-dir",
	"data.parquet_path":    "parquet",
	"data.symbol":          "symbol",
	"data.resolution":      "bar",
	"account.cash":         "cash",
	"account.commission":   "commission",
	"account.slippage":     "slippage",
	"strategy.name":        "strategy",
	"report.dir":           "reports-dir",
	"report.session_label": "label",
	"journal.type":         "journal",
	"journal.db_path":      "journal-db",
	"metrics.textfile":     "metrics-file",
}

// strategyFlags maps shorthand flags to strategy parameter keys.
var strategyFlags = map[string]string{
	"fast":               "fast",
	"slow":               "slow",
	"size":               "size",
	"orb-session-hour":   "session_hour",
	"orb-session-minute": "session_minute",
	"ctm-kalman":         "kalman",
	"ctm-kalman-long":    "kalman_long",
	"ctm-kalman-short":   "kalman_short",
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data", "data/sample_ohlc.csv", "CSV or parquet bar file")
	f.String("databento-dir", "", "directory of Databento OHLCV CSV files")
	f.String("parquet", "", "parquet bar file")
	f.String("symbol", "", "symbol to select from a Databento directory or parquet file")
	f.String("bar", "1m", "bar resolution: 1m, 15m or 1h")
	f.Float64("cash", 100000, "initial cash")
	f.Float64("commission", 0, "flat commission per fill")
	f.Float64("slippage", 0, "adverse slippage as a fraction of the open, e.g. 0.001")
	f.String("strategy", "sma_crossover", "strategy name")
	f.String("reports-dir", "reports", "directory for report files")
	f.String("label", "", "session label written to session.json")
	f.String("journal", "none", "journal type: none, csv or sqlite")
	f.String("journal-db", "backtest.db", "SQLite journal path")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")

	f.Int("fast", 9, "fast SMA period (sma_crossover, ctm)")
	f.Int("slow", 21, "slow SMA period (sma_crossover, ctm)")
	f.Float64("size", 1.0, "position size as a fraction of equity")
	f.Int("orb-session-hour", 9, "ORB session start hour (0-23)")
	f.Int("orb-session-minute", 30, "ORB session start minute (0-59)")
	f.Bool("ctm-kalman", false, "CTM: Kalman trend filter on both sides")
	f.Bool("ctm-kalman-long", false, "CTM: Kalman trend filter on longs")
	f.Bool("ctm-kalman-short", false, "CTM: Kalman trend filter on shorts")
	f.StringToString("param", nil, "extra strategy parameter key=value (repeatable)")
}

// applyStrategyFlags copies the strategy flags the user set into params.
func applyStrategyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	for name, key := range strategyFlags {
		if f := flags.Lookup(name); f != nil && f.Changed {
			cfg.Strategy.Params = cfg.Strategy.Params.Set(key, f.Value.String())
		}
	}
	if flags.Changed("param") {
		extra, err := flags.GetStringToString("param")
		if err != nil {
			return err
		}
		for k, val := range extra {
			cfg.Strategy.Params = cfg.Strategy.Params.Set(k, val)
		}
	}
	return nil
}

// loadConfig decodes the merged configuration, applies strategy flags and
// validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, nil, err
	}
	if err := applyStrategyFlags(cmd.Flags(), cfg); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case config.JournalCSV:
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	case config.JournalSQLite:
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
	return journal.Nop{}, nil
}

// closeJournal closes j, keeping *err when it already holds an error.
func closeJournal(j journal.Journal, err *error) {
	if cerr := j.Close(); *err == nil && cerr != nil {
		*err = fmt.Errorf("close journal: %w", cerr)
	}
}

func dataset(cfg *config.Config) string {
	switch {
	case cfg.Data.DatabentoDir != "":
		return cfg.Data.DatabentoDir
	case cfg.Data.ParquetPath != "":
		return cfg.Data.ParquetPath
	}
	return cfg.Data.Path
}

// recordRun journals one finished run and returns its run ID.
func recordRun(j journal.Journal, cfg *config.Config, rep *report.Report, symbol string) (string, error) {
	run := journal.BacktestRun{
		RunID:      id.NewRunID(),
		Created:    time.Now().UTC(),
		Strategy:   rep.Strategy,
		Params:     rep.Params,
		Dataset:    dataset(cfg),
		Symbol:     symbol,
		Resolution: cfg.Data.Resolution,
		Bars:       len(rep.Bars()),
		StopReason: rep.StopReason,
	}
	run.ApplyMetrics(rep.Metrics)
	if err := journal.Save(j, run, rep, rep.Bars()); err != nil {
		return "", err
	}
	return run.RunID, nil
}

func writeMetrics(cfg *config.Config, m *telemetry.Collector) error {
	if cfg.Metrics.Textfile == "" {
		return nil
	}
	return m.WriteTextfile(cfg.Metrics.Textfile)
}
