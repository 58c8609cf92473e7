package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/telemetry"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market/data"
	"github.com/rustyeddy/backtester/report"
	"github.com/rustyeddy/backtester/strategies"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run a strategy over every symbol of a Databento directory",
	Long: `Run one strategy over every symbol found in a Databento directory with
the same account settings, write per-symbol reports under the reports
directory and print a combined summary table.

Symbols with fewer bars than the strategy needs are skipped.`,
	Example: `  backtester all --databento-dir data/glbx --strategy ctm --bar 1h`,
	Args:    cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, runFlagKeys)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if cfg.Data.DatabentoDir == "" {
			return errors.New("all requires --databento-dir")
		}
		return runAll(cmd, cfg, logger)
	},
}

func init() {
	addRunFlags(allCmd)
	rootCmd.AddCommand(allCmd)
}

func runAll(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) (err error) {
	out := cmd.OutOrStdout()

	symbols, err := data.ListSymbols(cfg.Data.DatabentoDir)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols found in %s", cfg.Data.DatabentoDir)
	}
	res, err := cfg.Resolution()
	if err != nil {
		return err
	}

	j := journal.Journal(journal.Nop{})
	if cfg.Journal.Type != config.JournalNone {
		if j, err = openJournal(cfg); err != nil {
			return err
		}
		defer closeJournal(j, &err)
	}

	metrics := telemetry.New()
	summary := &report.Summary{
		Strategy:    cfg.Strategy.Name,
		InitialCash: cfg.Account.Cash,
	}
	minBars := strategies.MinBars(cfg.Strategy.Name)

	fmt.Fprintf(out, "Running %s on %d symbols (%s)\n", cfg.Strategy.Name, len(symbols), res)
	for _, sym := range symbols {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		strat, params, err := cfg.NewStrategy()
		if err != nil {
			return err
		}
		summary.Params = params

		src := cfg.Source()
		src.Symbol = sym
		source, err := data.Open(src)
		if err != nil {
			return err
		}
		bt := &backtest.Backtester{
			Source:     source,
			Resolution: res,
			Config:     cfg.Sim(),
			Strategy:   strat,
			MinBars:    minBars,
			Logger:     logger.With(zap.String("symbol", sym)),
			Metrics:    metrics,
		}
		session, err := bt.Run(cmd.Context())
		if err != nil {
			if errors.Is(err, backtest.ErrNoBars) || errors.Is(err, backtest.ErrTooFewBars) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s: %v\n", strings.ToUpper(sym), err)
				continue
			}
			return fmt.Errorf("%s: %w", sym, err)
		}

		rep := report.FromSession(session, cfg.Strategy.Name, params)
		label := sym
		if cfg.Report.SessionLabel != "" {
			label = cfg.Report.SessionLabel + "_" + sym
		}
		if err := rep.WriteAll(filepath.Join(cfg.Report.Dir, sym), label); err != nil {
			return err
		}
		if _, err := recordRun(j, cfg, rep, sym); err != nil {
			return err
		}
		summary.Add(sym, rep)
	}

	if len(summary.Results) == 0 {
		return errors.New("every symbol was skipped")
	}

	summary.PrintTable(out)
	path, err := summary.WriteTable(cfg.Report.Dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Summary written to %s\n", path)

	return writeMetrics(cfg, metrics)
}
