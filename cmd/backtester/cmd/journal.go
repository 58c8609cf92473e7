package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query journaled backtest runs",
	Long: `Query and display backtest runs recorded in the SQLite journal.

Subcommands:
  runs   - List recent runs
  trades - List the trades of one run
  show   - Print one run with its trades as org-mode

Examples:
  backtester journal runs --limit 10
  backtester journal trades <run-id>
  backtester journal show <run-id> > run.org`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List the trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run and its trades as org-mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var (
	journalDBPath string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalShowCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
	journalRunsCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "maximum runs to list (0 for all)")
}

// openStore opens the journal named by --db, or by journal.db_path.
func openStore() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		path = v.GetString("journal.db_path")
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openStore()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	fmt.Fprintf(out, "%-26s  %-16s  %-8s  %6s  %10s  %8s\n", "RUN", "STRATEGY", "SYMBOL", "TRADES", "RETURN%", "MAXDD%")
	for _, r := range runs {
		fmt.Fprintf(out, "%-26s  %-16s  %-8s  %6d  %10.2f  %8.2f\n",
			r.RunID, r.Strategy, r.Symbol, r.Trades, r.ReturnPct, min(r.MaxDDPct, 100))
	}
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openStore()
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTradesByRunID(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(trades) == 0 {
		fmt.Fprintln(out, "No trades")
		return nil
	}
	for _, t := range trades {
		fmt.Fprintf(out, "%3d  %-5s  %s -> %s  qty %.2f  %.2f -> %.2f  pnl %.2f\n",
			t.Seq+1, t.Side, t.EntryTime, t.ExitTime,
			t.Quantity, t.EntryPrice, t.ExitPrice, t.RealizedPL)
	}
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openStore()
	if err != nil {
		return err
	}
	defer j.Close()

	org, err := j.ExportRunOrg(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), org)
	return nil
}
