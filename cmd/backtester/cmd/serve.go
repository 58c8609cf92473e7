package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/rustyeddy/backtester/internal/viewer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve journaled runs over HTTP",
	Long: `Serve the SQLite journal as a read-only JSON API for charting tools.

Routes:
  GET /api/health
  GET /api/runs?limit=N
  GET /api/runs/{id}
  GET /api/runs/{id}/trades
  GET /api/runs/{id}/equity
  GET /api/runs/{id}/org`,
	Example: `  backtester serve --db backtest.db --addr :8080`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(v.GetString("log.level"), v.GetString("log.format"))
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		j, err := openStore()
		if err != nil {
			return err
		}
		defer j.Close()

		addr, _ := cmd.Flags().GetString("addr")
		fmt.Fprintf(cmd.OutOrStdout(), "Serving journal on %s\n", addr)
		return viewer.New(j, logger).ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
	rootCmd.AddCommand(serveCmd)
}
