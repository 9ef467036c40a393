package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagServer string
	flagLedger string
	flagDB     string
)

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Multi-tenant double-entry accounting ledger",
	Long:  "A double-entry accounting platform backed by SQLite, with idempotent transaction posting, invoice lifecycle management and period closing.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8888", "Server address")
	rootCmd.PersistentFlags().StringVar(&flagLedger, "ledger", "default", "Ledger (tenant) identifier")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "tally.db", "SQLite database path")
}

func Execute() error {
	return rootCmd.Execute()
}
