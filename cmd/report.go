package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/internal/client"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Financial reports",
}

var (
	tbYear  int
	tbMonth int
)

var reportTrialBalanceCmd = &cobra.Command{
	Use:   "trial-balance",
	Short: "Per-account debit and credit totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		tb, err := c.TrialBalance(context.Background(), tbYear, tbMonth)
		if err != nil {
			return err
		}

		fmt.Printf("%-22s %-16s %14s %14s\n", "ACCOUNT", "ENTITY", "DEBIT", "CREDIT")
		fmt.Printf("%-22s %-16s %14s %14s\n", "-------", "------", "-----", "------")
		for _, line := range tb.Lines {
			fmt.Printf("%-22s %-16s %14s %14s\n",
				line.AccountType,
				line.EntityID,
				ledger.FormatMinorUnits(line.Debit),
				ledger.FormatMinorUnits(line.Credit),
			)
		}
		fmt.Printf("%-22s %-16s %14s %14s\n", "TOTAL", "",
			ledger.FormatMinorUnits(tb.TotalDebit),
			ledger.FormatMinorUnits(tb.TotalCredit),
		)
		if !tb.Balanced {
			fmt.Println("WARNING: trial balance does not balance")
		}
		return nil
	},
}

var reportBalanceSheetCmd = &cobra.Command{
	Use:   "balance-sheet",
	Short: "Assets, liabilities and equity from cached balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		bs, err := c.BalanceSheet(context.Background())
		if err != nil {
			return err
		}

		printSection := func(name string, lines []store.BalanceSheetLine, total int64) {
			fmt.Printf("%s\n", name)
			for _, line := range lines {
				label := line.AccountType
				if line.EntityID != "" {
					label += " (" + line.EntityID + ")"
				}
				fmt.Printf("  %-36s %14s\n", label, ledger.FormatMinorUnits(line.Balance))
			}
			fmt.Printf("  %-36s %14s\n", "Total", ledger.FormatMinorUnits(total))
		}

		printSection("Assets", bs.Assets, bs.TotalAssets)
		printSection("Liabilities", bs.Liabilities, bs.TotalLiabilities)
		printSection("Equity", bs.Equity, bs.TotalEquity)
		fmt.Printf("Retained earnings: %s\n", ledger.FormatMinorUnits(bs.RetainedEarnings))
		if !bs.Balanced {
			fmt.Println("WARNING: accounting equation does not hold")
		}
		return nil
	},
}

var reportARAgingCmd = &cobra.Command{
	Use:   "ar-aging",
	Short: "Open receivables bucketed by days past due",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		aging, err := c.ARAging(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("As of %s\n", aging.AsOf.Format("2006-01-02"))
		fmt.Printf("%-12s %14s %8s\n", "BUCKET", "TOTAL", "COUNT")
		fmt.Printf("%-12s %14s %8s\n", "------", "-----", "-----")
		for _, b := range aging.Buckets {
			fmt.Printf("%-12s %14s %8d\n", b.Label, ledger.FormatMinorUnits(b.Total), len(b.Invoices))
		}
		fmt.Printf("%-12s %14s\n", "TOTAL", ledger.FormatMinorUnits(aging.TotalDue))
		return nil
	},
}

func init() {
	reportTrialBalanceCmd.Flags().IntVar(&tbYear, "year", 0, "Restrict to a period year (0 for lifetime)")
	reportTrialBalanceCmd.Flags().IntVar(&tbMonth, "month", 0, "Restrict to a period month")

	reportCmd.AddCommand(reportTrialBalanceCmd)
	reportCmd.AddCommand(reportBalanceSheetCmd)
	reportCmd.AddCommand(reportARAgingCmd)

	rootCmd.AddCommand(reportCmd)
}
