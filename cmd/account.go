package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/internal/client"
	"github.com/tallyhq/tally/internal/ledger"
)

var accountCmd = &cobra.Command{
	Use:     "account",
	Aliases: []string{"acct"},
	Short:   "Inspect accounts and manage holds",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts in the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		accounts, err := c.ListAccounts(context.Background())
		if err != nil {
			return err
		}

		if len(accounts) == 0 {
			fmt.Println("No accounts found.")
			return nil
		}

		fmt.Printf("%-22s %-16s %-12s %14s %14s\n", "TYPE", "ENTITY", "CATEGORY", "BALANCE", "HELD")
		fmt.Printf("%-22s %-16s %-12s %14s %14s\n", "----", "------", "--------", "-------", "----")
		for _, a := range accounts {
			fmt.Printf("%-22s %-16s %-12s %14s %14s\n",
				a.Type,
				a.EntityID,
				a.Category,
				ledger.FormatMinorUnits(a.Balance),
				ledger.FormatMinorUnits(a.HeldAmount),
			)
		}
		return nil
	},
}

var acctEntity string

var accountBalanceCmd = &cobra.Command{
	Use:   "balance [account_type]",
	Short: "Show an account's balance, held amount and available funds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		bal, err := c.AccountBalance(context.Background(), args[0], acctEntity)
		if err != nil {
			return err
		}

		fmt.Printf("Account:   %s", bal.AccountType)
		if bal.EntityID != "" {
			fmt.Printf(" (%s)", bal.EntityID)
		}
		fmt.Println()
		fmt.Printf("Balance:   %s\n", ledger.FormatMinorUnits(bal.Balance))
		fmt.Printf("Held:      %s\n", ledger.FormatMinorUnits(bal.HeldAmount))
		fmt.Printf("Available: %s\n", ledger.FormatMinorUnits(bal.Available))
		return nil
	},
}

var accountEntriesCmd = &cobra.Command{
	Use:   "entries [account_type]",
	Short: "Show an account's entries with a running balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		lines, err := c.AccountActivity(context.Background(), args[0], acctEntity)
		if err != nil {
			return err
		}

		if len(lines) == 0 {
			fmt.Println("No entries found.")
			return nil
		}

		fmt.Printf("%-20s %-4s %12s %14s %s\n", "DATE", "SIDE", "AMOUNT", "RUNNING", "TRANSACTION")
		fmt.Printf("%-20s %-4s %12s %14s %s\n", "----", "----", "------", "-------", "-----------")
		for _, l := range lines {
			side := "DR"
			if l.Entry.Side == ledger.SideCredit {
				side = "CR"
			}
			fmt.Printf("%-20s %-4s %12s %14s %s\n",
				l.Entry.CreatedAt.Format("2006-01-02 15:04"),
				side,
				ledger.FormatMinorUnits(l.Entry.Amount),
				ledger.FormatMinorUnits(l.RunningBalance),
				l.Entry.TransactionID,
			)
		}
		return nil
	},
}

var (
	holdAmount string
	holdReason string
)

var accountHoldCmd = &cobra.Command{
	Use:   "hold [account_type]",
	Short: "Place a hold on an account's available funds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		amount, err := ledger.ParseMinorUnits(holdAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", holdAmount, err)
		}

		acct, err := c.HoldFunds(context.Background(), args[0], acctEntity, amount, holdReason)
		if err != nil {
			return err
		}

		fmt.Printf("Hold placed. Balance %s, held %s, available %s\n",
			ledger.FormatMinorUnits(acct.Balance),
			ledger.FormatMinorUnits(acct.HeldAmount),
			ledger.FormatMinorUnits(acct.Available()),
		)
		return nil
	},
}

var accountReleaseCmd = &cobra.Command{
	Use:   "release [account_type]",
	Short: "Release a previously placed hold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		amount, err := ledger.ParseMinorUnits(holdAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", holdAmount, err)
		}

		acct, err := c.ReleaseHold(context.Background(), args[0], acctEntity, amount, holdReason)
		if err != nil {
			return err
		}

		fmt.Printf("Hold released. Balance %s, held %s, available %s\n",
			ledger.FormatMinorUnits(acct.Balance),
			ledger.FormatMinorUnits(acct.HeldAmount),
			ledger.FormatMinorUnits(acct.Available()),
		)
		return nil
	},
}

func init() {
	accountCmd.PersistentFlags().StringVar(&acctEntity, "entity", "", "Entity ID for per-entity accounts")

	accountHoldCmd.Flags().StringVar(&holdAmount, "amount", "", "Amount to hold (e.g. 25.00)")
	accountHoldCmd.Flags().StringVar(&holdReason, "reason", "", "Reason for the hold")
	accountHoldCmd.MarkFlagRequired("amount")
	accountReleaseCmd.Flags().StringVar(&holdAmount, "amount", "", "Amount to release (e.g. 25.00)")
	accountReleaseCmd.Flags().StringVar(&holdReason, "reason", "", "Reason for the release")
	accountReleaseCmd.MarkFlagRequired("amount")

	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountBalanceCmd)
	accountCmd.AddCommand(accountEntriesCmd)
	accountCmd.AddCommand(accountHoldCmd)
	accountCmd.AddCommand(accountReleaseCmd)

	rootCmd.AddCommand(accountCmd)
}
