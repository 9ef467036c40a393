package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/internal/client"
	"github.com/tallyhq/tally/internal/ledger"
)

var transactionCmd = &cobra.Command{
	Use:     "transaction",
	Aliases: []string{"txn"},
	Short:   "Manage transactions",
}

// transaction create
var (
	txnReference   string
	txnType        string
	txnDescription string
	txnDate        string
	txnEntries     []string // format: "account_type[@entity]:side:amount"
)

var transactionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new transaction",
	Long: `Create a balanced double-entry transaction.
Each --entry is formatted as "account_type[@entity]:side:amount"
(e.g. "cash:debit:100.00" or "creator_balance@alice:credit:97.00")`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		req := client.CreateTransactionRequest{
			ReferenceID:   txnReference,
			Type:          txnType,
			Description:   txnDescription,
			EffectiveDate: txnDate,
		}

		for _, e := range txnEntries {
			parts := strings.SplitN(e, ":", 3)
			if len(parts) != 3 {
				return fmt.Errorf("invalid entry format %q, expected account_type[@entity]:side:amount", e)
			}
			accountType := parts[0]
			entityID := ""
			if at := strings.SplitN(accountType, "@", 2); len(at) == 2 {
				accountType, entityID = at[0], at[1]
			}
			amount, err := ledger.ParseMinorUnits(parts[2])
			if err != nil {
				return fmt.Errorf("invalid amount %q in entry %q: %w", parts[2], e, err)
			}
			req.Entries = append(req.Entries, client.EntryRequest{
				AccountType: accountType,
				EntityID:    entityID,
				Side:        parts[1],
				Amount:      amount,
			})
		}

		created, err := c.CreateTransaction(context.Background(), req)
		if err != nil {
			return err
		}

		if created.Replayed {
			fmt.Printf("Transaction already existed (idempotent replay): %s\n", created.ID)
		} else {
			fmt.Printf("Transaction created: %s\n", created.ID)
		}
		fmt.Printf("Reference:   %s\n", created.ReferenceID)
		fmt.Printf("Type:        %s\n", created.Type)
		fmt.Printf("Description: %s\n", created.Description)
		printEntries(created.Entries)
		return nil
	},
}

// transaction list
var (
	txnListAccountType string
	txnListEntity      string
)

var transactionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		txns, err := c.ListTransactions(context.Background(), txnListAccountType, txnListEntity)
		if err != nil {
			return err
		}

		if len(txns) == 0 {
			fmt.Println("No transactions found.")
			return nil
		}

		fmt.Printf("%-38s %-12s %-12s %-8s %s\n", "ID", "TYPE", "EFFECTIVE", "ENTRIES", "DESCRIPTION")
		fmt.Printf("%-38s %-12s %-12s %-8s %s\n", "----", "----", "---------", "-------", "-----------")
		for _, t := range txns {
			desc := t.Description
			if len(desc) > 40 {
				desc = desc[:38] + ".."
			}
			fmt.Printf("%-38s %-12s %-12s %-8d %s\n",
				t.ID,
				t.Type,
				t.EffectiveDate.Format("2006-01-02"),
				len(t.Entries),
				desc,
			)
		}
		return nil
	},
}

// transaction get
var transactionGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get transaction details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		txn, err := c.GetTransaction(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:          %s\n", txn.ID)
		fmt.Printf("Reference:   %s\n", txn.ReferenceID)
		fmt.Printf("Type:        %s\n", txn.Type)
		fmt.Printf("Description: %s\n", txn.Description)
		fmt.Printf("Effective:   %s\n", txn.EffectiveDate.Format("2006-01-02"))
		fmt.Printf("Posted:      %s\n", txn.CreatedAt.Format("2006-01-02 15:04:05"))
		if txn.ReversedBy != "" {
			fmt.Printf("Reversed by: %s\n", txn.ReversedBy)
		}
		if txn.Reverses != "" {
			fmt.Printf("Reverses:    %s\n", txn.Reverses)
		}
		printEntries(txn.Entries)
		return nil
	},
}

// transaction reverse
var txnReverseReason string

var transactionReverseCmd = &cobra.Command{
	Use:   "reverse [id]",
	Short: "Reverse a transaction with mirrored entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		rev, err := c.ReverseTransaction(context.Background(), args[0], txnReverseReason)
		if err != nil {
			return err
		}

		fmt.Printf("Reversal created: %s\n", rev.ID)
		fmt.Printf("Reverses:         %s\n", rev.Reverses)
		printEntries(rev.Entries)
		return nil
	},
}

func printEntries(entries []ledger.Entry) {
	fmt.Printf("Entries:\n")
	fmt.Printf("  %-4s %-20s %-16s %12s\n", "SIDE", "ACCOUNT", "ENTITY", "AMOUNT")
	for _, e := range entries {
		side := "DR"
		if e.Side == ledger.SideCredit {
			side = "CR"
		}
		fmt.Printf("  %-4s %-20s %-16s %12s\n", side, e.AccountType, e.EntityID, ledger.FormatMinorUnits(e.Amount))
	}
}

func init() {
	transactionCreateCmd.Flags().StringVar(&txnReference, "reference", "", "Caller-supplied idempotency reference")
	transactionCreateCmd.Flags().StringVar(&txnType, "type", "adjustment", "Transaction type (sale, refund, payout, expense, adjustment)")
	transactionCreateCmd.Flags().StringVar(&txnDescription, "description", "", "Transaction description")
	transactionCreateCmd.Flags().StringVar(&txnDate, "date", "", "Effective date (YYYY-MM-DD, defaults to today)")
	transactionCreateCmd.Flags().StringSliceVar(&txnEntries, "entry", nil, "Entry in format account_type[@entity]:side:amount (can be repeated)")
	transactionCreateCmd.MarkFlagRequired("reference")
	transactionCreateCmd.MarkFlagRequired("description")
	transactionCreateCmd.MarkFlagRequired("entry")

	transactionListCmd.Flags().StringVar(&txnListAccountType, "account", "", "Filter by account type")
	transactionListCmd.Flags().StringVar(&txnListEntity, "entity", "", "Filter by entity ID")

	transactionReverseCmd.Flags().StringVar(&txnReverseReason, "reason", "", "Reason for the reversal")

	transactionCmd.AddCommand(transactionCreateCmd)
	transactionCmd.AddCommand(transactionListCmd)
	transactionCmd.AddCommand(transactionGetCmd)
	transactionCmd.AddCommand(transactionReverseCmd)

	rootCmd.AddCommand(transactionCmd)
}
