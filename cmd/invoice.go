package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/internal/client"
	"github.com/tallyhq/tally/internal/ledger"
)

var invoiceCmd = &cobra.Command{
	Use:     "invoice",
	Aliases: []string{"inv"},
	Short:   "Manage invoices",
}

// invoice create
var (
	invCustomer string
	invDueAt    string
	invItems    []string // format: "description:quantity:unit_price"
)

var invoiceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft invoice",
	Long: `Create a draft invoice from line items.
Each --item is formatted as "description:quantity:unit_price"
(e.g. "consulting:10:150.00")`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		req := client.CreateInvoiceRequest{
			CustomerID: invCustomer,
			DueAt:      invDueAt,
		}

		for _, item := range invItems {
			parts := strings.SplitN(item, ":", 3)
			if len(parts) != 3 {
				return fmt.Errorf("invalid item format %q, expected description:quantity:unit_price", item)
			}
			qty, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q in item %q: %w", parts[1], item, err)
			}
			price, err := ledger.ParseMinorUnits(parts[2])
			if err != nil {
				return fmt.Errorf("invalid unit price %q in item %q: %w", parts[2], item, err)
			}
			req.LineItems = append(req.LineItems, client.LineItemRequest{
				Description: parts[0],
				Quantity:    qty,
				UnitPrice:   price,
			})
		}

		inv, err := c.CreateInvoice(context.Background(), req)
		if err != nil {
			return err
		}

		fmt.Printf("Invoice created: %s\n", inv.ID)
		printInvoice(inv)
		return nil
	},
}

// invoice list
var invListStatus string

var invoiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		invoices, err := c.ListInvoices(context.Background(), invListStatus)
		if err != nil {
			return err
		}

		if len(invoices) == 0 {
			fmt.Println("No invoices found.")
			return nil
		}

		fmt.Printf("%-38s %-16s %-8s %12s %12s\n", "ID", "CUSTOMER", "STATUS", "TOTAL", "DUE")
		fmt.Printf("%-38s %-16s %-8s %12s %12s\n", "----", "--------", "------", "-----", "---")
		for _, inv := range invoices {
			fmt.Printf("%-38s %-16s %-8s %12s %12s\n",
				inv.ID,
				inv.CustomerID,
				inv.Status,
				ledger.FormatMinorUnits(inv.TotalAmount),
				ledger.FormatMinorUnits(inv.AmountDue),
			)
		}
		return nil
	},
}

// invoice get
var invoiceGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get invoice details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		inv, err := c.GetInvoice(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID: %s\n", inv.ID)
		printInvoice(inv)
		return nil
	},
}

// invoice send
var invoiceSendCmd = &cobra.Command{
	Use:   "send [id]",
	Short: "Send a draft invoice, posting accounts receivable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		inv, err := c.SendInvoice(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Invoice sent: %s (transaction %s)\n", inv.ID, inv.TransactionID)
		return nil
	},
}

// invoice pay
var (
	payAmount    string
	payReference string
)

var invoicePayCmd = &cobra.Command{
	Use:   "pay [id]",
	Short: "Record a payment against an invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		amount, err := ledger.ParseMinorUnits(payAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", payAmount, err)
		}

		inv, err := c.RecordPayment(context.Background(), args[0], amount, payReference)
		if err != nil {
			return err
		}

		fmt.Printf("Payment recorded on %s\n", inv.ID)
		fmt.Printf("Status: %s, paid %s, due %s\n",
			inv.Status,
			ledger.FormatMinorUnits(inv.AmountPaid),
			ledger.FormatMinorUnits(inv.AmountDue),
		)
		return nil
	},
}

// invoice void
var voidReason string

var invoiceVoidCmd = &cobra.Command{
	Use:   "void [id]",
	Short: "Void an invoice, reversing any outstanding receivable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		inv, err := c.VoidInvoice(context.Background(), args[0], voidReason)
		if err != nil {
			return err
		}

		fmt.Printf("Invoice voided: %s\n", inv.ID)
		return nil
	},
}

func printInvoice(inv *ledger.Invoice) {
	fmt.Printf("Customer: %s\n", inv.CustomerID)
	fmt.Printf("Status:   %s\n", inv.Status)
	if inv.DueAt != nil {
		fmt.Printf("Due:      %s\n", inv.DueAt.Format("2006-01-02"))
	}
	fmt.Printf("Total:    %s\n", ledger.FormatMinorUnits(inv.TotalAmount))
	fmt.Printf("Paid:     %s\n", ledger.FormatMinorUnits(inv.AmountPaid))
	fmt.Printf("Owed:     %s\n", ledger.FormatMinorUnits(inv.AmountDue))
	if len(inv.LineItems) > 0 {
		fmt.Printf("Line items:\n")
		for _, li := range inv.LineItems {
			fmt.Printf("  %-30s %4d x %10s = %12s\n",
				li.Description, li.Quantity,
				ledger.FormatMinorUnits(li.UnitPrice),
				ledger.FormatMinorUnits(li.Amount),
			)
		}
	}
}

func init() {
	invoiceCreateCmd.Flags().StringVar(&invCustomer, "customer", "", "Customer ID")
	invoiceCreateCmd.Flags().StringVar(&invDueAt, "due", "", "Due date (YYYY-MM-DD)")
	invoiceCreateCmd.Flags().StringSliceVar(&invItems, "item", nil, "Line item in format description:quantity:unit_price (can be repeated)")
	invoiceCreateCmd.MarkFlagRequired("customer")
	invoiceCreateCmd.MarkFlagRequired("item")

	invoiceListCmd.Flags().StringVar(&invListStatus, "status", "", "Filter by status (draft, sent, partial, paid, void)")

	invoicePayCmd.Flags().StringVar(&payAmount, "amount", "", "Payment amount (e.g. 400.00)")
	invoicePayCmd.Flags().StringVar(&payReference, "reference", "", "Idempotency reference for the payment")
	invoicePayCmd.MarkFlagRequired("amount")

	invoiceVoidCmd.Flags().StringVar(&voidReason, "reason", "", "Reason for voiding")

	invoiceCmd.AddCommand(invoiceCreateCmd)
	invoiceCmd.AddCommand(invoiceListCmd)
	invoiceCmd.AddCommand(invoiceGetCmd)
	invoiceCmd.AddCommand(invoiceSendCmd)
	invoiceCmd.AddCommand(invoicePayCmd)
	invoiceCmd.AddCommand(invoiceVoidCmd)

	rootCmd.AddCommand(invoiceCmd)
}
