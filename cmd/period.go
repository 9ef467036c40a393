package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/internal/client"
)

var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Close and inspect accounting periods",
}

var periodCloseNotes string

var periodCloseCmd = &cobra.Command{
	Use:   "close [year] [month]",
	Short: "Close a calendar month, snapshotting its trial balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := parsePeriodArgs(args)
		if err != nil {
			return err
		}

		c := client.New(flagServer, flagLedger)
		result, err := c.ClosePeriod(context.Background(), year, month, periodCloseNotes)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Code == "PREFLIGHT_FAILED" {
				fmt.Printf("Close blocked: %s\n", apiErr.Message)
				return err
			}
			return err
		}

		if result.AlreadyClosed {
			fmt.Printf("Period %d-%02d was already closed.\n", year, month)
		} else {
			fmt.Printf("Period %d-%02d closed.\n", year, month)
		}
		fmt.Printf("Closing hash: %s\n", result.Period.ClosingHash)
		for _, check := range result.Checks {
			status := "ok"
			if !check.OK {
				status = "warn"
			}
			fmt.Printf("  [%s] %-22s %s\n", status, check.Name, check.Detail)
		}
		return nil
	},
}

var periodListCmd = &cobra.Command{
	Use:   "list",
	Short: "List closed periods",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(flagServer, flagLedger)

		periods, err := c.ListPeriods(context.Background())
		if err != nil {
			return err
		}

		if len(periods) == 0 {
			fmt.Println("No closed periods.")
			return nil
		}

		fmt.Printf("%-9s %-8s %-20s %s\n", "PERIOD", "STATUS", "CLOSED AT", "HASH")
		fmt.Printf("%-9s %-8s %-20s %s\n", "------", "------", "---------", "----")
		for _, p := range periods {
			closedAt := ""
			if p.ClosedAt != nil {
				closedAt = p.ClosedAt.Format("2006-01-02 15:04")
			}
			hash := p.ClosingHash
			if len(hash) > 16 {
				hash = hash[:16] + ".."
			}
			fmt.Printf("%d-%02d   %-8s %-20s %s\n", p.Year, p.Month, p.Status, closedAt, hash)
		}
		return nil
	},
}

func parsePeriodArgs(args []string) (int, int, error) {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year %q", args[0])
	}
	month, err := strconv.Atoi(args[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %q", args[1])
	}
	return year, month, nil
}

func init() {
	periodCloseCmd.Flags().StringVar(&periodCloseNotes, "notes", "", "Notes to record with the close")

	periodCmd.AddCommand(periodCloseCmd)
	periodCmd.AddCommand(periodListCmd)

	rootCmd.AddCommand(periodCmd)
}
