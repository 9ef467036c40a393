package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/ledger"
)

// Reporting is read-only: every query here runs on the reader pool and
// never touches balances. trialBalanceTx also serves the period close,
// which runs it on the writer's unit of work for a consistent snapshot.

// TrialBalance aggregates per-account debit and credit totals. A zero
// year means lifetime totals; otherwise the report is scoped to the
// (year, month) period.
func (s *Store) TrialBalance(ctx context.Context, ledgerID string, year int, month time.Month) (*ledger.TrialBalance, error) {
	return trialBalanceTx(ctx, s.reader, ledgerID, year, int(month))
}

func trialBalanceTx(ctx context.Context, q querier, ledgerID string, year, month int) (*ledger.TrialBalance, error) {
	query := `SELECT a.account_type, a.entity_id,
			COALESCE(SUM(CASE WHEN e.side = 'debit' THEN e.amount ELSE 0 END), 0) AS debit,
			COALESCE(SUM(CASE WHEN e.side = 'credit' THEN e.amount ELSE 0 END), 0) AS credit
		FROM entries e
		JOIN accounts a ON a.id = e.account_id
		JOIN transactions t ON t.id = e.transaction_id
		WHERE t.ledger_id = ?`
	args := []any{ledgerID}

	if year != 0 {
		start := ledger.PeriodStart(year, time.Month(month))
		query += ` AND t.effective_date >= ? AND t.effective_date < ?`
		args = append(args, start.Format(dateLayout), start.AddDate(0, 1, 0).Format(dateLayout))
	}

	query += ` GROUP BY a.id ORDER BY a.account_type, a.entity_id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trial balance query: %w", err)
	}
	defer rows.Close()

	tb := &ledger.TrialBalance{GeneratedAt: time.Now().UTC()}
	for rows.Next() {
		var line ledger.TrialBalanceLine
		if err := rows.Scan(&line.AccountType, &line.EntityID, &line.Debit, &line.Credit); err != nil {
			return nil, fmt.Errorf("scan trial balance: %w", err)
		}
		tb.Lines = append(tb.Lines, line)
		tb.TotalDebit += line.Debit
		tb.TotalCredit += line.Credit
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tb.Balanced = tb.TotalDebit == tb.TotalCredit
	return tb, nil
}

type BalanceSheetLine struct {
	AccountType string `json:"account_type"`
	EntityID    string `json:"entity_id,omitempty"`
	Balance     int64  `json:"balance"`
	HeldAmount  int64  `json:"held_amount,omitempty"`
}

type BalanceSheet struct {
	Assets           []BalanceSheetLine `json:"assets"`
	Liabilities      []BalanceSheetLine `json:"liabilities"`
	Equity           []BalanceSheetLine `json:"equity"`
	TotalAssets      int64              `json:"total_assets"`
	TotalLiabilities int64              `json:"total_liabilities"`
	TotalEquity      int64              `json:"total_equity"`
	RetainedEarnings int64              `json:"retained_earnings"`
	Balanced         bool               `json:"balanced"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// BalanceSheet reads the cached running balances. Revenue and expense
// totals fold into retained earnings so the accounting equation can be
// checked without a closing entry.
func (s *Store) BalanceSheet(ctx context.Context, ledgerID string) (*BalanceSheet, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT account_type, entity_id, category, balance, held_amount
		FROM accounts WHERE ledger_id = ? AND balance != 0
		ORDER BY account_type, entity_id`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("balance sheet query: %w", err)
	}
	defer rows.Close()

	bs := &BalanceSheet{GeneratedAt: time.Now().UTC()}
	for rows.Next() {
		var line BalanceSheetLine
		var category string
		if err := rows.Scan(&line.AccountType, &line.EntityID, &category, &line.Balance, &line.HeldAmount); err != nil {
			return nil, fmt.Errorf("scan balance sheet: %w", err)
		}

		switch ledger.Category(category) {
		case ledger.CategoryAssets:
			bs.Assets = append(bs.Assets, line)
			bs.TotalAssets += line.Balance
		case ledger.CategoryLiabilities:
			bs.Liabilities = append(bs.Liabilities, line)
			bs.TotalLiabilities += line.Balance
		case ledger.CategoryEquity:
			bs.Equity = append(bs.Equity, line)
			bs.TotalEquity += line.Balance
		case ledger.CategoryRevenue:
			bs.RetainedEarnings += line.Balance
		case ledger.CategoryExpenses:
			bs.RetainedEarnings -= line.Balance
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bs.Balanced = bs.TotalAssets == bs.TotalLiabilities+bs.TotalEquity+bs.RetainedEarnings
	return bs, nil
}

type AgingBucket struct {
	Label    string           `json:"label"`
	Total    int64            `json:"total"`
	Invoices []ledger.Invoice `json:"invoices,omitempty"`
}

type ARAging struct {
	Buckets     []AgingBucket `json:"buckets"`
	TotalDue    int64         `json:"total_due"`
	AsOf        time.Time     `json:"as_of"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ARAging buckets open invoices by days past due as of the given date.
// Invoices without a due date age from their sent date.
func (s *Store) ARAging(ctx context.Context, ledgerID string, asOf time.Time) (*ARAging, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	open, err := s.ListInvoices(ctx, ledgerID, InvoiceFilter{Status: ledger.InvoiceSent})
	if err != nil {
		return nil, err
	}
	partial, err := s.ListInvoices(ctx, ledgerID, InvoiceFilter{Status: ledger.InvoicePartial})
	if err != nil {
		return nil, err
	}
	open = append(open, partial...)

	buckets := []AgingBucket{
		{Label: "current"},
		{Label: "1-30"},
		{Label: "31-60"},
		{Label: "61-90"},
		{Label: "90+"},
	}

	report := &ARAging{AsOf: asOf, GeneratedAt: time.Now().UTC()}
	for _, inv := range open {
		anchor := inv.DueAt
		if anchor == nil {
			anchor = inv.SentAt
		}
		if anchor == nil {
			continue
		}
		days := int(asOf.Sub(*anchor).Hours() / 24)

		idx := 0
		switch {
		case days <= 0:
			idx = 0
		case days <= 30:
			idx = 1
		case days <= 60:
			idx = 2
		case days <= 90:
			idx = 3
		default:
			idx = 4
		}
		buckets[idx].Total += inv.AmountDue
		buckets[idx].Invoices = append(buckets[idx].Invoices, inv)
		report.TotalDue += inv.AmountDue
	}

	report.Buckets = buckets
	return report, nil
}

type ActivityLine struct {
	Entry          ledger.Entry `json:"entry"`
	RunningBalance int64        `json:"running_balance"`
}

// AccountActivity returns an account's entries oldest first with the
// running balance after each.
func (s *Store) AccountActivity(ctx context.Context, ledgerID, accountType, entityID string, limit int) ([]ActivityLine, error) {
	acct, err := s.GetAccount(ctx, ledgerID, accountType, entityID)
	if err != nil {
		return nil, err
	}

	query := `SELECT e.id, e.transaction_id, e.account_id, a.account_type, a.entity_id, e.side, e.amount, e.created_at
		FROM entries e
		JOIN accounts a ON a.id = e.account_id
		WHERE e.account_id = ?
		ORDER BY e.id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.reader.QueryContext(ctx, query, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("account activity: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	var lines []ActivityLine
	var running int64
	for _, e := range entries {
		running += ledger.BalanceDelta(acct.Category, e.Side, e.Amount)
		lines = append(lines, ActivityLine{Entry: e, RunningBalance: running})
	}
	return lines, nil
}
