package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tallyhq/tally/internal/ledger"
)

type CreateInvoiceParams struct {
	LedgerID   string
	CustomerID string
	LineItems  []ledger.LineItem
	DueAt      *time.Time
	Actor      string
}

// CreateInvoice stores a draft. Drafts have no backing transaction;
// nothing is posted until the invoice is sent.
func (s *Store) CreateInvoice(ctx context.Context, p CreateInvoiceParams) (*ledger.Invoice, error) {
	inv := &ledger.Invoice{
		ID:         uuid.Must(uuid.NewV7()).String(),
		LedgerID:   p.LedgerID,
		CustomerID: p.CustomerID,
		Status:     ledger.InvoiceDraft,
		LineItems:  p.LineItems,
		DueAt:      p.DueAt,
		CreatedAt:  time.Now().UTC(),
	}
	if err := inv.ValidateDraft(); err != nil {
		return nil, err
	}
	inv.ComputeTotals()

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invoices (id, ledger_id, customer_id, status, total_amount, amount_paid, amount_due, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		inv.ID, inv.LedgerID, inv.CustomerID, string(inv.Status), inv.TotalAmount, inv.AmountDue,
		nullTime(inv.DueAt), inv.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO invoice_line_items (invoice_id, description, quantity, unit_price, amount) VALUES (?, ?, ?, ?, ?)`,
			inv.ID, li.Description, li.Quantity, li.UnitPrice, li.Amount)
		if err != nil {
			return nil, fmt.Errorf("insert line item: %w", err)
		}
		li.ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.appendAudit(ctx, auditRecord{
		LedgerID: p.LedgerID,
		Actor:    p.Actor,
		Action:   "invoice.create",
		Ref:      inv.ID,
		Detail:   fmt.Sprintf("customer=%s total=%d items=%d", p.CustomerID, inv.TotalAmount, len(inv.LineItems)),
	})
	return inv, nil
}

// SendInvoice moves a draft to sent and posts the backing AR
// transaction (debit accounts_receivable, credit revenue) atomically
// with the status flip.
func (s *Store) SendInvoice(ctx context.Context, ledgerID, id, actor string) (*ledger.Invoice, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inv, err := getInvoiceTx(ctx, tx, ledgerID, id)
	if err != nil {
		return nil, err
	}
	if err := inv.CheckSend(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := &ledger.Transaction{
		ID:            uuid.Must(uuid.NewV7()).String(),
		LedgerID:      ledgerID,
		ReferenceID:   "inv-" + id + "-send",
		Type:          ledger.TypeSale,
		Description:   fmt.Sprintf("invoice %s sent to %s", id, inv.CustomerID),
		EffectiveDate: now,
		CreatedAt:     now,
	}
	entries := []ledger.EntryInput{
		{AccountType: "accounts_receivable", Side: ledger.SideDebit, Amount: inv.TotalAmount},
		{AccountType: "revenue", Side: ledger.SideCredit, Amount: inv.TotalAmount},
	}
	if err := s.insertTransactionTx(ctx, tx, txn, entries); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: invoice already sent", ledger.ErrInvalidState)
		}
		return nil, err
	}

	// Status-conditional update: a concurrent send loses here instead
	// of posting a second AR transaction.
	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = ?, sent_at = ?, transaction_id = ? WHERE id = ? AND status = ?`,
		string(ledger.InvoiceSent), now.Format(time.RFC3339Nano), txn.ID, id, string(ledger.InvoiceDraft))
	if err != nil {
		return nil, fmt.Errorf("mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: invoice is no longer a draft", ledger.ErrInvalidState)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	inv.Status = ledger.InvoiceSent
	inv.SentAt = &now
	inv.TransactionID = txn.ID

	s.appendAudit(ctx, auditRecord{
		LedgerID: ledgerID,
		Actor:    actor,
		Action:   "invoice.send",
		Ref:      id,
		Detail:   fmt.Sprintf("total=%d transaction=%s", inv.TotalAmount, txn.ID),
	})
	s.emit(ledger.NewEvent(ledger.EventInvoiceSent, ledgerID, inv))
	return inv, nil
}

type RecordPaymentParams struct {
	LedgerID    string
	InvoiceID   string
	Amount      int64
	ReferenceID string
	Actor       string
}

// RecordPayment applies a payment to a sent or partially paid invoice.
// The invoice row, the cash/AR transaction, and the account balances
// move in one unit of work on the single-writer connection, so
// concurrent payments serialize and the sum applied can never pass the
// amount due: an overshooting payment is rejected, never capped.
func (s *Store) RecordPayment(ctx context.Context, p RecordPaymentParams) (*ledger.Invoice, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inv, err := getInvoiceTx(ctx, tx, p.LedgerID, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.CheckPayment(p.Amount); err != nil {
		return nil, err
	}

	refID := p.ReferenceID
	if refID == "" {
		refID = fmt.Sprintf("inv-%s-pay-%s", p.InvoiceID, uuid.Must(uuid.NewV7()).String())
	}

	now := time.Now().UTC()
	txn := &ledger.Transaction{
		ID:            uuid.Must(uuid.NewV7()).String(),
		LedgerID:      p.LedgerID,
		ReferenceID:   refID,
		Type:          ledger.TypeSale,
		Description:   fmt.Sprintf("payment on invoice %s", p.InvoiceID),
		EffectiveDate: now,
		CreatedAt:     now,
	}
	entries := []ledger.EntryInput{
		{AccountType: "cash", Side: ledger.SideDebit, Amount: p.Amount},
		{AccountType: "accounts_receivable", Side: ledger.SideCredit, Amount: p.Amount},
	}
	if err := s.insertTransactionTx(ctx, tx, txn, entries); err != nil {
		if isUniqueViolation(err) {
			// Same payment reference replayed: the invoice already
			// reflects it, return current state untouched.
			tx.Rollback()
			replay, rerr := s.GetInvoice(ctx, p.LedgerID, p.InvoiceID)
			if rerr != nil {
				return nil, rerr
			}
			return replay, nil
		}
		return nil, err
	}

	newPaid := inv.AmountPaid + p.Amount
	newDue := inv.AmountDue - p.Amount
	newStatus := inv.StatusAfterPayment(p.Amount)

	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET amount_paid = ?, amount_due = ?, status = ?
		WHERE id = ? AND amount_paid = ? AND status = ?`,
		newPaid, newDue, string(newStatus), p.InvoiceID, inv.AmountPaid, string(inv.Status))
	if err != nil {
		return nil, fmt.Errorf("apply payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: invoice changed concurrently", ledger.ErrInvalidState)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	inv.AmountPaid = newPaid
	inv.AmountDue = newDue
	inv.Status = newStatus

	s.appendAudit(ctx, auditRecord{
		LedgerID: p.LedgerID,
		Actor:    p.Actor,
		Action:   "invoice.payment",
		Ref:      p.InvoiceID,
		Detail:   fmt.Sprintf("amount=%d paid=%d due=%d status=%s", p.Amount, newPaid, newDue, newStatus),
	})
	if newStatus == ledger.InvoicePaid {
		s.emit(ledger.NewEvent(ledger.EventInvoicePaid, p.LedgerID, inv))
	}
	return inv, nil
}

// VoidInvoice cancels an invoice. Drafts void with no transaction;
// sent and partially paid invoices void by reversing exactly the
// unpaid remainder. Paid invoices never void. Of two concurrent void
// attempts exactly one posts the reversal; the loser sees the state
// error.
func (s *Store) VoidInvoice(ctx context.Context, ledgerID, id, reason, actor string) (*ledger.Invoice, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inv, err := getInvoiceTx(ctx, tx, ledgerID, id)
	if err != nil {
		return nil, err
	}
	if err := inv.CheckVoid(); err != nil {
		return nil, err
	}

	prevStatus := inv.Status

	if prevStatus != ledger.InvoiceDraft && inv.AmountDue > 0 {
		var reversedBy sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT reversed_by FROM transactions WHERE ledger_id = ? AND id = ?`,
			ledgerID, inv.TransactionID).Scan(&reversedBy)
		if err != nil {
			return nil, fmt.Errorf("check backing transaction: %w", err)
		}
		if reversedBy.String != "" {
			return nil, fmt.Errorf("%w: by %s", ledger.ErrAlreadyReversed, reversedBy.String)
		}

		now := time.Now().UTC()
		if reason == "" {
			reason = fmt.Sprintf("void invoice %s", id)
		}
		txn := &ledger.Transaction{
			ID:            uuid.Must(uuid.NewV7()).String(),
			LedgerID:      ledgerID,
			ReferenceID:   "inv-" + id + "-void",
			Type:          ledger.TypeReversal,
			Description:   reason,
			EffectiveDate: now,
			Reverses:      inv.TransactionID,
			CreatedAt:     now,
		}
		entries := []ledger.EntryInput{
			{AccountType: "revenue", Side: ledger.SideDebit, Amount: inv.AmountDue},
			{AccountType: "accounts_receivable", Side: ledger.SideCredit, Amount: inv.AmountDue},
		}
		if err := s.insertTransactionTx(ctx, tx, txn, entries); err != nil {
			if isUniqueViolation(err) {
				return nil, ledger.ErrAlreadyVoid
			}
			return nil, err
		}

		// A void of the full remainder leaves nothing of the backing
		// transaction to reverse again.
		if inv.AmountDue == inv.TotalAmount {
			if _, err := tx.ExecContext(ctx,
				`UPDATE transactions SET reversed_by = ? WHERE id = ? AND reversed_by IS NULL`,
				txn.ID, inv.TransactionID); err != nil {
				return nil, fmt.Errorf("mark reversed: %w", err)
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = ? WHERE id = ? AND status = ?`,
		string(ledger.InvoiceVoid), id, string(prevStatus))
	if err != nil {
		return nil, fmt.Errorf("mark void: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ledger.ErrAlreadyVoid
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	inv.Status = ledger.InvoiceVoid

	s.appendAudit(ctx, auditRecord{
		LedgerID: ledgerID,
		Actor:    actor,
		Action:   "invoice.void",
		Ref:      id,
		Detail:   fmt.Sprintf("was=%s remainder=%d reason=%s", prevStatus, inv.AmountDue, reason),
	})
	s.emit(ledger.NewEvent(ledger.EventInvoiceVoided, ledgerID, inv))
	return inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, ledgerID, id string) (*ledger.Invoice, error) {
	return getInvoiceTx(ctx, s.reader, ledgerID, id)
}

func (s *Store) ListInvoices(ctx context.Context, ledgerID string, filter InvoiceFilter) ([]ledger.Invoice, error) {
	query := `SELECT id FROM invoices WHERE ledger_id = ?`
	args := []any{ledgerID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}

	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan invoice id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var invoices []ledger.Invoice
	for _, id := range ids {
		inv, err := s.GetInvoice(ctx, ledgerID, id)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, nil
}

func getInvoiceTx(ctx context.Context, q querier, ledgerID, id string) (*ledger.Invoice, error) {
	var inv ledger.Invoice
	var status, createdAt string
	var txnID, sentAt, dueAt sql.NullString

	err := q.QueryRowContext(ctx,
		`SELECT id, ledger_id, customer_id, status, total_amount, amount_paid, amount_due, transaction_id, sent_at, due_at, created_at
		FROM invoices WHERE ledger_id = ? AND id = ?`, ledgerID, id,
	).Scan(&inv.ID, &inv.LedgerID, &inv.CustomerID, &status, &inv.TotalAmount, &inv.AmountPaid, &inv.AmountDue,
		&txnID, &sentAt, &dueAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	inv.Status = ledger.InvoiceStatus(status)
	inv.TransactionID = txnID.String
	inv.SentAt = parseNullTime(sentAt)
	inv.DueAt = parseNullTime(dueAt)
	inv.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := q.QueryContext(ctx,
		`SELECT id, description, quantity, unit_price, amount FROM invoice_line_items WHERE invoice_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var li ledger.LineItem
		if err := rows.Scan(&li.ID, &li.Description, &li.Quantity, &li.UnitPrice, &li.Amount); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		inv.LineItems = append(inv.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &inv, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
