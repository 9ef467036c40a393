package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tallyhq/tally/internal/ledger"
)

const dateLayout = "2006-01-02"

type CreateTransactionParams struct {
	LedgerID      string
	ReferenceID   string
	Type          ledger.TransactionType
	Description   string
	EffectiveDate time.Time
	Entries       []ledger.EntryInput
	Metadata      *ledger.Metadata
	Actor         string
}

// CreateTransaction validates and applies one balanced set of entries:
// the transaction row, all entry rows, and every touched account's
// running balance commit together or not at all. Retried requests with
// the same (ledger, reference) resolve to the original transaction via
// the unique index, never by a racy pre-check.
func (s *Store) CreateTransaction(ctx context.Context, p CreateTransactionParams) (*ledger.Transaction, error) {
	if p.LedgerID == "" {
		return nil, ledger.ErrLedgerRequired
	}
	if p.ReferenceID == "" {
		return nil, ledger.ErrReferenceRequired
	}
	if !ledger.ValidTransactionType(p.Type) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownTransactionType, p.Type)
	}
	if p.Description == "" {
		return nil, ledger.ErrEmptyDescription
	}
	if err := ledger.ValidateEntries(p.Entries); err != nil {
		return nil, err
	}

	effective := p.EffectiveDate
	if effective.IsZero() {
		effective = time.Now().UTC()
	}

	txn := &ledger.Transaction{
		ID:            uuid.Must(uuid.NewV7()).String(),
		LedgerID:      p.LedgerID,
		ReferenceID:   p.ReferenceID,
		Type:          p.Type,
		Description:   p.Description,
		EffectiveDate: effective,
		Metadata:      p.Metadata,
		CreatedAt:     time.Now().UTC(),
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertTransactionTx(ctx, tx, txn, p.Entries); err != nil {
		if isUniqueViolation(err) {
			tx.Rollback()
			return s.replayTransaction(ctx, p.LedgerID, p.ReferenceID)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return s.replayTransaction(ctx, p.LedgerID, p.ReferenceID)
		}
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.appendAudit(ctx, auditRecord{
		LedgerID: p.LedgerID,
		Actor:    p.Actor,
		Action:   "transaction.create",
		Ref:      txn.ID,
		Detail:   fmt.Sprintf("type=%s reference=%s entries=%d", p.Type, p.ReferenceID, len(txn.Entries)),
	})
	s.emit(ledger.NewEvent(ledger.EventTransactionCreated, p.LedgerID, txn))
	if p.Type == ledger.TypePayout {
		s.emit(ledger.NewEvent(ledger.EventPayoutProcessed, p.LedgerID, txn))
	}

	return txn, nil
}

// replayTransaction resolves an idempotency-key conflict by returning
// the transaction the earlier request created. Order-independent: any
// later replay observes the same result.
func (s *Store) replayTransaction(ctx context.Context, ledgerID, referenceID string) (*ledger.Transaction, error) {
	existing, err := s.GetTransactionByReference(ctx, ledgerID, referenceID)
	if err != nil {
		return nil, fmt.Errorf("resolve duplicate reference %q: %w", referenceID, err)
	}
	existing.Replayed = true
	return existing, nil
}

// insertTransactionTx is the single write path for balanced entry sets,
// shared by CreateTransaction, ReverseTransaction and the invoice
// lifecycle. It enforces the period lock, lazily creates accounts,
// writes the entries, and applies every balance delta, all on the
// caller's unit of work.
func (s *Store) insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *ledger.Transaction, inputs []ledger.EntryInput) error {
	year, month := ledger.PeriodOf(txn.EffectiveDate)
	closed, err := periodClosedTx(ctx, tx, txn.LedgerID, year, int(month))
	if err != nil {
		return err
	}
	if closed {
		return fmt.Errorf("%w: %04d-%02d", ledger.ErrPeriodClosed, year, int(month))
	}

	md, err := marshalMetadata(txn.Metadata)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, ledger_id, reference_id, transaction_type, description, effective_date, metadata, reverses, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.LedgerID, txn.ReferenceID, string(txn.Type), txn.Description,
		txn.EffectiveDate.UTC().Format(dateLayout), md, nullString(txn.Reverses),
		txn.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	// Resolve accounts and accumulate one net delta per account so a
	// transaction touching the same account twice is applied once.
	accounts := make(map[int64]*ledger.Account)
	deltas := make(map[int64]int64)
	order := make([]int64, 0, len(inputs))

	txn.Entries = txn.Entries[:0]
	for _, in := range inputs {
		acct, err := getOrCreateAccountTx(ctx, tx, txn.LedgerID, in.AccountType, in.EntityID)
		if err != nil {
			return err
		}
		if _, seen := accounts[acct.ID]; !seen {
			accounts[acct.ID] = acct
			order = append(order, acct.ID)
		}
		deltas[acct.ID] += ledger.BalanceDelta(acct.Category, in.Side, in.Amount)

		res, err := tx.ExecContext(ctx,
			`INSERT INTO entries (transaction_id, account_id, side, amount) VALUES (?, ?, ?, ?)`,
			txn.ID, acct.ID, string(in.Side), in.Amount,
		)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		entryID, _ := res.LastInsertId()
		txn.Entries = append(txn.Entries, ledger.Entry{
			ID:            entryID,
			TransactionID: txn.ID,
			AccountID:     acct.ID,
			AccountType:   in.AccountType,
			EntityID:      in.EntityID,
			Side:          in.Side,
			Amount:        in.Amount,
		})
	}

	for _, id := range order {
		acct := accounts[id]
		newBalance := acct.Balance + deltas[id]

		def, err := ledger.TypeDef(acct.Type)
		if err != nil {
			return err
		}
		if def.Strict && newBalance-acct.HeldAmount < 0 {
			return fmt.Errorf("%w: %s:%s available %d, delta %d",
				ledger.ErrInsufficientFunds, acct.Type, acct.EntityID, acct.Available(), deltas[id])
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance = ? WHERE id = ?`, newBalance, acct.ID); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
	}

	return nil
}

// ReverseTransaction mirrors whatever part of the original has not
// already been backed out by earlier reversals linking to it (such as
// an invoice void covering the unpaid remainder) and stamps the
// back-reference. Once nothing remains the original is fully reversed
// and further attempts fail.
func (s *Store) ReverseTransaction(ctx context.Context, ledgerID, originalID, reason, actor string) (*ledger.Transaction, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	original, err := getTransactionTx(ctx, tx, ledgerID, originalID)
	if err != nil {
		return nil, err
	}
	if original.ReversedBy != "" {
		return nil, fmt.Errorf("%w: by %s", ledger.ErrAlreadyReversed, original.ReversedBy)
	}

	if reason == "" {
		reason = "reversal of " + originalID
	}

	reversal := &ledger.Transaction{
		ID:            uuid.Must(uuid.NewV7()).String(),
		LedgerID:      ledgerID,
		ReferenceID:   "rev-" + originalID,
		Type:          ledger.TypeReversal,
		Description:   reason,
		EffectiveDate: time.Now().UTC(),
		Reverses:      originalID,
		CreatedAt:     time.Now().UTC(),
	}

	inputs, err := unreversedRemainderTx(ctx, tx, original)
	if err != nil {
		return nil, err
	}

	if err := s.insertTransactionTx(ctx, tx, reversal, inputs); err != nil {
		if isUniqueViolation(err) {
			return nil, ledger.ErrAlreadyReversed
		}
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET reversed_by = ? WHERE id = ? AND reversed_by IS NULL`,
		reversal.ID, originalID)
	if err != nil {
		return nil, fmt.Errorf("mark reversed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ledger.ErrAlreadyReversed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.appendAudit(ctx, auditRecord{
		LedgerID: ledgerID,
		Actor:    actor,
		Action:   "transaction.reverse",
		Ref:      reversal.ID,
		Detail:   fmt.Sprintf("reverses=%s reason=%s", originalID, reason),
	})
	s.emit(ledger.NewEvent(ledger.EventTransactionReversed, ledgerID, reversal))

	return reversal, nil
}

// unreversedRemainderTx builds the mirror entry set for the part of
// the original that earlier reversals have not already backed out.
// Balanced reversals drawn from the original's own accounts leave a
// balanced remainder, so the result passes the double-entry law.
func unreversedRemainderTx(ctx context.Context, tx *sql.Tx, original *ledger.Transaction) ([]ledger.EntryInput, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT e.account_id, e.side, SUM(e.amount)
		FROM entries e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE t.ledger_id = ? AND t.reverses = ?
		GROUP BY e.account_id, e.side`, original.LedgerID, original.ID)
	if err != nil {
		return nil, fmt.Errorf("prior reversals: %w", err)
	}
	defer rows.Close()

	mirrored := make(map[string]int64)
	for rows.Next() {
		var accountID, amount int64
		var side string
		if err := rows.Scan(&accountID, &side, &amount); err != nil {
			return nil, fmt.Errorf("scan prior reversal: %w", err)
		}
		mirrored[fmt.Sprintf("%d/%s", accountID, side)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(mirrored) == 0 {
		return ledger.MirrorEntries(original.Entries), nil
	}

	var inputs []ledger.EntryInput
	for _, e := range original.Entries {
		opp := e.Side.Opposite()
		key := fmt.Sprintf("%d/%s", e.AccountID, opp)
		used := min(mirrored[key], e.Amount)
		mirrored[key] -= used
		if rem := e.Amount - used; rem > 0 {
			inputs = append(inputs, ledger.EntryInput{
				AccountType: e.AccountType,
				EntityID:    e.EntityID,
				Side:        opp,
				Amount:      rem,
			})
		}
	}
	if len(inputs) == 0 {
		return nil, ledger.ErrAlreadyReversed
	}
	return inputs, nil
}

func (s *Store) GetTransaction(ctx context.Context, ledgerID, id string) (*ledger.Transaction, error) {
	return getTransactionTx(ctx, s.reader, ledgerID, id)
}

func (s *Store) GetTransactionByReference(ctx context.Context, ledgerID, referenceID string) (*ledger.Transaction, error) {
	var id string
	err := s.reader.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE ledger_id = ? AND reference_id = ?`,
		ledgerID, referenceID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup reference: %w", err)
	}
	return s.GetTransaction(ctx, ledgerID, id)
}

func (s *Store) ListTransactions(ctx context.Context, ledgerID string, filter TxnFilter) ([]ledger.Transaction, error) {
	query := `SELECT DISTINCT t.id FROM transactions t`
	args := []any{}

	if filter.AccountType != "" {
		query += ` JOIN entries e ON e.transaction_id = t.id
			JOIN accounts a ON a.id = e.account_id AND a.account_type = ?`
		args = append(args, filter.AccountType)
		if filter.EntityID != "" {
			query += ` AND a.entity_id = ?`
			args = append(args, filter.EntityID)
		}
	}

	query += ` WHERE t.ledger_id = ?`
	args = append(args, ledgerID)

	if filter.Type != "" {
		query += ` AND t.transaction_type = ?`
		args = append(args, string(filter.Type))
	}

	query += ` ORDER BY t.created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var txns []ledger.Transaction
	for _, id := range ids {
		txn, err := s.GetTransaction(ctx, ledgerID, id)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, nil
}

func getTransactionTx(ctx context.Context, q querier, ledgerID, id string) (*ledger.Transaction, error) {
	var txn ledger.Transaction
	var effectiveDate, createdAt string
	var md, reversedBy, reverses sql.NullString

	err := q.QueryRowContext(ctx,
		`SELECT id, ledger_id, reference_id, transaction_type, description, effective_date, metadata, reversed_by, reverses, created_at
		FROM transactions WHERE ledger_id = ? AND id = ?`, ledgerID, id,
	).Scan(&txn.ID, &txn.LedgerID, &txn.ReferenceID, (*string)(&txn.Type), &txn.Description,
		&effectiveDate, &md, &reversedBy, &reverses, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	txn.EffectiveDate, _ = time.Parse(dateLayout, effectiveDate)
	txn.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	txn.ReversedBy = reversedBy.String
	txn.Reverses = reverses.String
	txn.Metadata, err = unmarshalMetadata(md)
	if err != nil {
		return nil, err
	}

	entries, err := entriesForTransaction(ctx, q, id)
	if err != nil {
		return nil, err
	}
	txn.Entries = entries

	return &txn, nil
}

func entriesForTransaction(ctx context.Context, q querier, txnID string) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT e.id, e.transaction_id, e.account_id, a.account_type, a.entity_id, e.side, e.amount, e.created_at
		FROM entries e
		JOIN accounts a ON a.id = e.account_id
		WHERE e.transaction_id = ?
		ORDER BY e.id`, txnID)
	if err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.AccountType, &e.EntityID, (*string)(&e.Side), &e.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
