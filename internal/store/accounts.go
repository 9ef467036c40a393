package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const accountCols = `id, ledger_id, account_type, entity_id, category, balance, held_amount, metadata, created_at`

// getOrCreateAccountTx resolves an account within a unit of work,
// creating it on first reference. Accounts are never deleted.
func getOrCreateAccountTx(ctx context.Context, q querier, ledgerID, accountType, entityID string) (*ledger.Account, error) {
	if err := ledger.ValidateRef(accountType, entityID); err != nil {
		return nil, err
	}

	acct, err := getAccountTx(ctx, q, ledgerID, accountType, entityID)
	if err == nil {
		return acct, nil
	}
	if err != ledger.ErrAccountNotFound {
		return nil, err
	}

	def, err := ledger.TypeDef(accountType)
	if err != nil {
		return nil, err
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO accounts (ledger_id, account_type, entity_id, category) VALUES (?, ?, ?, ?)`,
		ledgerID, accountType, entityID, string(def.Category),
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("account id: %w", err)
	}

	return &ledger.Account{
		ID:        id,
		LedgerID:  ledgerID,
		Type:      accountType,
		EntityID:  entityID,
		Category:  def.Category,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func getAccountTx(ctx context.Context, q querier, ledgerID, accountType, entityID string) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE ledger_id = ? AND account_type = ? AND entity_id = ?`,
		ledgerID, accountType, entityID)
	return scanAccount(row)
}

func (s *Store) GetAccount(ctx context.Context, ledgerID, accountType, entityID string) (*ledger.Account, error) {
	return getAccountTx(ctx, s.reader, ledgerID, accountType, entityID)
}

func (s *Store) ListAccounts(ctx context.Context, ledgerID string, filter AccountFilter) ([]ledger.Account, error) {
	query := `SELECT ` + accountCols + ` FROM accounts WHERE ledger_id = ?`
	args := []any{ledgerID}

	if filter.Type != "" {
		query += ` AND account_type = ?`
		args = append(args, filter.Type)
	}
	if filter.Entity != "" {
		query += ` AND entity_id = ?`
		args = append(args, filter.Entity)
	}

	query += ` ORDER BY account_type, entity_id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acct, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

// SetAccountMetadata replaces an account's metadata blob (tax info etc).
func (s *Store) SetAccountMetadata(ctx context.Context, ledgerID, accountType, entityID string, md *ledger.Metadata) error {
	raw, err := marshalMetadata(md)
	if err != nil {
		return err
	}
	res, err := s.writer.ExecContext(ctx,
		`UPDATE accounts SET metadata = ? WHERE ledger_id = ? AND account_type = ? AND entity_id = ?`,
		raw, ledgerID, accountType, entityID)
	if err != nil {
		return fmt.Errorf("set account metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

type HoldParams struct {
	LedgerID    string
	AccountType string
	EntityID    string
	Amount      int64
	Actor       string
	Reason      string
}

// HoldFunds reserves part of an account's balance against future
// refunds or withholding. Held funds are excluded from the available
// amount, so a hold can never exceed what is currently available.
func (s *Store) HoldFunds(ctx context.Context, p HoldParams) (*ledger.Account, error) {
	return s.adjustHold(ctx, p, p.Amount, "funds.hold")
}

// ReleaseHold returns previously held funds to the available balance.
func (s *Store) ReleaseHold(ctx context.Context, p HoldParams) (*ledger.Account, error) {
	return s.adjustHold(ctx, p, -p.Amount, "funds.release")
}

func (s *Store) adjustHold(ctx context.Context, p HoldParams, delta int64, action string) (*ledger.Account, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: hold amount %d", ledger.ErrInvalidAmount, p.Amount)
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := getAccountTx(ctx, tx, p.LedgerID, p.AccountType, p.EntityID)
	if err != nil {
		return nil, err
	}

	newHeld := acct.HeldAmount + delta
	if newHeld < 0 {
		return nil, fmt.Errorf("%w: release %d exceeds held %d", ledger.ErrInvalidAmount, p.Amount, acct.HeldAmount)
	}
	if acct.Balance-newHeld < 0 {
		return nil, fmt.Errorf("%w: hold %d, available %d", ledger.ErrInsufficientFunds, p.Amount, acct.Available())
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET held_amount = ? WHERE id = ?`, newHeld, acct.ID); err != nil {
		return nil, fmt.Errorf("update held amount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	acct.HeldAmount = newHeld
	s.appendAudit(ctx, auditRecord{
		LedgerID: p.LedgerID,
		Actor:    p.Actor,
		Action:   action,
		Ref:      fmt.Sprintf("%s:%s", p.AccountType, p.EntityID),
		Detail:   fmt.Sprintf("amount=%d held=%d reason=%s", p.Amount, newHeld, p.Reason),
	})
	return acct, nil
}

func marshalMetadata(md *ledger.Metadata) (sql.NullString, error) {
	if md == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalMetadata(raw sql.NullString) (*ledger.Metadata, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var md ledger.Metadata
	if err := json.Unmarshal([]byte(raw.String), &md); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &md, nil
}

func scanAccount(row *sql.Row) (*ledger.Account, error) {
	var acct ledger.Account
	var category, createdAt string
	var md sql.NullString
	err := row.Scan(&acct.ID, &acct.LedgerID, &acct.Type, &acct.EntityID, &category, &acct.Balance, &acct.HeldAmount, &md, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	acct.Category = ledger.Category(category)
	acct.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	acct.Metadata, err = unmarshalMetadata(md)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func scanAccountRow(rows *sql.Rows) (*ledger.Account, error) {
	var acct ledger.Account
	var category, createdAt string
	var md sql.NullString
	err := rows.Scan(&acct.ID, &acct.LedgerID, &acct.Type, &acct.EntityID, &category, &acct.Balance, &acct.HeldAmount, &md, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan account row: %w", err)
	}
	acct.Category = ledger.Category(category)
	acct.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	acct.Metadata, err = unmarshalMetadata(md)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
