package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < 1 {
		if err := migrateV1(ctx, tx); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return tx.Commit()
}

func migrateV1(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		// Accounts: one row per (ledger, type, entity), created lazily.
		// balance and held_amount are running values owned by the engine.
		`CREATE TABLE IF NOT EXISTS accounts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ledger_id   TEXT NOT NULL,
			account_type TEXT NOT NULL,
			entity_id   TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL CHECK (category IN ('assets','liabilities','equity','revenue','expenses')),
			balance     INTEGER NOT NULL DEFAULT 0,
			held_amount INTEGER NOT NULL DEFAULT 0 CHECK (held_amount >= 0),
			metadata    TEXT,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			UNIQUE (ledger_id, account_type, entity_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_ledger ON accounts(ledger_id)`,

		// Transactions: immutable after creation except reversed_by.
		// The unique (ledger_id, reference_id) index is the idempotency
		// mechanism: duplicates fail here, never via check-then-insert.
		`CREATE TABLE IF NOT EXISTS transactions (
			id               TEXT PRIMARY KEY,
			ledger_id        TEXT NOT NULL,
			reference_id     TEXT NOT NULL,
			transaction_type TEXT NOT NULL CHECK (transaction_type IN ('sale','refund','payout','expense','adjustment','reversal')),
			description      TEXT NOT NULL,
			effective_date   TEXT NOT NULL,
			metadata         TEXT,
			reversed_by      TEXT,
			reverses         TEXT,
			created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			UNIQUE (ledger_id, reference_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_ledger_date ON transactions(ledger_id, effective_date)`,

		// Entries: immutable, owned by their transaction.
		`CREATE TABLE IF NOT EXISTS entries (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id TEXT NOT NULL REFERENCES transactions(id),
			account_id     INTEGER NOT NULL REFERENCES accounts(id),
			side           TEXT NOT NULL CHECK (side IN ('debit','credit')),
			amount         INTEGER NOT NULL CHECK (amount > 0),
			created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_txn ON entries(transaction_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_account ON entries(account_id)`,

		// Invoices: mutable AR projection. The CHECK is the invariant
		// amount_paid + amount_due == total_amount.
		`CREATE TABLE IF NOT EXISTS invoices (
			id             TEXT PRIMARY KEY,
			ledger_id      TEXT NOT NULL,
			customer_id    TEXT NOT NULL,
			status         TEXT NOT NULL CHECK (status IN ('draft','sent','partial','paid','void')),
			total_amount   INTEGER NOT NULL CHECK (total_amount > 0),
			amount_paid    INTEGER NOT NULL DEFAULT 0,
			amount_due     INTEGER NOT NULL,
			transaction_id TEXT,
			sent_at        TEXT,
			due_at         TEXT,
			created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			CHECK (amount_paid + amount_due = total_amount)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_ledger_status ON invoices(ledger_id, status)`,

		`CREATE TABLE IF NOT EXISTS invoice_line_items (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			invoice_id  TEXT NOT NULL REFERENCES invoices(id),
			description TEXT NOT NULL,
			quantity    INTEGER NOT NULL CHECK (quantity > 0),
			unit_price  INTEGER NOT NULL CHECK (unit_price > 0),
			amount      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_line_items_invoice ON invoice_line_items(invoice_id)`,

		// Periods: absent row = open. Closed rows are terminal.
		`CREATE TABLE IF NOT EXISTS periods (
			ledger_id              TEXT NOT NULL,
			year                   INTEGER NOT NULL,
			month                  INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			status                 TEXT NOT NULL CHECK (status IN ('open','closed')),
			closing_hash           TEXT,
			trial_balance_snapshot TEXT,
			notes                  TEXT,
			closed_at              TEXT,
			PRIMARY KEY (ledger_id, year, month)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			ledger_id  TEXT NOT NULL,
			actor      TEXT NOT NULL,
			action     TEXT NOT NULL,
			ref        TEXT,
			detail     TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ledger ON audit_log(ledger_id)`,

		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id         TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			ledger_id  TEXT NOT NULL,
			payload    TEXT NOT NULL,
			signature  TEXT NOT NULL,
			endpoint   TEXT,
			delivered  INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// Trigger: entries can never be rewritten or removed.
		`CREATE TRIGGER IF NOT EXISTS trg_entries_no_update
		BEFORE UPDATE ON entries
		BEGIN
			SELECT RAISE(ABORT, 'entries are immutable');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_entries_no_delete
		BEFORE DELETE ON entries
		BEGIN
			SELECT RAISE(ABORT, 'entries are immutable');
		END`,

		// Trigger: transactions accept no edits except the reversed_by
		// back-reference, and no deletes.
		`CREATE TRIGGER IF NOT EXISTS trg_transactions_immutable
		BEFORE UPDATE ON transactions
		WHEN NEW.id != OLD.id
			OR NEW.ledger_id != OLD.ledger_id
			OR NEW.reference_id != OLD.reference_id
			OR NEW.transaction_type != OLD.transaction_type
			OR NEW.description != OLD.description
			OR NEW.effective_date != OLD.effective_date
			OR NEW.created_at != OLD.created_at
		BEGIN
			SELECT RAISE(ABORT, 'transactions are immutable except reversed_by');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_transactions_no_delete
		BEFORE DELETE ON transactions
		BEGIN
			SELECT RAISE(ABORT, 'transactions cannot be deleted');
		END`,

		// Trigger: closed periods are terminal.
		`CREATE TRIGGER IF NOT EXISTS trg_periods_terminal
		BEFORE UPDATE OF status ON periods
		WHEN OLD.status = 'closed'
		BEGIN
			SELECT RAISE(ABORT, 'closed periods cannot be reopened');
		END`,

		`INSERT INTO schema_version (version) VALUES (1)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}

	return nil
}
