package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/tallyhq/tally/internal/ledger"
)

type auditRecord struct {
	LedgerID string
	Actor    string
	Action   string
	Ref      string
	Detail   string
}

// AuditEntry is one appended audit record.
type AuditEntry struct {
	ID        int64     `json:"id"`
	LedgerID  string    `json:"ledger_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Ref       string    `json:"ref,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// appendAudit writes one audit record after the financial commit. It is
// best-effort: a failed audit write is surfaced to operational logs and
// never rolls back the financial operation.
func (s *Store) appendAudit(ctx context.Context, rec auditRecord) {
	if rec.Actor == "" {
		rec.Actor = "system"
	}
	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO audit_log (ledger_id, actor, action, ref, detail) VALUES (?, ?, ?, ?, ?)`,
		rec.LedgerID, rec.Actor, rec.Action, rec.Ref, rec.Detail)
	if err != nil {
		log.Printf("audit write failed: ledger=%s action=%s ref=%s: %v", rec.LedgerID, rec.Action, rec.Ref, err)
	}
}

func (s *Store) ListAudit(ctx context.Context, ledgerID string, limit int) ([]AuditEntry, error) {
	query := `SELECT id, ledger_id, actor, action, ref, detail, created_at
		FROM audit_log WHERE ledger_id = ? ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.reader.QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ref, detail sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.LedgerID, &e.Actor, &e.Action, &ref, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Ref = ref.String
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordWebhookDelivery books one signed event delivery attempt.
// Retry and backoff belong to the dispatcher, not the engine.
func (s *Store) RecordWebhookDelivery(ctx context.Context, evt ledger.Event, payload []byte, signature, endpoint string, delivered bool) error {
	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, event_type, ledger_id, payload, signature, endpoint, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, string(evt.Type), evt.LedgerID, string(payload), signature, endpoint, boolToInt(delivered))
	if err != nil {
		return fmt.Errorf("record webhook delivery: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
