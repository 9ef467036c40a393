package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/ledger"
)

type ClosePeriodParams struct {
	LedgerID string
	Year     int
	Month    time.Month
	Notes    string
	Actor    string
}

// ClosePeriod runs the preflight checks, snapshots the period's trial
// balance with its integrity hash, and flips the period to closed. The
// transaction engine consults the closed flag before every write, so
// this is the enforcement point for period immutability. Closing an
// already-closed period replays the stored result instead of erroring.
func (s *Store) ClosePeriod(ctx context.Context, p ClosePeriodParams) (*ledger.PeriodCloseResult, error) {
	if p.LedgerID == "" {
		return nil, ledger.ErrLedgerRequired
	}
	if p.Month < time.January || p.Month > time.December {
		return nil, fmt.Errorf("%w: month %d", ledger.ErrInvalidAmount, p.Month)
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := getPeriodTx(ctx, tx, p.LedgerID, p.Year, int(p.Month))
	if err != nil && err != ledger.ErrPeriodNotFound {
		return nil, err
	}
	if existing != nil && existing.Status == ledger.PeriodClosed {
		return &ledger.PeriodCloseResult{Period: *existing, AlreadyClosed: true}, nil
	}

	checks, err := s.preflightTx(ctx, tx, p.LedgerID, p.Year, p.Month)
	if err != nil {
		return nil, err
	}
	result := &ledger.PeriodCloseResult{Checks: checks}
	if ledger.Blocking(checks) {
		result.Period = ledger.Period{LedgerID: p.LedgerID, Year: p.Year, Month: p.Month, Status: ledger.PeriodOpen}
		return result, ledger.ErrPreflightFailed
	}

	snapshot, err := trialBalanceTx(ctx, tx, p.LedgerID, p.Year, int(p.Month))
	if err != nil {
		return nil, err
	}
	hash, err := ledger.SnapshotHash(snapshot)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO periods (ledger_id, year, month, status, closing_hash, trial_balance_snapshot, notes, closed_at)
		VALUES (?, ?, ?, 'closed', ?, ?, ?, ?)`,
		p.LedgerID, p.Year, int(p.Month), hash, string(raw), p.Notes, now.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			// Concurrent close won the race; replay its result.
			tx.Rollback()
			stored, gerr := s.GetPeriod(ctx, p.LedgerID, p.Year, p.Month)
			if gerr != nil {
				return nil, gerr
			}
			return &ledger.PeriodCloseResult{Period: *stored, AlreadyClosed: true}, nil
		}
		return nil, fmt.Errorf("insert period: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	period := ledger.Period{
		LedgerID:    p.LedgerID,
		Year:        p.Year,
		Month:       p.Month,
		Status:      ledger.PeriodClosed,
		ClosingHash: hash,
		Snapshot:    snapshot,
		Notes:       p.Notes,
		ClosedAt:    &now,
	}
	result.Period = period

	s.appendAudit(ctx, auditRecord{
		LedgerID: p.LedgerID,
		Actor:    p.Actor,
		Action:   "period.close",
		Ref:      fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)),
		Detail:   fmt.Sprintf("hash=%s lines=%d", hash, len(snapshot.Lines)),
	})
	s.emit(ledger.NewEvent(ledger.EventPeriodClosed, p.LedgerID, period))

	return result, nil
}

// preflightTx evaluates the close checks. Only required checks block.
func (s *Store) preflightTx(ctx context.Context, tx *sql.Tx, ledgerID string, year int, month time.Month) ([]ledger.PreflightCheck, error) {
	var checks []ledger.PreflightCheck

	// Ledger-wide double-entry law must hold before freezing anything.
	var debits, credits int64
	err := tx.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN e.side = 'debit' THEN e.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN e.side = 'credit' THEN e.amount ELSE 0 END), 0)
		FROM entries e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE t.ledger_id = ?`, ledgerID).Scan(&debits, &credits)
	if err != nil {
		return nil, fmt.Errorf("preflight balance: %w", err)
	}
	checks = append(checks, ledger.PreflightCheck{
		Name:     "ledger_balanced",
		Severity: ledger.SeverityRequired,
		OK:       debits == credits,
		Detail:   fmt.Sprintf("debits=%d credits=%d", debits, credits),
	})

	// The prior period must already be closed, unless nothing was ever
	// posted before this period.
	start := ledger.PeriodStart(year, month)
	var priorActivity int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE ledger_id = ? AND effective_date < ?`,
		ledgerID, start.Format(dateLayout)).Scan(&priorActivity)
	if err != nil {
		return nil, fmt.Errorf("preflight prior activity: %w", err)
	}
	priorOK := true
	priorDetail := "no prior activity"
	if priorActivity > 0 {
		py, pm := ledger.PriorPeriod(year, month)
		closed, err := periodClosedTx(ctx, tx, ledgerID, py, int(pm))
		if err != nil {
			return nil, err
		}
		priorOK = closed
		priorDetail = fmt.Sprintf("prior period %04d-%02d closed=%v", py, int(pm), closed)
	}
	checks = append(checks, ledger.PreflightCheck{
		Name:     "prior_period_closed",
		Severity: ledger.SeverityRequired,
		OK:       priorOK,
		Detail:   priorDetail,
	})

	// Informational: a close with zero activity is legal but unusual.
	var activity int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		WHERE ledger_id = ? AND effective_date >= ? AND effective_date < ?`,
		ledgerID, start.Format(dateLayout), nextPeriodStart(year, month).Format(dateLayout)).Scan(&activity)
	if err != nil {
		return nil, fmt.Errorf("preflight activity: %w", err)
	}
	checks = append(checks, ledger.PreflightCheck{
		Name:     "period_activity",
		Severity: ledger.SeverityWarning,
		OK:       activity > 0,
		Detail:   fmt.Sprintf("transactions=%d", activity),
	})

	// Informational: future-dated transactions inside the period.
	var future int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		WHERE ledger_id = ? AND effective_date >= ? AND effective_date < ? AND effective_date > ?`,
		ledgerID, start.Format(dateLayout), nextPeriodStart(year, month).Format(dateLayout),
		time.Now().UTC().Format(dateLayout)).Scan(&future)
	if err != nil {
		return nil, fmt.Errorf("preflight future dated: %w", err)
	}
	checks = append(checks, ledger.PreflightCheck{
		Name:     "no_future_dated",
		Severity: ledger.SeverityWarning,
		OK:       future == 0,
		Detail:   fmt.Sprintf("future_dated=%d", future),
	})

	return checks, nil
}

func nextPeriodStart(year int, month time.Month) time.Time {
	return ledger.PeriodStart(year, month).AddDate(0, 1, 0)
}

// periodClosedTx is the lock the transaction engine consults before
// every write.
func periodClosedTx(ctx context.Context, q querier, ledgerID string, year, month int) (bool, error) {
	var status string
	err := q.QueryRowContext(ctx,
		`SELECT status FROM periods WHERE ledger_id = ? AND year = ? AND month = ?`,
		ledgerID, year, month).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("period status: %w", err)
	}
	return status == string(ledger.PeriodClosed), nil
}

func (s *Store) GetPeriod(ctx context.Context, ledgerID string, year int, month time.Month) (*ledger.Period, error) {
	return getPeriodTx(ctx, s.reader, ledgerID, year, int(month))
}

func (s *Store) ListPeriods(ctx context.Context, ledgerID string) ([]ledger.Period, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT ledger_id, year, month, status, closing_hash, trial_balance_snapshot, notes, closed_at
		FROM periods WHERE ledger_id = ? ORDER BY year, month`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var periods []ledger.Period
	for rows.Next() {
		p, err := scanPeriod(rows.Scan)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func getPeriodTx(ctx context.Context, q querier, ledgerID string, year, month int) (*ledger.Period, error) {
	row := q.QueryRowContext(ctx,
		`SELECT ledger_id, year, month, status, closing_hash, trial_balance_snapshot, notes, closed_at
		FROM periods WHERE ledger_id = ? AND year = ? AND month = ?`, ledgerID, year, month)
	p, err := scanPeriod(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrPeriodNotFound
	}
	return p, err
}

func scanPeriod(scan func(dest ...any) error) (*ledger.Period, error) {
	var p ledger.Period
	var month int
	var status string
	var hash, snapshot, notes, closedAt sql.NullString

	if err := scan(&p.LedgerID, &p.Year, &month, &status, &hash, &snapshot, &notes, &closedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan period: %w", err)
	}

	p.Month = time.Month(month)
	p.Status = ledger.PeriodStatus(status)
	p.ClosingHash = hash.String
	p.Notes = notes.String
	p.ClosedAt = parseNullTime(closedAt)

	if snapshot.Valid && snapshot.String != "" {
		var tb ledger.TrialBalance
		if err := json.Unmarshal([]byte(snapshot.String), &tb); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		p.Snapshot = &tb
	}

	return &p, nil
}
