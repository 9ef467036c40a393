package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

// Period is one calendar month of a ledger. A period with no row is
// open; a closed row is terminal and carries the trial balance snapshot
// taken at close time plus its integrity hash.
type Period struct {
	LedgerID    string        `json:"ledger_id"`
	Year        int           `json:"year"`
	Month       time.Month    `json:"month"`
	Status      PeriodStatus  `json:"status"`
	ClosingHash string        `json:"closing_hash,omitempty"`
	Snapshot    *TrialBalance `json:"trial_balance_snapshot,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	ClosedAt    *time.Time    `json:"closed_at,omitempty"`
}

// PeriodOf extracts the (year, month) a timestamp falls in, in UTC.
func PeriodOf(t time.Time) (int, time.Month) {
	u := t.UTC()
	return u.Year(), u.Month()
}

// PriorPeriod returns the calendar month before (year, month).
func PriorPeriod(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// PeriodStart is midnight UTC on the first day of the period.
func PeriodStart(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// TrialBalanceLine is one account's debit and credit totals.
type TrialBalanceLine struct {
	AccountType string `json:"account_type"`
	EntityID    string `json:"entity_id,omitempty"`
	Debit       int64  `json:"debit"`
	Credit      int64  `json:"credit"`
}

type TrialBalance struct {
	Lines       []TrialBalanceLine `json:"lines"`
	TotalDebit  int64              `json:"total_debit"`
	TotalCredit int64              `json:"total_credit"`
	Balanced    bool               `json:"balanced"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// CanonicalJSON serializes the snapshot deterministically: lines sorted
// by (account type, entity), generation timestamp excluded so the hash
// depends only on the accounting data.
func (tb *TrialBalance) CanonicalJSON() ([]byte, error) {
	lines := make([]TrialBalanceLine, len(tb.Lines))
	copy(lines, tb.Lines)
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AccountType != lines[j].AccountType {
			return lines[i].AccountType < lines[j].AccountType
		}
		return lines[i].EntityID < lines[j].EntityID
	})

	canonical := struct {
		Lines       []TrialBalanceLine `json:"lines"`
		TotalDebit  int64              `json:"total_debit"`
		TotalCredit int64              `json:"total_credit"`
	}{lines, tb.TotalDebit, tb.TotalCredit}

	return json.Marshal(canonical)
}

// SnapshotHash is the tamper-evident digest recorded at period close:
// SHA-256 over the canonical serialization, hex encoded.
func SnapshotHash(tb *TrialBalance) (string, error) {
	raw, err := tb.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("canonicalize snapshot: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// PreflightSeverity distinguishes blocking checks from informational ones.
type PreflightSeverity string

const (
	SeverityRequired PreflightSeverity = "required"
	SeverityWarning  PreflightSeverity = "warning"
)

// PreflightCheck is one pass/fail/warn item evaluated before a close.
type PreflightCheck struct {
	Name     string            `json:"name"`
	Severity PreflightSeverity `json:"severity"`
	OK       bool              `json:"ok"`
	Detail   string            `json:"detail,omitempty"`
}

// Blocking reports whether any required check failed.
func Blocking(checks []PreflightCheck) bool {
	for _, c := range checks {
		if c.Severity == SeverityRequired && !c.OK {
			return true
		}
	}
	return false
}

// PeriodCloseResult is what ClosePeriod returns, including on idempotent
// replays of an already-closed period.
type PeriodCloseResult struct {
	Period        Period           `json:"period"`
	Checks        []PreflightCheck `json:"checks,omitempty"`
	AlreadyClosed bool             `json:"already_closed,omitempty"`
}
