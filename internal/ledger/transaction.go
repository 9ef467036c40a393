package ledger

import (
	"fmt"
	"time"
)

type TransactionType string

const (
	TypeSale       TransactionType = "sale"
	TypeRefund     TransactionType = "refund"
	TypePayout     TransactionType = "payout"
	TypeExpense    TransactionType = "expense"
	TypeAdjustment TransactionType = "adjustment"
	TypeReversal   TransactionType = "reversal"
)

var AllTransactionTypes = []TransactionType{
	TypeSale, TypeRefund, TypePayout, TypeExpense, TypeAdjustment, TypeReversal,
}

func ValidTransactionType(t TransactionType) bool {
	for _, v := range AllTransactionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// EntryInput is one caller-supplied line of a transaction, addressed by
// (account type, entity) rather than account id so accounts can be
// created lazily.
type EntryInput struct {
	AccountType string `json:"account_type"`
	EntityID    string `json:"entity_id,omitempty"`
	Side        Side   `json:"side"`
	Amount      int64  `json:"amount"`
}

// Entry is a persisted transaction line. Immutable once written.
type Entry struct {
	ID            int64     `json:"id,omitempty"`
	TransactionID string    `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	AccountType   string    `json:"account_type"`
	EntityID      string    `json:"entity_id,omitempty"`
	Side          Side      `json:"side"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Transaction is one business event. Entries are created atomically
// with it and never edited; corrections happen via reversal
// transactions, recorded in ReversedBy / Reverses.
type Transaction struct {
	ID            string          `json:"id"`
	LedgerID      string          `json:"ledger_id"`
	ReferenceID   string          `json:"reference_id"`
	Type          TransactionType `json:"transaction_type"`
	Description   string          `json:"description"`
	EffectiveDate time.Time       `json:"effective_date"`
	Metadata      *Metadata       `json:"metadata,omitempty"`
	ReversedBy    string          `json:"reversed_by,omitempty"`
	Reverses      string          `json:"reverses,omitempty"`
	Entries       []Entry         `json:"entries"`
	CreatedAt     time.Time       `json:"created_at"`

	// Replayed reports that this call was an idempotent replay and the
	// transaction was created by an earlier request.
	Replayed bool `json:"replayed,omitempty"`
}

// ValidateEntries checks the double-entry law on a proposed entry set:
// at least two entries, every amount strictly positive, known account
// types, and sum(debits) == sum(credits) in exact integer arithmetic.
func ValidateEntries(entries []EntryInput) error {
	if len(entries) < 2 {
		return ErrTooFewEntries
	}

	var debits, credits int64
	for i, e := range entries {
		if e.Amount <= 0 {
			return fmt.Errorf("%w: entry %d has amount %d", ErrInvalidAmount, i, e.Amount)
		}
		if !ValidSide(e.Side) {
			return fmt.Errorf("%w: entry %d has side %q", ErrInvalidEntrySide, i, e.Side)
		}
		if err := ValidateRef(e.AccountType, e.EntityID); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		switch e.Side {
		case SideDebit:
			debits += e.Amount
		case SideCredit:
			credits += e.Amount
		}
	}

	if debits != credits {
		return fmt.Errorf("%w: debits %d, credits %d", ErrUnbalancedEntries, debits, credits)
	}
	return nil
}

// BalanceDelta is the signed effect of an entry on an account's running
// balance: an entry on the account's normal side increases it, the
// opposite side decreases it.
func BalanceDelta(cat Category, side Side, amount int64) int64 {
	if NormalSide(cat) == side {
		return amount
	}
	return -amount
}

// MirrorEntries builds the reversal entry set: same accounts and
// amounts with debit and credit swapped.
func MirrorEntries(entries []Entry) []EntryInput {
	mirrored := make([]EntryInput, len(entries))
	for i, e := range entries {
		mirrored[i] = EntryInput{
			AccountType: e.AccountType,
			EntityID:    e.EntityID,
			Side:        e.Side.Opposite(),
			Amount:      e.Amount,
		}
	}
	return mirrored
}
