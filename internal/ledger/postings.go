package ledger

import "fmt"

// Posting rule builders for the platform's business events. Each
// returns an entry set that ValidateEntries accepts; the caller wraps
// it in CreateTransaction with its own reference id.

// SaleEntries records a customer sale split between the platform fee
// and the creator's balance: cash in for the gross, fee to platform
// revenue, remainder owed to the creator.
func SaleEntries(gross, fee int64, creatorID string) ([]EntryInput, error) {
	if gross <= 0 {
		return nil, fmt.Errorf("%w: gross %d", ErrInvalidAmount, gross)
	}
	if fee < 0 || fee >= gross {
		return nil, fmt.Errorf("%w: fee %d must be in [0, gross)", ErrInvalidAmount, fee)
	}
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator_balance", ErrEntityRequired)
	}
	entries := []EntryInput{
		{AccountType: "cash", Side: SideDebit, Amount: gross},
		{AccountType: "creator_balance", EntityID: creatorID, Side: SideCredit, Amount: gross - fee},
	}
	if fee > 0 {
		entries = append(entries, EntryInput{AccountType: "platform_fees", Side: SideCredit, Amount: fee})
	}
	return entries, nil
}

// RefundEntries returns money to a customer, unwinding a sale's split:
// cash out for the gross, the creator gives back their share, and the
// fee the platform hands back is booked to the refunds expense.
func RefundEntries(gross, fee int64, creatorID string) ([]EntryInput, error) {
	if gross <= 0 {
		return nil, fmt.Errorf("%w: refund %d", ErrInvalidAmount, gross)
	}
	if fee < 0 || fee >= gross {
		return nil, fmt.Errorf("%w: fee %d must be in [0, gross)", ErrInvalidAmount, fee)
	}
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator_balance", ErrEntityRequired)
	}
	entries := []EntryInput{
		{AccountType: "creator_balance", EntityID: creatorID, Side: SideDebit, Amount: gross - fee},
		{AccountType: "cash", Side: SideCredit, Amount: gross},
	}
	if fee > 0 {
		entries = append(entries, EntryInput{AccountType: "refunds", Side: SideDebit, Amount: fee})
	}
	return entries, nil
}

// PayoutEntries settles a creator's balance out to them in cash. The
// engine's strict-account floor rejects payouts past available funds.
func PayoutEntries(amount int64, creatorID string) ([]EntryInput, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payout %d", ErrInvalidAmount, amount)
	}
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator_balance", ErrEntityRequired)
	}
	return []EntryInput{
		{AccountType: "creator_balance", EntityID: creatorID, Side: SideDebit, Amount: amount},
		{AccountType: "cash", Side: SideCredit, Amount: amount},
	}, nil
}

// ExpenseEntries records an operating expense paid in cash.
func ExpenseEntries(amount int64) ([]EntryInput, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: expense %d", ErrInvalidAmount, amount)
	}
	return []EntryInput{
		{AccountType: "expense", Side: SideDebit, Amount: amount},
		{AccountType: "cash", Side: SideCredit, Amount: amount},
	}, nil
}

// WithholdingEntries moves part of a creator's balance into the tax
// withholding liability.
func WithholdingEntries(amount int64, creatorID string) ([]EntryInput, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withholding %d", ErrInvalidAmount, amount)
	}
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator_balance", ErrEntityRequired)
	}
	return []EntryInput{
		{AccountType: "creator_balance", EntityID: creatorID, Side: SideDebit, Amount: amount},
		{AccountType: "tax_withheld", Side: SideCredit, Amount: amount},
	}, nil
}
