package ledger

import (
	"fmt"
	"time"
)

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceVoid    InvoiceStatus = "void"
)

// LineItem is one billed line on an invoice. UnitPrice and Amount are
// minor units; Amount = Quantity * UnitPrice.
type LineItem struct {
	ID          int64  `json:"id,omitempty"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Amount      int64  `json:"amount"`
}

// Invoice is the mutable AR projection. The money itself moves only
// through transactions: sending posts the AR transaction, payments and
// voids post against it.
//
// Invariant: AmountPaid + AmountDue == TotalAmount, always.
type Invoice struct {
	ID            string        `json:"id"`
	LedgerID      string        `json:"ledger_id"`
	CustomerID    string        `json:"customer_id"`
	Status        InvoiceStatus `json:"status"`
	TotalAmount   int64         `json:"total_amount"`
	AmountPaid    int64         `json:"amount_paid"`
	AmountDue     int64         `json:"amount_due"`
	LineItems     []LineItem    `json:"line_items"`
	TransactionID string        `json:"transaction_id,omitempty"`
	SentAt        *time.Time    `json:"sent_at,omitempty"`
	DueAt         *time.Time    `json:"due_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ValidateDraft checks a new draft invoice: a customer, at least one
// line item, and strictly positive quantities and prices.
func (inv *Invoice) ValidateDraft() error {
	if inv.LedgerID == "" {
		return ErrLedgerRequired
	}
	if inv.CustomerID == "" {
		return fmt.Errorf("customer id is required")
	}
	if len(inv.LineItems) == 0 {
		return fmt.Errorf("%w: invoice needs at least one line item", ErrInvalidAmount)
	}
	for i, li := range inv.LineItems {
		if li.Description == "" {
			return fmt.Errorf("line item %d: %w", i, ErrEmptyDescription)
		}
		if li.Quantity <= 0 || li.UnitPrice <= 0 {
			return fmt.Errorf("%w: line item %d", ErrInvalidAmount, i)
		}
	}
	return nil
}

// ComputeTotals fills per-line amounts and the invoice totals for a draft.
func (inv *Invoice) ComputeTotals() {
	var total int64
	for i := range inv.LineItems {
		inv.LineItems[i].Amount = inv.LineItems[i].Quantity * inv.LineItems[i].UnitPrice
		total += inv.LineItems[i].Amount
	}
	inv.TotalAmount = total
	inv.AmountDue = total - inv.AmountPaid
}

// CheckSend guards the draft -> sent transition.
func (inv *Invoice) CheckSend() error {
	if inv.Status != InvoiceDraft {
		return fmt.Errorf("%w: cannot send %s invoice", ErrInvalidState, inv.Status)
	}
	if len(inv.LineItems) == 0 || inv.TotalAmount <= 0 {
		return fmt.Errorf("%w: invoice has no billable amount", ErrInvalidAmount)
	}
	return nil
}

// CheckPayment guards RecordPayment: positive amount, payable state,
// and no overshoot past the remaining balance. Overshooting payments
// are rejected outright rather than capped.
func (inv *Invoice) CheckPayment(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: payment of %d", ErrInvalidAmount, amount)
	}
	switch inv.Status {
	case InvoiceSent, InvoicePartial:
	default:
		return fmt.Errorf("%w: cannot pay %s invoice", ErrInvalidState, inv.Status)
	}
	if amount > inv.AmountDue {
		return fmt.Errorf("%w: payment %d, due %d", ErrExceedsAmountDue, amount, inv.AmountDue)
	}
	return nil
}

// CheckVoid guards the void transition. Paid invoices are terminal in
// the other direction and can never be voided.
func (inv *Invoice) CheckVoid() error {
	switch inv.Status {
	case InvoiceVoid:
		return ErrAlreadyVoid
	case InvoicePaid:
		return ErrCannotVoidPaid
	default:
		return nil
	}
}

// StatusAfterPayment is the status once amount has been applied.
func (inv *Invoice) StatusAfterPayment(amount int64) InvoiceStatus {
	if inv.AmountDue-amount == 0 {
		return InvoicePaid
	}
	return InvoicePartial
}
