package ledger

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event emitted after a successful state
// transition. Delivery retry/backoff belongs to the dispatcher, not the
// engine.
type EventType string

const (
	EventTransactionCreated  EventType = "transaction.created"
	EventTransactionReversed EventType = "transaction.reversed"
	EventInvoiceSent         EventType = "invoice.sent"
	EventInvoicePaid         EventType = "invoice.paid"
	EventInvoiceVoided       EventType = "invoice.voided"
	EventPayoutProcessed     EventType = "payout.processed"
	EventPeriodClosed        EventType = "period.closed"
)

// Event is the envelope handed to the webhook dispatcher.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	LedgerID  string    `json:"ledger_id"`
	CreatedAt time.Time `json:"created_at"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps a fresh envelope.
func NewEvent(typ EventType, ledgerID string, payload any) Event {
	return Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      typ,
		LedgerID:  ledgerID,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}
