package ledger

import "errors"

var (
	ErrUnbalancedEntries      = errors.New("transaction entries do not balance")
	ErrTooFewEntries          = errors.New("transaction must have at least 2 entries")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidEntrySide       = errors.New("entry side must be debit or credit")
	ErrEmptyDescription       = errors.New("description is required")
	ErrLedgerRequired         = errors.New("ledger id is required")
	ErrReferenceRequired      = errors.New("reference id is required")
	ErrUnknownAccountType     = errors.New("unknown account type")
	ErrUnknownTransactionType = errors.New("unknown transaction type")
	ErrEntityRequired         = errors.New("account type requires an entity id")
	ErrEntityNotAllowed       = errors.New("account type does not take an entity id")

	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrPeriodNotFound      = errors.New("period not found")

	ErrPeriodClosed      = errors.New("period is closed")
	ErrInsufficientFunds = errors.New("insufficient available funds")
	ErrExceedsAmountDue  = errors.New("payment exceeds amount due")
	ErrInvalidState      = errors.New("invalid invoice state for this operation")
	ErrAlreadyVoid       = errors.New("invoice is already void")
	ErrCannotVoidPaid    = errors.New("paid invoices cannot be voided")
	ErrAlreadyReversed   = errors.New("transaction is already fully reversed")
	ErrPreflightFailed   = errors.New("period close preflight failed")
)

// Code returns the stable machine-readable code for an error. Calling
// layers branch on these, never on the message text.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnbalancedEntries):
		return "UNBALANCED_ENTRIES"
	case errors.Is(err, ErrTooFewEntries):
		return "TOO_FEW_ENTRIES"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInvalidEntrySide):
		return "INVALID_ENTRY_SIDE"
	case errors.Is(err, ErrEmptyDescription):
		return "EMPTY_DESCRIPTION"
	case errors.Is(err, ErrLedgerRequired):
		return "LEDGER_REQUIRED"
	case errors.Is(err, ErrReferenceRequired):
		return "REFERENCE_REQUIRED"
	case errors.Is(err, ErrUnknownAccountType):
		return "UNKNOWN_ACCOUNT_TYPE"
	case errors.Is(err, ErrUnknownTransactionType):
		return "UNKNOWN_TRANSACTION_TYPE"
	case errors.Is(err, ErrEntityRequired):
		return "ENTITY_REQUIRED"
	case errors.Is(err, ErrEntityNotAllowed):
		return "ENTITY_NOT_ALLOWED"
	case errors.Is(err, ErrAccountNotFound):
		return "ACCOUNT_NOT_FOUND"
	case errors.Is(err, ErrTransactionNotFound):
		return "TRANSACTION_NOT_FOUND"
	case errors.Is(err, ErrInvoiceNotFound):
		return "INVOICE_NOT_FOUND"
	case errors.Is(err, ErrPeriodNotFound):
		return "PERIOD_NOT_FOUND"
	case errors.Is(err, ErrPeriodClosed):
		return "PERIOD_CLOSED"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrExceedsAmountDue):
		return "EXCEEDS_AMOUNT_DUE"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrAlreadyVoid):
		return "ALREADY_VOID"
	case errors.Is(err, ErrCannotVoidPaid):
		return "CANNOT_VOID_PAID"
	case errors.Is(err, ErrAlreadyReversed):
		return "ALREADY_REVERSED"
	case errors.Is(err, ErrPreflightFailed):
		return "PREFLIGHT_FAILED"
	default:
		return "INTERNAL"
	}
}
