package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tallyhq/tally/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders the rejection with its stable machine code so
// callers can branch without parsing prose.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapError(err), errorResponse{Error: err.Error(), Code: ledger.Code(err)})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: "BAD_REQUEST"})
}

func mapError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrInvoiceNotFound),
		errors.Is(err, ledger.ErrPeriodNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrPeriodClosed),
		errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, ledger.ErrAlreadyVoid),
		errors.Is(err, ledger.ErrCannotVoidPaid),
		errors.Is(err, ledger.ErrAlreadyReversed),
		errors.Is(err, ledger.ErrPreflightFailed):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrExceedsAmountDue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrUnbalancedEntries),
		errors.Is(err, ledger.ErrTooFewEntries),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidEntrySide),
		errors.Is(err, ledger.ErrEmptyDescription),
		errors.Is(err, ledger.ErrLedgerRequired),
		errors.Is(err, ledger.ErrReferenceRequired),
		errors.Is(err, ledger.ErrUnknownAccountType),
		errors.Is(err, ledger.ErrUnknownTransactionType),
		errors.Is(err, ledger.ErrEntityRequired),
		errors.Is(err, ledger.ErrEntityNotAllowed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// actor identifies the caller for the audit trail. Authentication is
// out of scope; the header is trusted as supplied.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "api"
}
