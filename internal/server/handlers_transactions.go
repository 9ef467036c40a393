package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/store"
)

type entryRequest struct {
	AccountType string `json:"account_type" validate:"required"`
	EntityID    string `json:"entity_id"`
	Side        string `json:"side" validate:"required,oneof=debit credit"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

type createTransactionRequest struct {
	ReferenceID   string           `json:"reference_id"`
	Type          string           `json:"transaction_type" validate:"required"`
	Description   string           `json:"description" validate:"required"`
	EffectiveDate string           `json:"effective_date"`
	Entries       []entryRequest   `json:"entries" validate:"required,min=2,dive"`
	Metadata      *ledger.Metadata `json:"metadata"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	// The Idempotency-Key header and body reference_id are the same
	// thing; the header wins when both are present.
	refID := r.Header.Get("Idempotency-Key")
	if refID == "" {
		refID = req.ReferenceID
	}

	var effective time.Time
	if req.EffectiveDate != "" {
		var err error
		effective, err = time.Parse("2006-01-02", req.EffectiveDate)
		if err != nil {
			writeBadRequest(w, "invalid effective_date, expected YYYY-MM-DD")
			return
		}
	}

	entries := make([]ledger.EntryInput, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = ledger.EntryInput{
			AccountType: e.AccountType,
			EntityID:    e.EntityID,
			Side:        ledger.Side(e.Side),
			Amount:      e.Amount,
		}
	}

	txn, err := s.store.CreateTransaction(r.Context(), store.CreateTransactionParams{
		LedgerID:      chi.URLParam(r, "ledger"),
		ReferenceID:   refID,
		Type:          ledger.TransactionType(req.Type),
		Description:   req.Description,
		EffectiveDate: effective,
		Entries:       entries,
		Metadata:      req.Metadata,
		Actor:         actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if txn.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, txn)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter := store.TxnFilter{
		AccountType: r.URL.Query().Get("account_type"),
		EntityID:    r.URL.Query().Get("entity_id"),
		Type:        ledger.TransactionType(r.URL.Query().Get("type")),
	}

	txns, err := s.store.ListTransactions(r.Context(), chi.URLParam(r, "ledger"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if txns == nil {
		txns = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.store.GetTransaction(r.Context(), chi.URLParam(r, "ledger"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON: "+err.Error())
			return
		}
	}

	reversal, err := s.store.ReverseTransaction(r.Context(),
		chi.URLParam(r, "ledger"), chi.URLParam(r, "id"), req.Reason, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reversal)
}
