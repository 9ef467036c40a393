package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/store"
)

type lineItemRequest struct {
	Description string `json:"description" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	UnitPrice   int64  `json:"unit_price" validate:"required,gt=0"`
}

type createInvoiceRequest struct {
	CustomerID string            `json:"customer_id" validate:"required"`
	LineItems  []lineItemRequest `json:"line_items" validate:"required,min=1,dive"`
	DueAt      string            `json:"due_at"`
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var dueAt *time.Time
	if req.DueAt != "" {
		t, err := time.Parse("2006-01-02", req.DueAt)
		if err != nil {
			writeBadRequest(w, "invalid due_at, expected YYYY-MM-DD")
			return
		}
		dueAt = &t
	}

	items := make([]ledger.LineItem, len(req.LineItems))
	for i, li := range req.LineItems {
		items[i] = ledger.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
		}
	}

	inv, err := s.store.CreateInvoice(r.Context(), store.CreateInvoiceParams{
		LedgerID:   chi.URLParam(r, "ledger"),
		CustomerID: req.CustomerID,
		LineItems:  items,
		DueAt:      dueAt,
		Actor:      actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	filter := store.InvoiceFilter{
		Status:     ledger.InvoiceStatus(r.URL.Query().Get("status")),
		CustomerID: r.URL.Query().Get("customer_id"),
	}

	invoices, err := s.store.ListInvoices(r.Context(), chi.URLParam(r, "ledger"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if invoices == nil {
		invoices = []ledger.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.store.GetInvoice(r.Context(), chi.URLParam(r, "ledger"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) sendInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.store.SendInvoice(r.Context(), chi.URLParam(r, "ledger"), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type paymentRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	ReferenceID string `json:"reference_id"`
}

func (s *Server) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	refID := r.Header.Get("Idempotency-Key")
	if refID == "" {
		refID = req.ReferenceID
	}

	inv, err := s.store.RecordPayment(r.Context(), store.RecordPaymentParams{
		LedgerID:    chi.URLParam(r, "ledger"),
		InvoiceID:   chi.URLParam(r, "id"),
		Amount:      req.Amount,
		ReferenceID: refID,
		Actor:       actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) voidInvoice(w http.ResponseWriter, r *http.Request) {
	var req voidRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON: "+err.Error())
			return
		}
	}

	inv, err := s.store.VoidInvoice(r.Context(), chi.URLParam(r, "ledger"), chi.URLParam(r, "id"), req.Reason, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
