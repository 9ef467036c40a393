package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/store"
)

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	filter := store.AccountFilter{
		Type:   r.URL.Query().Get("type"),
		Entity: r.URL.Query().Get("entity"),
	}

	accounts, err := s.store.ListAccounts(r.Context(), chi.URLParam(r, "ledger"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

type balanceResponse struct {
	LedgerID    string `json:"ledger_id"`
	AccountType string `json:"account_type"`
	EntityID    string `json:"entity_id,omitempty"`
	Balance     int64  `json:"balance"`
	HeldAmount  int64  `json:"held_amount"`
	Available   int64  `json:"available"`
}

func (s *Server) getAccountBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := s.store.GetAccount(r.Context(),
		chi.URLParam(r, "ledger"), chi.URLParam(r, "type"), chi.URLParam(r, "entity"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		LedgerID:    acct.LedgerID,
		AccountType: acct.Type,
		EntityID:    acct.EntityID,
		Balance:     acct.Balance,
		HeldAmount:  acct.HeldAmount,
		Available:   acct.Available(),
	})
}

func (s *Server) getAccountActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	lines, err := s.store.AccountActivity(r.Context(),
		chi.URLParam(r, "ledger"), chi.URLParam(r, "type"), chi.URLParam(r, "entity"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if lines == nil {
		lines = []store.ActivityLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) setAccountMetadata(w http.ResponseWriter, r *http.Request) {
	var md ledger.Metadata
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	ledgerID := chi.URLParam(r, "ledger")
	accountType := chi.URLParam(r, "type")
	entityID := chi.URLParam(r, "entity")

	if err := s.store.SetAccountMetadata(r.Context(), ledgerID, accountType, entityID, &md); err != nil {
		writeError(w, err)
		return
	}

	acct, err := s.store.GetAccount(r.Context(), ledgerID, accountType, entityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type holdRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason"`
}

func (s *Server) holdFunds(w http.ResponseWriter, r *http.Request) {
	s.adjustHold(w, r, s.store.HoldFunds)
}

func (s *Server) releaseHold(w http.ResponseWriter, r *http.Request) {
	s.adjustHold(w, r, s.store.ReleaseHold)
}

func (s *Server) adjustHold(w http.ResponseWriter, r *http.Request, op func(context.Context, store.HoldParams) (*ledger.Account, error)) {
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	acct, err := op(r.Context(), store.HoldParams{
		LedgerID:    chi.URLParam(r, "ledger"),
		AccountType: chi.URLParam(r, "type"),
		EntityID:    chi.URLParam(r, "entity"),
		Amount:      req.Amount,
		Reason:      req.Reason,
		Actor:       actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}
