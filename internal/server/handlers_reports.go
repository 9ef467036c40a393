package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	if year != 0 && (month < 1 || month > 12) {
		writeBadRequest(w, "month required with year")
		return
	}

	tb, err := s.store.TrialBalance(r.Context(), chi.URLParam(r, "ledger"), year, time.Month(month))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
	bs, err := s.store.BalanceSheet(r.Context(), chi.URLParam(r, "ledger"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

func (s *Server) arAging(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeBadRequest(w, "invalid as_of, expected YYYY-MM-DD")
			return
		}
		asOf = t
	}

	aging, err := s.store.ARAging(r.Context(), chi.URLParam(r, "ledger"), asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aging)
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.store.ListAudit(r.Context(), chi.URLParam(r, "ledger"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
