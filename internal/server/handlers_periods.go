package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/store"
)

func periodParams(r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 {
		return 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}

type closePeriodRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) closePeriod(w http.ResponseWriter, r *http.Request) {
	year, month, ok := periodParams(r)
	if !ok {
		writeBadRequest(w, "invalid year/month")
		return
	}

	var req closePeriodRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON: "+err.Error())
			return
		}
	}

	result, err := s.store.ClosePeriod(r.Context(), store.ClosePeriodParams{
		LedgerID: chi.URLParam(r, "ledger"),
		Year:     year,
		Month:    month,
		Notes:    req.Notes,
		Actor:    actor(r),
	})
	if err != nil {
		// A failed preflight still reports its check list.
		if errors.Is(err, ledger.ErrPreflightFailed) && result != nil {
			writeJSON(w, http.StatusConflict, struct {
				errorResponse
				Checks []ledger.PreflightCheck `json:"checks"`
			}{
				errorResponse{Error: err.Error(), Code: ledger.Code(err)},
				result.Checks,
			})
			return
		}
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyClosed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) getPeriod(w http.ResponseWriter, r *http.Request) {
	year, month, ok := periodParams(r)
	if !ok {
		writeBadRequest(w, "invalid year/month")
		return
	}

	period, err := s.store.GetPeriod(r.Context(), chi.URLParam(r, "ledger"), year, month)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, period)
}

func (s *Server) listPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.store.ListPeriods(r.Context(), chi.URLParam(r, "ledger"))
	if err != nil {
		writeError(w, err)
		return
	}
	if periods == nil {
		periods = []ledger.Period{}
	}
	writeJSON(w, http.StatusOK, periods)
}
