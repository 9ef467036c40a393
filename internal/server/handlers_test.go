package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/store"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, ":0").Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func saleBody(ref string) map[string]any {
	return map[string]any{
		"reference_id":     ref,
		"transaction_type": "sale",
		"description":      "order " + ref,
		"effective_date":   "2025-03-15",
		"entries": []map[string]any{
			{"account_type": "cash", "side": "debit", "amount": 10000},
			{"account_type": "creator_balance", "entity_id": "alice", "side": "credit", "amount": 9750},
			{"account_type": "platform_fees", "side": "credit", "amount": 250},
		},
	}
}

func TestCreateTransactionEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/transactions", saleBody("order-1"), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[ledger.Transaction](t, rec)
	assert.Equal(t, "order-1", created.ReferenceID)
	assert.Len(t, created.Entries, 3)

	t.Run("replay returns 200 with the original", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/transactions", saleBody("order-1"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		replay := decodeBody[ledger.Transaction](t, rec)
		assert.Equal(t, created.ID, replay.ID)
		assert.True(t, replay.Replayed)
	})

	t.Run("idempotency key header wins over body reference", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/transactions",
			saleBody("order-ignored"), map[string]string{"Idempotency-Key": "order-1"})
		assert.Equal(t, http.StatusOK, rec.Code)
		replay := decodeBody[ledger.Transaction](t, rec)
		assert.Equal(t, created.ID, replay.ID)
	})

	t.Run("unbalanced returns machine code", func(t *testing.T) {
		body := saleBody("order-2")
		body["entries"] = []map[string]any{
			{"account_type": "cash", "side": "debit", "amount": 100},
			{"account_type": "revenue", "side": "credit", "amount": 99},
		}
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/transactions", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "UNBALANCED_ENTRIES", resp["code"])
	})

	t.Run("unknown transaction is 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/ledgers/acme/transactions/nope", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		resp := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "TRANSACTION_NOT_FOUND", resp["code"])
	})

	t.Run("balances visible through the accounts api", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/ledgers/acme/accounts/creator_balance/alice/balance", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		bal := decodeBody[map[string]any](t, rec)
		assert.Equal(t, float64(9750), bal["balance"])
		assert.Equal(t, float64(9750), bal["available"])
	})
}

func TestReverseTransactionEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/transactions", saleBody("order-1"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[ledger.Transaction](t, rec)

	url := fmt.Sprintf("/api/v1/ledgers/acme/transactions/%s/reverse", created.ID)
	rec = doJSON(t, h, http.MethodPost, url, map[string]string{"reason": "chargeback"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rev := decodeBody[ledger.Transaction](t, rec)
	assert.Equal(t, created.ID, rev.Reverses)

	rec = doJSON(t, h, http.MethodPost, url, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ALREADY_REVERSED", resp["code"])
}

func TestInvoiceEndpoints(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/invoices", map[string]any{
		"customer_id": "cust-1",
		"due_at":      "2025-04-30",
		"line_items": []map[string]any{
			{"description": "consulting", "quantity": 8, "unit_price": 15000},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decodeBody[ledger.Invoice](t, rec)
	assert.Equal(t, ledger.InvoiceDraft, inv.Status)
	assert.Equal(t, int64(120000), inv.TotalAmount)

	base := "/api/v1/ledgers/acme/invoices/" + inv.ID

	t.Run("validation failures are 400", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/invoices", map[string]any{
			"customer_id": "cust-1",
			"line_items":  []map[string]any{},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pay before send is a state conflict", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, base+"/payments", map[string]any{"amount": 1000}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "INVALID_STATE", resp["code"])
	})

	t.Run("send then pay to completion", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, base+"/send", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		for i := 1; i <= 3; i++ {
			rec = doJSON(t, h, http.MethodPost, base+"/payments", map[string]any{
				"amount":       40000,
				"reference_id": fmt.Sprintf("pay-%d", i),
			}, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}

		got := decodeBody[ledger.Invoice](t, rec)
		assert.Equal(t, ledger.InvoicePaid, got.Status)
		assert.Equal(t, int64(0), got.AmountDue)
	})

	t.Run("overpayment is 422", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/invoices", map[string]any{
			"customer_id": "cust-2",
			"line_items": []map[string]any{
				{"description": "setup", "quantity": 1, "unit_price": 5000},
			},
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		small := decodeBody[ledger.Invoice](t, rec)

		rec = doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/invoices/"+small.ID+"/send", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/invoices/"+small.ID+"/payments",
			map[string]any{"amount": 5001}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "EXCEEDS_AMOUNT_DUE", resp["code"])
	})

	t.Run("void paid is a conflict", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, base+"/void", nil, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "CANNOT_VOID_PAID", resp["code"])
	})
}

func TestPeriodEndpoints(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/transactions", saleBody("order-1"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("close succeeds with snapshot hash", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/periods/2025/3/close",
			map[string]string{"notes": "month end"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		result := decodeBody[ledger.PeriodCloseResult](t, rec)
		assert.Len(t, result.Period.ClosingHash, 64)
	})

	t.Run("re-close replays with 200", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/periods/2025/3/close", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		result := decodeBody[ledger.PeriodCloseResult](t, rec)
		assert.True(t, result.AlreadyClosed)
	})

	t.Run("posting into a closed period is a conflict", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/transactions", saleBody("order-late"), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "PERIOD_CLOSED", resp["code"])
	})

	t.Run("blocked close reports its checks", func(t *testing.T) {
		// May 2025 cannot close while April, which saw no close, sits
		// between it and the closed March. Post April activity first.
		body := saleBody("order-apr")
		body["effective_date"] = "2025-04-10"
		rec := doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/transactions", body, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, h, http.MethodPost, "/api/v1/ledgers/acme/periods/2025/5/close", nil, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp struct {
			Code   string                  `json:"code"`
			Checks []ledger.PreflightCheck `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "PREFLIGHT_FAILED", resp.Code)
		assert.NotEmpty(t, resp.Checks)
	})

	t.Run("trial balance report", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/ledgers/acme/reports/trial-balance", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		tb := decodeBody[ledger.TrialBalance](t, rec)
		assert.True(t, tb.Balanced)
	})

	t.Run("audit trail lists actions", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/ledgers/acme/audit", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		entries := decodeBody[[]store.AuditEntry](t, rec)
		assert.NotEmpty(t, entries)
	})
}
