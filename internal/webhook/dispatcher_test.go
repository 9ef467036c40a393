package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/ledger"
)

type fakeRecorder struct {
	evt       ledger.Event
	payload   []byte
	signature string
	delivered bool
	calls     int
}

func (r *fakeRecorder) RecordWebhookDelivery(_ context.Context, evt ledger.Event, payload []byte, signature, _ string, delivered bool) error {
	r.evt = evt
	r.payload = payload
	r.signature = signature
	r.delivered = delivered
	r.calls++
	return nil
}

func TestDispatcherEmit(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	d := NewDispatcher(srv.URL, "shh", rec)

	evt := ledger.NewEvent(ledger.EventInvoicePaid, "acme", map[string]string{"invoice": "inv-1"})
	d.Emit(evt)

	require.NotEmpty(t, gotBody)
	assert.True(t, NewSigner("shh").Verify(gotBody, gotSig), "receiver can verify the signature")

	var decoded ledger.Event
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, ledger.EventInvoicePaid, decoded.Type)
	assert.Equal(t, "acme", decoded.LedgerID)

	assert.Equal(t, 1, rec.calls)
	assert.True(t, rec.delivered)
	assert.Equal(t, gotSig, rec.signature)
}

func TestDispatcherBooksFailedDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	d := NewDispatcher(srv.URL, "shh", rec)

	d.Emit(ledger.NewEvent(ledger.EventPeriodClosed, "acme", nil))

	assert.Equal(t, 1, rec.calls, "failed deliveries are still booked")
	assert.False(t, rec.delivered)
}

func TestDispatcherNoEndpoint(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDispatcher("", "shh", rec)

	d.Emit(ledger.NewEvent(ledger.EventTransactionCreated, "acme", nil))

	assert.Equal(t, 1, rec.calls, "signing and bookkeeping happen even without an endpoint")
	assert.False(t, rec.delivered)
	assert.NotEmpty(t, rec.signature)
}
