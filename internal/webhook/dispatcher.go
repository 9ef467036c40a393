package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/tallyhq/tally/internal/ledger"
)

// DeliveryRecorder books each signed delivery attempt. The store
// implements it.
type DeliveryRecorder interface {
	RecordWebhookDelivery(ctx context.Context, evt ledger.Event, payload []byte, signature, endpoint string, delivered bool) error
}

// Dispatcher signs domain events and posts them to the configured
// endpoint. Delivery is best-effort and fire-once: retry/backoff is the
// receiving infrastructure's concern, the engine only signs and books.
type Dispatcher struct {
	endpoint string
	signer   *Signer
	recorder DeliveryRecorder
	client   *http.Client
}

func NewDispatcher(endpoint, secret string, recorder DeliveryRecorder) *Dispatcher {
	return &Dispatcher{
		endpoint: endpoint,
		signer:   NewSigner(secret),
		recorder: recorder,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Emit signs and delivers one event. Safe to call from the store's
// post-commit hook; errors are logged, never propagated back into the
// committed operation.
func (d *Dispatcher) Emit(evt ledger.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("webhook: marshal event %s: %v", evt.ID, err)
		return
	}
	signature := d.signer.Sign(payload)

	delivered := false
	if d.endpoint != "" {
		delivered = d.post(payload, signature)
	}

	if d.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.recorder.RecordWebhookDelivery(ctx, evt, payload, signature, d.endpoint, delivered); err != nil {
			log.Printf("webhook: record delivery %s: %v", evt.ID, err)
		}
	}
}

func (d *Dispatcher) post(payload []byte, signature string) bool {
	req, err := http.NewRequest(http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		log.Printf("webhook: build request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("webhook: deliver to %s: %v", d.endpoint, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("webhook: endpoint %s returned %d", d.endpoint, resp.StatusCode)
		return false
	}
	return true
}
