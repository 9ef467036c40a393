package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/store"
)

// Client talks to a tally server. Used by the CLI subcommands.
type Client struct {
	baseURL    string
	ledgerID   string
	httpClient *http.Client
}

func New(baseURL, ledgerID string) *Client {
	return &Client{
		baseURL:  baseURL,
		ledgerID: ledgerID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a server rejection with its machine code preserved.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

type EntryRequest struct {
	AccountType string `json:"account_type"`
	EntityID    string `json:"entity_id,omitempty"`
	Side        string `json:"side"`
	Amount      int64  `json:"amount"`
}

type CreateTransactionRequest struct {
	ReferenceID   string         `json:"reference_id"`
	Type          string         `json:"transaction_type"`
	Description   string         `json:"description"`
	EffectiveDate string         `json:"effective_date,omitempty"`
	Entries       []EntryRequest `json:"entries"`
}

func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*ledger.Transaction, error) {
	var result ledger.Transaction
	if err := c.post(ctx, c.path("transactions"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	var result ledger.Transaction
	if err := c.get(ctx, c.path("transactions/"+url.PathEscape(id)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListTransactions(ctx context.Context, accountType, entityID string) ([]ledger.Transaction, error) {
	params := url.Values{}
	if accountType != "" {
		params.Set("account_type", accountType)
	}
	if entityID != "" {
		params.Set("entity_id", entityID)
	}
	var result []ledger.Transaction
	if err := c.get(ctx, c.path("transactions")+"?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) ReverseTransaction(ctx context.Context, id, reason string) (*ledger.Transaction, error) {
	var result ledger.Transaction
	body := map[string]string{"reason": reason}
	if err := c.post(ctx, c.path("transactions/"+url.PathEscape(id)+"/reverse"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	var result []ledger.Account
	if err := c.get(ctx, c.path("accounts"), &result); err != nil {
		return nil, err
	}
	return result, nil
}

type BalanceResponse struct {
	LedgerID    string `json:"ledger_id"`
	AccountType string `json:"account_type"`
	EntityID    string `json:"entity_id,omitempty"`
	Balance     int64  `json:"balance"`
	HeldAmount  int64  `json:"held_amount"`
	Available   int64  `json:"available"`
}

func (c *Client) AccountBalance(ctx context.Context, accountType, entityID string) (*BalanceResponse, error) {
	var result BalanceResponse
	if err := c.get(ctx, c.accountPath(accountType, entityID, "balance"), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) AccountActivity(ctx context.Context, accountType, entityID string) ([]store.ActivityLine, error) {
	var result []store.ActivityLine
	if err := c.get(ctx, c.accountPath(accountType, entityID, "entries"), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) HoldFunds(ctx context.Context, accountType, entityID string, amount int64, reason string) (*ledger.Account, error) {
	var result ledger.Account
	body := map[string]any{"amount": amount, "reason": reason}
	if err := c.post(ctx, c.accountPath(accountType, entityID, "hold"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ReleaseHold(ctx context.Context, accountType, entityID string, amount int64, reason string) (*ledger.Account, error) {
	var result ledger.Account
	body := map[string]any{"amount": amount, "reason": reason}
	if err := c.post(ctx, c.accountPath(accountType, entityID, "release"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type LineItemRequest struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

type CreateInvoiceRequest struct {
	CustomerID string            `json:"customer_id"`
	LineItems  []LineItemRequest `json:"line_items"`
	DueAt      string            `json:"due_at,omitempty"`
}

func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*ledger.Invoice, error) {
	var result ledger.Invoice
	if err := c.post(ctx, c.path("invoices"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*ledger.Invoice, error) {
	var result ledger.Invoice
	if err := c.get(ctx, c.path("invoices/"+url.PathEscape(id)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListInvoices(ctx context.Context, status string) ([]ledger.Invoice, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	var result []ledger.Invoice
	if err := c.get(ctx, c.path("invoices")+"?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) SendInvoice(ctx context.Context, id string) (*ledger.Invoice, error) {
	var result ledger.Invoice
	if err := c.post(ctx, c.path("invoices/"+url.PathEscape(id)+"/send"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RecordPayment(ctx context.Context, id string, amount int64, referenceID string) (*ledger.Invoice, error) {
	var result ledger.Invoice
	body := map[string]any{"amount": amount, "reference_id": referenceID}
	if err := c.post(ctx, c.path("invoices/"+url.PathEscape(id)+"/payments"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) VoidInvoice(ctx context.Context, id, reason string) (*ledger.Invoice, error) {
	var result ledger.Invoice
	body := map[string]string{"reason": reason}
	if err := c.post(ctx, c.path("invoices/"+url.PathEscape(id)+"/void"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ClosePeriod(ctx context.Context, year, month int, notes string) (*ledger.PeriodCloseResult, error) {
	var result ledger.PeriodCloseResult
	body := map[string]string{"notes": notes}
	path := c.path(fmt.Sprintf("periods/%d/%d/close", year, month))
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListPeriods(ctx context.Context) ([]ledger.Period, error) {
	var result []ledger.Period
	if err := c.get(ctx, c.path("periods"), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) TrialBalance(ctx context.Context, year, month int) (*ledger.TrialBalance, error) {
	params := url.Values{}
	if year != 0 {
		params.Set("year", fmt.Sprint(year))
		params.Set("month", fmt.Sprint(month))
	}
	var result ledger.TrialBalance
	if err := c.get(ctx, c.path("reports/trial-balance")+"?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) BalanceSheet(ctx context.Context) (*store.BalanceSheet, error) {
	var result store.BalanceSheet
	if err := c.get(ctx, c.path("reports/balance-sheet"), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ARAging(ctx context.Context) (*store.ARAging, error) {
	var result store.ARAging
	if err := c.get(ctx, c.path("reports/ar-aging"), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) path(suffix string) string {
	return "/api/v1/ledgers/" + url.PathEscape(c.ledgerID) + "/" + suffix
}

func (c *Client) accountPath(accountType, entityID, suffix string) string {
	p := "accounts/" + url.PathEscape(accountType)
	if entityID != "" {
		p += "/" + url.PathEscape(entityID)
	}
	return c.path(p + "/" + suffix)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error == "" {
			return &APIError{Status: resp.StatusCode, Code: "INTERNAL", Message: string(raw)}
		}
		return &APIError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
