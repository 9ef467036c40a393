package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/ledger"
)

func createDraft(t *testing.T, st *Store, ledgerID string, items ...ledger.LineItem) *ledger.Invoice {
	t.Helper()
	if len(items) == 0 {
		items = []ledger.LineItem{{Description: "consulting", Quantity: 8, UnitPrice: 15000}}
	}
	inv, err := st.CreateInvoice(context.Background(), CreateInvoiceParams{
		LedgerID:   ledgerID,
		CustomerID: "cust-1",
		LineItems:  items,
	})
	require.NoError(t, err)
	return inv
}

func TestInvoiceLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inv := createDraft(t, st, "acme")
	assert.Equal(t, ledger.InvoiceDraft, inv.Status)
	assert.Equal(t, int64(120000), inv.TotalAmount)
	assert.Equal(t, int64(120000), inv.AmountDue)

	t.Run("draft posts nothing", func(t *testing.T) {
		_, err := st.GetAccount(ctx, "acme", "accounts_receivable", "")
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})

	t.Run("send posts receivable against revenue", func(t *testing.T) {
		sent, err := st.SendInvoice(ctx, "acme", inv.ID, "tester")
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceSent, sent.Status)
		assert.NotEmpty(t, sent.TransactionID)
		require.NotNil(t, sent.SentAt)

		assert.Equal(t, int64(120000), accountBalance(t, st, "acme", "accounts_receivable", ""))
		assert.Equal(t, int64(120000), accountBalance(t, st, "acme", "revenue", ""))
	})

	t.Run("double send rejected", func(t *testing.T) {
		_, err := st.SendInvoice(ctx, "acme", inv.ID, "tester")
		assert.ErrorIs(t, err, ledger.ErrInvalidState)
	})

	t.Run("three partial payments reach paid", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			got, err := st.RecordPayment(ctx, RecordPaymentParams{
				LedgerID:    "acme",
				InvoiceID:   inv.ID,
				Amount:      40000,
				ReferenceID: fmt.Sprintf("pay-%d", i),
			})
			require.NoError(t, err)
			assert.Equal(t, int64(40000*i), got.AmountPaid)
			assert.Equal(t, inv.TotalAmount-int64(40000*i), got.AmountDue)
			if i < 3 {
				assert.Equal(t, ledger.InvoicePartial, got.Status)
			} else {
				assert.Equal(t, ledger.InvoicePaid, got.Status)
			}
		}

		assert.Equal(t, int64(120000), accountBalance(t, st, "acme", "cash", ""))
		assert.Equal(t, int64(0), accountBalance(t, st, "acme", "accounts_receivable", ""))
	})

	t.Run("payment on paid invoice rejected", func(t *testing.T) {
		_, err := st.RecordPayment(ctx, RecordPaymentParams{
			LedgerID: "acme", InvoiceID: inv.ID, Amount: 1, ReferenceID: "pay-4",
		})
		assert.ErrorIs(t, err, ledger.ErrInvalidState)
	})

	t.Run("paid invoice cannot be voided", func(t *testing.T) {
		_, err := st.VoidInvoice(ctx, "acme", inv.ID, "oops", "tester")
		assert.ErrorIs(t, err, ledger.ErrCannotVoidPaid)
	})
}

func TestRecordPaymentOvershoot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inv := createDraft(t, st, "acme")
	_, err := st.SendInvoice(ctx, "acme", inv.ID, "tester")
	require.NoError(t, err)

	_, err = st.RecordPayment(ctx, RecordPaymentParams{
		LedgerID: "acme", InvoiceID: inv.ID, Amount: inv.TotalAmount + 1, ReferenceID: "pay-1",
	})
	assert.ErrorIs(t, err, ledger.ErrExceedsAmountDue)

	// Rejected outright: nothing moved.
	got, err := st.GetInvoice(ctx, "acme", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.AmountPaid)
	assert.Equal(t, int64(0), accountBalance(t, st, "acme", "cash", ""))
}

func TestRecordPaymentIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inv := createDraft(t, st, "acme")
	_, err := st.SendInvoice(ctx, "acme", inv.ID, "tester")
	require.NoError(t, err)

	_, err = st.RecordPayment(ctx, RecordPaymentParams{
		LedgerID: "acme", InvoiceID: inv.ID, Amount: 40000, ReferenceID: "pay-1",
	})
	require.NoError(t, err)

	replay, err := st.RecordPayment(ctx, RecordPaymentParams{
		LedgerID: "acme", InvoiceID: inv.ID, Amount: 40000, ReferenceID: "pay-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40000), replay.AmountPaid, "retried payment applies once")
	assert.Equal(t, int64(40000), accountBalance(t, st, "acme", "cash", ""))
}

func TestRecordPaymentConcurrent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inv := createDraft(t, st, "acme")
	_, err := st.SendInvoice(ctx, "acme", inv.ID, "tester")
	require.NoError(t, err)

	// 5 x 40000 against a 120000 invoice: exactly three can land.
	const workers = 5
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.RecordPayment(ctx, RecordPaymentParams{
				LedgerID:    "acme",
				InvoiceID:   inv.ID,
				Amount:      40000,
				ReferenceID: fmt.Sprintf("pay-%d", i),
			})
		}(i)
	}
	wg.Wait()

	var applied int
	for _, err := range errs {
		if err == nil {
			applied++
		} else {
			assert.True(t,
				errors.Is(err, ledger.ErrExceedsAmountDue) || errors.Is(err, ledger.ErrInvalidState),
				"unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, applied)

	got, err := st.GetInvoice(ctx, "acme", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoicePaid, got.Status)
	assert.Equal(t, inv.TotalAmount, got.AmountPaid)
	assert.Equal(t, int64(0), got.AmountDue)
	assert.Equal(t, inv.TotalAmount, accountBalance(t, st, "acme", "cash", ""))
}

func TestVoidInvoice(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	t.Run("void draft needs no reversal", func(t *testing.T) {
		inv := createDraft(t, st, "acme")
		got, err := st.VoidInvoice(ctx, "acme", inv.ID, "customer cancelled", "tester")
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceVoid, got.Status)
	})

	t.Run("void sent reverses the receivable", func(t *testing.T) {
		inv := createDraft(t, st, "acme")
		_, err := st.SendInvoice(ctx, "acme", inv.ID, "tester")
		require.NoError(t, err)

		got, err := st.VoidInvoice(ctx, "acme", inv.ID, "duplicate", "tester")
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceVoid, got.Status)
		assert.Equal(t, int64(0), accountBalance(t, st, "acme", "accounts_receivable", ""))
		assert.Equal(t, int64(0), accountBalance(t, st, "acme", "revenue", ""))
	})

	t.Run("void partial reverses only what is still due", func(t *testing.T) {
		inv := createDraft(t, st, "acme")
		_, err := st.SendInvoice(ctx, "acme", inv.ID, "tester")
		require.NoError(t, err)
		_, err = st.RecordPayment(ctx, RecordPaymentParams{
			LedgerID: "acme", InvoiceID: inv.ID, Amount: 40000, ReferenceID: inv.ID + "-pay",
		})
		require.NoError(t, err)

		cashBefore := accountBalance(t, st, "acme", "cash", "")
		arBefore := accountBalance(t, st, "acme", "accounts_receivable", "")

		got, err := st.VoidInvoice(ctx, "acme", inv.ID, "dispute settled", "tester")
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceVoid, got.Status)

		// Cash received is untouched; the outstanding AR is backed out.
		assert.Equal(t, cashBefore, accountBalance(t, st, "acme", "cash", ""))
		assert.Equal(t, arBefore-80000, accountBalance(t, st, "acme", "accounts_receivable", ""))
	})

	t.Run("double void rejected", func(t *testing.T) {
		inv := createDraft(t, st, "acme")
		_, err := st.VoidInvoice(ctx, "acme", inv.ID, "", "tester")
		require.NoError(t, err)
		_, err = st.VoidInvoice(ctx, "acme", inv.ID, "", "tester")
		assert.ErrorIs(t, err, ledger.ErrAlreadyVoid)
	})
}

func TestVoidInvoiceConcurrent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inv := createDraft(t, st, "acme")
	sent, err := st.SendInvoice(ctx, "acme", inv.ID, "tester")
	require.NoError(t, err)

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.VoidInvoice(ctx, "acme", inv.ID, "dispute", "ops")
		}(i)
	}
	wg.Wait()

	var voided int
	for _, err := range errs {
		if err == nil {
			voided++
		} else {
			assert.ErrorIs(t, err, ledger.ErrAlreadyVoid)
		}
	}
	assert.Equal(t, 1, voided, "exactly one void lands")

	reversals, err := st.ListTransactions(ctx, "acme", TxnFilter{Type: ledger.TypeReversal})
	require.NoError(t, err)
	require.Len(t, reversals, 1, "exactly one reversal posted")
	assert.Equal(t, sent.TransactionID, reversals[0].Reverses)

	assert.Equal(t, int64(0), accountBalance(t, st, "acme", "accounts_receivable", ""))
	assert.Equal(t, int64(0), accountBalance(t, st, "acme", "revenue", ""))
}

func TestVoidLeavesNothingToReverse(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	t.Run("full void marks the backing transaction reversed", func(t *testing.T) {
		inv := createDraft(t, st, "full")
		sent, err := st.SendInvoice(ctx, "full", inv.ID, "tester")
		require.NoError(t, err)
		_, err = st.VoidInvoice(ctx, "full", inv.ID, "duplicate", "tester")
		require.NoError(t, err)

		backing, err := st.GetTransaction(ctx, "full", sent.TransactionID)
		require.NoError(t, err)
		assert.NotEmpty(t, backing.ReversedBy)

		_, err = st.ReverseTransaction(ctx, "full", sent.TransactionID, "again", "ops")
		assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
		assert.Equal(t, int64(0), accountBalance(t, st, "full", "accounts_receivable", ""))
		assert.Equal(t, int64(0), accountBalance(t, st, "full", "revenue", ""))
	})

	t.Run("partial void leaves only the unreversed remainder", func(t *testing.T) {
		inv := createDraft(t, st, "partial")
		sent, err := st.SendInvoice(ctx, "partial", inv.ID, "tester")
		require.NoError(t, err)
		_, err = st.RecordPayment(ctx, RecordPaymentParams{
			LedgerID: "partial", InvoiceID: inv.ID, Amount: 40000, ReferenceID: inv.ID + "-pay",
		})
		require.NoError(t, err)
		_, err = st.VoidInvoice(ctx, "partial", inv.ID, "dispute settled", "tester")
		require.NoError(t, err)

		// The void backed out the 80000 still due; reversing the sale
		// now mirrors only the remaining 40000.
		rev, err := st.ReverseTransaction(ctx, "partial", sent.TransactionID, "unwind sale", "ops")
		require.NoError(t, err)
		require.Len(t, rev.Entries, 2)
		for _, e := range rev.Entries {
			assert.Equal(t, int64(40000), e.Amount)
		}
		assert.Equal(t, int64(0), accountBalance(t, st, "partial", "revenue", ""))

		_, err = st.ReverseTransaction(ctx, "partial", sent.TransactionID, "", "ops")
		assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
	})

	t.Run("void after a manual reversal rejected", func(t *testing.T) {
		inv := createDraft(t, st, "manual")
		sent, err := st.SendInvoice(ctx, "manual", inv.ID, "tester")
		require.NoError(t, err)
		_, err = st.ReverseTransaction(ctx, "manual", sent.TransactionID, "mistake", "ops")
		require.NoError(t, err)

		_, err = st.VoidInvoice(ctx, "manual", inv.ID, "cancel", "tester")
		assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
		assert.Equal(t, int64(0), accountBalance(t, st, "manual", "accounts_receivable", ""))
	})
}

func TestListInvoices(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := createDraft(t, st, "acme")
	b := createDraft(t, st, "acme")
	_, err := st.SendInvoice(ctx, "acme", b.ID, "tester")
	require.NoError(t, err)

	drafts, err := st.ListInvoices(ctx, "acme", InvoiceFilter{Status: ledger.InvoiceDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, a.ID, drafts[0].ID)

	all, err := st.ListInvoices(ctx, "acme", InvoiceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
