package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func draftInvoice() *Invoice {
	return &Invoice{
		ID:         "inv-1",
		LedgerID:   "acme",
		CustomerID: "cust-1",
		Status:     InvoiceDraft,
		LineItems: []LineItem{
			{Description: "consulting", Quantity: 8, UnitPrice: 15000},
		},
	}
}

func TestInvoiceComputeTotals(t *testing.T) {
	inv := draftInvoice()
	inv.LineItems = append(inv.LineItems, LineItem{Description: "travel", Quantity: 2, UnitPrice: 5000})
	inv.ComputeTotals()

	assert.Equal(t, int64(120000), inv.LineItems[0].Amount)
	assert.Equal(t, int64(10000), inv.LineItems[1].Amount)
	assert.Equal(t, int64(130000), inv.TotalAmount)
	assert.Equal(t, int64(130000), inv.AmountDue)
	assert.Equal(t, int64(0), inv.AmountPaid)
}

func TestInvoiceValidateDraft(t *testing.T) {
	t.Run("valid draft", func(t *testing.T) {
		assert.NoError(t, draftInvoice().ValidateDraft())
	})

	t.Run("no line items", func(t *testing.T) {
		inv := draftInvoice()
		inv.LineItems = nil
		assert.ErrorIs(t, inv.ValidateDraft(), ErrInvalidAmount)
	})

	t.Run("zero quantity", func(t *testing.T) {
		inv := draftInvoice()
		inv.LineItems[0].Quantity = 0
		assert.ErrorIs(t, inv.ValidateDraft(), ErrInvalidAmount)
	})

	t.Run("blank description", func(t *testing.T) {
		inv := draftInvoice()
		inv.LineItems[0].Description = ""
		assert.ErrorIs(t, inv.ValidateDraft(), ErrEmptyDescription)
	})
}

func TestInvoiceCheckSend(t *testing.T) {
	inv := draftInvoice()
	inv.ComputeTotals()
	assert.NoError(t, inv.CheckSend())

	for _, status := range []InvoiceStatus{InvoiceSent, InvoicePartial, InvoicePaid, InvoiceVoid} {
		inv.Status = status
		assert.ErrorIs(t, inv.CheckSend(), ErrInvalidState, "status %s", status)
	}
}

func TestInvoiceCheckPayment(t *testing.T) {
	inv := draftInvoice()
	inv.ComputeTotals()
	inv.Status = InvoiceSent

	t.Run("payment up to due is fine", func(t *testing.T) {
		assert.NoError(t, inv.CheckPayment(40000))
		assert.NoError(t, inv.CheckPayment(inv.AmountDue))
	})

	t.Run("overpayment rejected not capped", func(t *testing.T) {
		assert.ErrorIs(t, inv.CheckPayment(inv.AmountDue+1), ErrExceedsAmountDue)
	})

	t.Run("non-positive rejected", func(t *testing.T) {
		assert.ErrorIs(t, inv.CheckPayment(0), ErrInvalidAmount)
		assert.ErrorIs(t, inv.CheckPayment(-100), ErrInvalidAmount)
	})

	t.Run("draft and void are not payable", func(t *testing.T) {
		inv.Status = InvoiceDraft
		assert.ErrorIs(t, inv.CheckPayment(100), ErrInvalidState)
		inv.Status = InvoiceVoid
		assert.ErrorIs(t, inv.CheckPayment(100), ErrInvalidState)
		inv.Status = InvoiceSent
	})
}

func TestInvoiceCheckVoid(t *testing.T) {
	inv := draftInvoice()
	inv.ComputeTotals()

	for _, status := range []InvoiceStatus{InvoiceDraft, InvoiceSent, InvoicePartial} {
		inv.Status = status
		assert.NoError(t, inv.CheckVoid(), "status %s", status)
	}

	inv.Status = InvoicePaid
	assert.ErrorIs(t, inv.CheckVoid(), ErrCannotVoidPaid)

	inv.Status = InvoiceVoid
	assert.ErrorIs(t, inv.CheckVoid(), ErrAlreadyVoid)
}

func TestInvoiceStatusAfterPayment(t *testing.T) {
	inv := draftInvoice()
	inv.ComputeTotals()
	inv.Status = InvoiceSent

	assert.Equal(t, InvoicePartial, inv.StatusAfterPayment(40000))
	assert.Equal(t, InvoicePaid, inv.StatusAfterPayment(inv.AmountDue))
}
