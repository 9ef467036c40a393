package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaleEntries(t *testing.T) {
	entries, err := SaleEntries(10000, 250, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.NoError(t, ValidateEntries(entries))

	assert.Equal(t, "cash", entries[0].AccountType)
	assert.Equal(t, int64(10000), entries[0].Amount)
	assert.Equal(t, "creator_balance", entries[1].AccountType)
	assert.Equal(t, int64(9750), entries[1].Amount)
	assert.Equal(t, "platform_fees", entries[2].AccountType)
	assert.Equal(t, int64(250), entries[2].Amount)

	t.Run("zero fee drops the fee line", func(t *testing.T) {
		entries, err := SaleEntries(10000, 0, "alice")
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.NoError(t, ValidateEntries(entries))
	})

	t.Run("fee must be below gross", func(t *testing.T) {
		_, err := SaleEntries(10000, 10000, "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("creator required", func(t *testing.T) {
		_, err := SaleEntries(10000, 250, "")
		assert.ErrorIs(t, err, ErrEntityRequired)
	})
}

func TestRefundEntries(t *testing.T) {
	entries, err := RefundEntries(10000, 250, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.NoError(t, ValidateEntries(entries))

	assert.Equal(t, "creator_balance", entries[0].AccountType)
	assert.Equal(t, int64(9750), entries[0].Amount)
	assert.Equal(t, "cash", entries[1].AccountType)
	assert.Equal(t, int64(10000), entries[1].Amount)
	assert.Equal(t, "refunds", entries[2].AccountType)
	assert.Equal(t, SideDebit, entries[2].Side)
	assert.Equal(t, int64(250), entries[2].Amount)

	t.Run("zero fee drops the refunds line", func(t *testing.T) {
		entries, err := RefundEntries(10000, 0, "alice")
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.NoError(t, ValidateEntries(entries))
	})

	t.Run("fee must be below gross", func(t *testing.T) {
		_, err := RefundEntries(10000, 10000, "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestPostingBuildersBalance(t *testing.T) {
	builders := map[string]func() ([]EntryInput, error){
		"refund":      func() ([]EntryInput, error) { return RefundEntries(5000, 125, "alice") },
		"payout":      func() ([]EntryInput, error) { return PayoutEntries(5000, "alice") },
		"expense":     func() ([]EntryInput, error) { return ExpenseEntries(5000) },
		"withholding": func() ([]EntryInput, error) { return WithholdingEntries(5000, "alice") },
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			entries, err := build()
			require.NoError(t, err)
			assert.NoError(t, ValidateEntries(entries))
		})
	}
}
