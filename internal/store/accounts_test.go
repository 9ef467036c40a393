package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/ledger"
)

func TestAccountsCreatedLazily(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetAccount(ctx, "acme", "cash", "")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	postSale(t, st, "acme", "order-1", 10000, 250, "alice", mustDate(t, "2025-03-15"))

	accounts, err := st.ListAccounts(ctx, "acme", AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, accounts, 3, "only referenced accounts exist")

	filtered, err := st.ListAccounts(ctx, "acme", AccountFilter{Type: "creator_balance"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "alice", filtered[0].EntityID)
	assert.Equal(t, ledger.CategoryLiabilities, filtered[0].Category)
}

func TestSetAccountMetadata(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	postSale(t, st, "acme", "order-1", 10000, 250, "alice", mustDate(t, "2025-03-15"))

	md := &ledger.Metadata{
		Schema:  ledger.SchemaTaxInfoV1,
		TaxInfo: &ledger.TaxInfoV1{Country: "DE", TaxID: "DE-123", WithholdingRate: 250},
	}
	require.NoError(t, st.SetAccountMetadata(ctx, "acme", "creator_balance", "alice", md))

	acct, err := st.GetAccount(ctx, "acme", "creator_balance", "alice")
	require.NoError(t, err)
	require.NotNil(t, acct.Metadata)
	require.NotNil(t, acct.Metadata.TaxInfo)
	assert.Equal(t, "DE", acct.Metadata.TaxInfo.Country)
	assert.Equal(t, int64(250), acct.Metadata.TaxInfo.WithholdingRate)

	t.Run("unknown account rejected", func(t *testing.T) {
		err := st.SetAccountMetadata(ctx, "acme", "creator_balance", "nobody", md)
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})
}
