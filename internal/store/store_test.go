package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	require.NoError(t, err)
	return d
}

// postSale credits a creator with a platform sale so later tests have
// funds to move around.
func postSale(t *testing.T, st *Store, ledgerID, ref string, gross, fee int64, creator string, effective time.Time) *ledger.Transaction {
	t.Helper()
	entries, err := ledger.SaleEntries(gross, fee, creator)
	require.NoError(t, err)
	txn, err := st.CreateTransaction(context.Background(), CreateTransactionParams{
		LedgerID:      ledgerID,
		ReferenceID:   ref,
		Type:          ledger.TypeSale,
		Description:   "sale " + ref,
		EffectiveDate: effective,
		Entries:       entries,
	})
	require.NoError(t, err)
	return txn
}

func accountBalance(t *testing.T, st *Store, ledgerID, accountType, entityID string) int64 {
	t.Helper()
	acct, err := st.GetAccount(context.Background(), ledgerID, accountType, entityID)
	require.NoError(t, err)
	return acct.Balance
}
