package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/ledger"
)

func TestClosePeriod(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	postSale(t, st, "acme", "order-1", 10000, 250, "alice", mustDate(t, "2025-03-15"))
	postSale(t, st, "acme", "order-2", 5000, 0, "bob", mustDate(t, "2025-03-20"))

	result, err := st.ClosePeriod(ctx, ClosePeriodParams{
		LedgerID: "acme", Year: 2025, Month: time.March, Notes: "Q1 interim", Actor: "tester",
	})
	require.NoError(t, err)
	assert.False(t, result.AlreadyClosed)
	assert.Equal(t, ledger.PeriodClosed, result.Period.Status)
	assert.Len(t, result.Period.ClosingHash, 64)
	require.NotNil(t, result.Period.Snapshot)
	assert.True(t, result.Period.Snapshot.Balanced)
	assert.Equal(t, int64(15000), result.Period.Snapshot.TotalDebit)

	for _, check := range result.Checks {
		assert.True(t, check.OK, "check %s: %s", check.Name, check.Detail)
	}

	t.Run("stored hash matches the snapshot", func(t *testing.T) {
		stored, err := st.GetPeriod(ctx, "acme", 2025, time.March)
		require.NoError(t, err)
		require.NotNil(t, stored.Snapshot)
		recomputed, err := ledger.SnapshotHash(stored.Snapshot)
		require.NoError(t, err)
		assert.Equal(t, stored.ClosingHash, recomputed)
	})

	t.Run("closed period rejects new postings", func(t *testing.T) {
		entries, err := ledger.SaleEntries(2000, 0, "alice")
		require.NoError(t, err)
		_, err = st.CreateTransaction(ctx, CreateTransactionParams{
			LedgerID:      "acme",
			ReferenceID:   "order-late",
			Type:          ledger.TypeSale,
			Description:   "backdated into closed month",
			EffectiveDate: mustDate(t, "2025-03-31"),
			Entries:       entries,
		})
		assert.ErrorIs(t, err, ledger.ErrPeriodClosed)
	})

	t.Run("open months still accept postings", func(t *testing.T) {
		postSale(t, st, "acme", "order-3", 2000, 0, "alice", mustDate(t, "2025-04-02"))
	})

	t.Run("closing again replays the stored result", func(t *testing.T) {
		replay, err := st.ClosePeriod(ctx, ClosePeriodParams{
			LedgerID: "acme", Year: 2025, Month: time.March, Actor: "tester",
		})
		require.NoError(t, err)
		assert.True(t, replay.AlreadyClosed)
		assert.Equal(t, result.Period.ClosingHash, replay.Period.ClosingHash)
	})
}

func TestClosePeriodPreflightBlocks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	postSale(t, st, "acme", "order-1", 10000, 0, "alice", mustDate(t, "2025-03-15"))
	postSale(t, st, "acme", "order-2", 4000, 0, "alice", mustDate(t, "2025-04-10"))

	// April cannot close while March is still open.
	result, err := st.ClosePeriod(ctx, ClosePeriodParams{
		LedgerID: "acme", Year: 2025, Month: time.April, Actor: "tester",
	})
	assert.ErrorIs(t, err, ledger.ErrPreflightFailed)
	require.NotNil(t, result)

	var prior *ledger.PreflightCheck
	for i := range result.Checks {
		if result.Checks[i].Name == "prior_period_closed" {
			prior = &result.Checks[i]
		}
	}
	require.NotNil(t, prior)
	assert.False(t, prior.OK)
	assert.Equal(t, ledger.SeverityRequired, prior.Severity)

	// Nothing was recorded.
	_, err = st.GetPeriod(ctx, "acme", 2025, time.April)
	assert.ErrorIs(t, err, ledger.ErrPeriodNotFound)

	// Close in order and both go through.
	_, err = st.ClosePeriod(ctx, ClosePeriodParams{LedgerID: "acme", Year: 2025, Month: time.March, Actor: "tester"})
	require.NoError(t, err)
	_, err = st.ClosePeriod(ctx, ClosePeriodParams{LedgerID: "acme", Year: 2025, Month: time.April, Actor: "tester"})
	require.NoError(t, err)

	periods, err := st.ListPeriods(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, periods, 2)
}

func TestClosePeriodEmptyMonthWarns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// No activity at all: close succeeds, the activity check warns.
	result, err := st.ClosePeriod(ctx, ClosePeriodParams{
		LedgerID: "acme", Year: 2025, Month: time.January, Actor: "tester",
	})
	require.NoError(t, err)

	var activity *ledger.PreflightCheck
	for i := range result.Checks {
		if result.Checks[i].Name == "period_activity" {
			activity = &result.Checks[i]
		}
	}
	require.NotNil(t, activity)
	assert.False(t, activity.OK)
	assert.Equal(t, ledger.SeverityWarning, activity.Severity)
	assert.Equal(t, ledger.PeriodClosed, result.Period.Status)
}
