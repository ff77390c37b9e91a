package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testResource is a concrete ResourceType for tests
type testResource string

func (r testResource) ResourceID() string     { return string(r) }
func (r testResource) ResourceDomain() string { return "test" }

const (
	bank  testResource = "bank"
	extra testResource = "extra"
)

func minutes(n int) generic.Amount {
	return generic.NewAmountFromInt(n, generic.UnitMinutes)
}

func tx(id string, resource generic.ResourceType, day int, delta int) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(id),
		EntityID:       "emp-1",
		ResourceType:   resource,
		EffectiveAt:    generic.NewTimePoint(2025, time.March, day),
		Delta:          minutes(delta),
		Type:           generic.TxDeviation,
		IdempotencyKey: id,
	}
}

// =============================================================================
// APPEND / IDEMPOTENCY
// =============================================================================

func TestLedger_Append_RejectsDuplicateIdempotencyKey(t *testing.T) {
	// GIVEN: A transaction already in the ledger
	// WHEN: The same idempotency key is appended again
	// THEN: ErrDuplicateIdempotencyKey, and the balance counts it once

	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())

	require.NoError(t, ledger.Append(ctx, tx("t1", bank, 3, 45)))
	err := ledger.Append(ctx, tx("t1", bank, 3, 45))
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	bal, err := ledger.BalanceAt(ctx, "emp-1", bank, generic.NewTimePoint(2025, time.December, 31), generic.UnitMinutes)
	require.NoError(t, err)
	assert.True(t, bal.Value.Equal(minutes(45).Value), "got %v", bal.Value)
}

func TestLedger_AppendBatch_AllOrNothing(t *testing.T) {
	// GIVEN: One committed transaction
	// WHEN: A batch containing a new key and the existing key is appended
	// THEN: The batch is rejected and nothing from it is written

	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())
	require.NoError(t, ledger.Append(ctx, tx("t1", bank, 3, 45)))

	err := ledger.AppendBatch(ctx, []generic.Transaction{
		tx("t2", extra, 4, 10),
		tx("t1", bank, 4, 5),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	txs, err := ledger.Transactions(ctx, "emp-1", extra)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestLedger_AppendBatch_DuplicateWithinBatch(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())

	err := ledger.AppendBatch(ctx, []generic.Transaction{
		tx("same", bank, 3, 1),
		tx("same", extra, 3, 1),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
}

// =============================================================================
// SUMMATION
// =============================================================================

func TestLedger_BalanceAt_StopsAtDate(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())

	require.NoError(t, ledger.AppendBatch(ctx, []generic.Transaction{
		tx("t1", bank, 3, 45),
		tx("t2", bank, 10, -30),
		tx("t3", bank, 20, 15),
	}))

	bal, err := ledger.BalanceAt(ctx, "emp-1", bank, generic.NewTimePoint(2025, time.March, 10), generic.UnitMinutes)
	require.NoError(t, err)
	assert.Equal(t, "15", bal.Value.String())

	inRange, err := ledger.TransactionsInRange(ctx, "emp-1", bank,
		generic.NewTimePoint(2025, time.March, 4), generic.NewTimePoint(2025, time.March, 20))
	require.NoError(t, err)
	assert.Len(t, inRange, 2)
}

func TestLedger_Balances_PerAccount(t *testing.T) {
	// GIVEN: Entries on two accounts
	// WHEN: Summing all accounts of the employee
	// THEN: One balance per account with the entry count

	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())

	require.NoError(t, ledger.AppendBatch(ctx, []generic.Transaction{
		tx("t1", bank, 3, 45),
		tx("t2", extra, 4, -20),
		tx("t3", bank, 5, 15),
	}))

	balances, err := ledger.Balances(ctx, "emp-1", generic.NewTimePoint(2025, time.December, 31), generic.UnitMinutes)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "60", balances["bank"].Balance.Value.String())
	assert.Equal(t, 2, balances["bank"].Entries)
	assert.Equal(t, "-20", balances["extra"].Balance.Value.String())
}

func TestLedger_BalanceAt_UnitMismatch(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())

	hours := tx("t1", bank, 3, 0)
	hours.Delta = generic.NewAmount(1.5, generic.UnitHours)
	require.NoError(t, ledger.Append(ctx, hours))

	_, err := ledger.BalanceAt(ctx, "emp-1", bank, generic.NewTimePoint(2025, time.December, 31), generic.UnitMinutes)
	var mismatch *generic.UnitMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, generic.UnitHours, mismatch.Got)
	assert.True(t, generic.IsClientError(err))
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

func TestTxMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()

	err := s.WithTx(ctx, func(view generic.Store) error {
		if err := view.Append(ctx, tx("t1", bank, 3, 45)); err != nil {
			return err
		}
		return generic.ErrTransactionFailed
	})
	assert.ErrorIs(t, err, generic.ErrTransactionFailed)

	exists, err := s.Exists(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, exists, "rolled back write must not leave its idempotency key")
}

func TestAmount_InHours(t *testing.T) {
	assert.Equal(t, "1.5", minutes(90).InHours().Value.String())
	assert.Equal(t, generic.UnitHours, minutes(90).InHours().Unit)
}
