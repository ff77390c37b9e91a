/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable source of truth for every minute booked to an
  employee's accounts. Committed deviation allocations, manual adjustments,
  and reversals are all recorded here. Balances are always computed by
  replaying transactions - there's no separate "balance" column that can get
  out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. AUDITABLE: Every balance change is traceable to its originating record
  4. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  If a mistake is made, you don't edit the transaction. Instead:
  1. Create a Reversal transaction (opposite sign)
  2. Both original and reversal remain in the ledger
  3. Net effect is correction, but history is preserved

EXAMPLE FLOW:
  1. Entry resolved, 45 min to time bank:   TxDeviation +45 (time_bank)
  2. Entry resolved, 30 min short, ignored: TxDeviation -30 (ignored)
  3. Admin moves 15 min to comp time:       TxAdjustment -15 (time_bank),
                                            TxAdjustment +15 (comp_time)

  time_bank: [+45, -15] = 30 min

SEE ALSO:
  - store.go: Low-level persistence interface
  - timesheet/reviewer.go: Writes deviation commits through a TxStore
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for all account changes.
//
// INVARIANTS:
//   - Append-only: No Update, No Delete. EVER.
//   - Immutable: Once written, transactions cannot be modified.
//   - Auditable: Every balance change is traceable.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	// Used when committing a deviation (one transaction per category).
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for entity+account, chronologically.
	Transactions(ctx context.Context, entityID EntityID, resource ResourceType) ([]Transaction, error)

	// TransactionsInRange returns transactions in [from, to].
	TransactionsInRange(ctx context.Context, entityID EntityID, resource ResourceType, from, to TimePoint) ([]Transaction, error)

	// BalanceAt computes an account balance at a specific time.
	BalanceAt(ctx context.Context, entityID EntityID, resource ResourceType, at TimePoint, unit Unit) (Amount, error)

	// Balances sums every account of an entity up to a point in time.
	Balances(ctx context.Context, entityID EntityID, at TimePoint, unit Unit) (map[string]AccountBalance, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true

		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, resource ResourceType) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, resource)
}

func (l *DefaultLedger) TransactionsInRange(ctx context.Context, entityID EntityID, resource ResourceType, from, to TimePoint) ([]Transaction, error) {
	return l.Store.LoadRange(ctx, entityID, resource, from, to)
}

func (l *DefaultLedger) BalanceAt(ctx context.Context, entityID EntityID, resource ResourceType, at TimePoint, unit Unit) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, resource)
	if err != nil {
		return Amount{}, err
	}

	balance := NewAmountFromInt(0, unit)
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			break
		}
		if tx.Delta.Unit != unit {
			return Amount{}, &UnitMismatchError{TransactionID: tx.ID, Expected: unit, Got: tx.Delta.Unit}
		}
		balance = balance.Add(tx.Delta)
	}
	return balance, nil
}

func (l *DefaultLedger) Balances(ctx context.Context, entityID EntityID, at TimePoint, unit Unit) (map[string]AccountBalance, error) {
	txs, err := l.Store.LoadByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]AccountBalance)
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			continue
		}
		if tx.Delta.Unit != unit {
			return nil, &UnitMismatchError{TransactionID: tx.ID, Expected: unit, Got: tx.Delta.Unit}
		}
		id := tx.ResourceType.ResourceID()
		acc, ok := result[id]
		if !ok {
			acc = AccountBalance{
				AsOf:         at,
				EntityID:     entityID,
				ResourceType: tx.ResourceType,
				Balance:      NewAmountFromInt(0, unit),
			}
		}
		acc.Balance = acc.Balance.Add(tx.Delta)
		acc.Entries++
		result[id] = acc
	}
	return result, nil
}
