/*
store.go - Persistence interface for ledger transactions

PURPOSE:
  Defines the interface between the ledger and the database. The Store
  handles persistence while maintaining append-only semantics. Different
  implementations use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Core transaction persistence (append, load, exists)
  TxStore: Transactional operations (atomic multi-table writes)

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every deviation commit writes keys of the form "<entry>:<category>". If a
  key already exists the write is rejected, so a time entry can never be
  booked twice even when two operators commit at once.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction. Returns error if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for entity+account, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, resource ResourceType) ([]Transaction, error)

	// LoadRange returns transactions for entity+account in [from, to].
	LoadRange(ctx context.Context, entityID EntityID, resource ResourceType, from, to TimePoint) ([]Transaction, error)

	// LoadByEntity returns every transaction of an entity across accounts.
	LoadByEntity(ctx context.Context, entityID EntityID) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
