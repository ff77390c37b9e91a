/*
Package generic provides the ledger engine shared by every workforce domain.

PURPOSE:
  This package contains domain-agnostic types for recording signed quantities
  of time against an employee's accounts. Deviation categories (time bank,
  overtime tiers, comp time) are just accounts to the engine: it appends,
  replays, and sums them without knowing what they mean.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 45 minutes, 7.5 hours)
  - Transaction: An immutable ledger entry recording a balance change
  - TimePoint: A specific point in time (used as ledger keys)
  - EntityID: Type-safe employee identifier

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing identifiers
  4. Auditability: Every transaction has reason, reference, and idempotency key

USAGE:
  tx := generic.Transaction{
      EntityID:     "emp-123",
      ResourceType: deviation.TimeBank,
      Delta:        generic.NewAmountFromInt(45, generic.UnitMinutes),
      Type:         generic.TxDeviation,
      ReferenceID:  "entry-991",
  }

SEE ALSO:
  - ledger.go: Ledger interface and summation
  - store.go: Transaction persistence interface
  - resource.go: Registry of account types
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours   Unit = "hours"
	UnitMinutes Unit = "minutes"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }

// InHours converts a minute amount to hours. Hour amounts are returned as-is.
func (a Amount) InHours() Amount {
	if a.Unit == UnitMinutes {
		return Amount{Value: a.Value.Div(decimal.NewFromInt(60)), Unit: UnitHours}
	}
	return a
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type TransactionID string

// ResourceType identifies which account a transaction is booked against.
// Domain packages define their own concrete types; the deviation categories
// are the main implementation.
type ResourceType interface {
	// ResourceID returns the unique identifier for this account type.
	ResourceID() string

	// ResourceDomain returns which domain this account belongs to.
	ResourceDomain() string
}

// =============================================================================
// TRANSACTION - Atomic change to an account balance
// =============================================================================

type TransactionType string

const (
	TxDeviation  TransactionType = "deviation"  // Committed allocation of a timesheet deviation
	TxAdjustment TransactionType = "adjustment" // Manual admin correction
	TxReversal   TransactionType = "reversal"   // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	ResourceType   ResourceType
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string // originating record, e.g. the time entry
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	// Audit fields
	CreatedBy     string // Actor who created this transaction
	CreatedByType string // "employee", "manager", "system", "admin"
	CreatedAt     TimePoint
}

// =============================================================================
// ACCOUNT BALANCE - Computed state at a point in time
// =============================================================================

type AccountBalance struct {
	AsOf         TimePoint
	EntityID     EntityID
	ResourceType ResourceType
	Balance      Amount
	Entries      int
}
