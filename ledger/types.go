/*
Package ledger provides the core inventory transaction engine.

PURPOSE:
  This package contains the domain types and algorithms for stock-affecting
  transactions. Every change to an item's stock level is recorded as an
  immutable Transaction; the item's current_stock field is a denormalized
  value that must always equal the replayed sum of signed transaction
  quantities.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: an inventory unit with a denormalized CurrentStock
  - Transaction: an immutable record of one stock-affecting event
  - TransactionType: the four recognized event kinds and their sign
  - SignedDelta: the effective stock change of a transaction

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never edited; mistakes are corrected
     by appending a compensating adjustment
  2. Precision: Money fields use decimal.Decimal, never float64
  3. Conservation: CurrentStock == sum of SignedDelta over all transactions

SIGN CONVENTION:
  initial_stock, adjustment_increase  -> +quantity
  adjustment_decrease, sale           -> -quantity

SEE ALSO:
  - ledger.go: Apply operation enforcing stock invariants
  - fingerprint.go: Integrity digest over transaction fields
  - store.go: Persistence interface with the atomic unit of work
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION TYPES - The four recognized stock-affecting events
// =============================================================================

type TransactionType string

const (
	TxInitialStock       TransactionType = "initial_stock"       // First stock load for an item
	TxAdjustmentIncrease TransactionType = "adjustment_increase" // Manual stock correction upward
	TxAdjustmentDecrease TransactionType = "adjustment_decrease" // Manual stock correction downward
	TxSale               TransactionType = "sale"                // Stock sold to a buyer
)

// ValidType reports whether t is one of the four recognized kinds.
func ValidType(t TransactionType) bool {
	switch t {
	case TxInitialStock, TxAdjustmentIncrease, TxAdjustmentDecrease, TxSale:
		return true
	}
	return false
}

// Decreases reports whether t reduces stock.
func (t TransactionType) Decreases() bool {
	return t == TxAdjustmentDecrease || t == TxSale
}

// SignedDelta returns the effective stock change for a transaction of the
// given type and quantity. Quantity is always stored positive; the sign
// comes from the type.
func SignedDelta(t TransactionType, quantity int) int {
	if t.Decreases() {
		return -quantity
	}
	return quantity
}

// =============================================================================
// TIME - Canonical timestamp format
// =============================================================================

// TimeLayout is the canonical timestamp format used for both persistence
// and digest computation: ISO-8601 with millisecond precision. Storing and
// hashing with the same layout keeps digests reproducible after a
// round-trip through the store.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in the canonical layout, normalized to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a canonical timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// =============================================================================
// ITEM - Inventory unit with denormalized stock
// =============================================================================

// Item is a stock-keeping unit. CurrentStock is denormalized for fast
// reads and is kept consistent with every Transaction write in the same
// atomic unit of work. Items are never hard-deleted while transactions
// reference them.
type Item struct {
	ID           string
	SKU          string
	Name         string
	Description  string
	UnitCost     decimal.Decimal
	SalePrice    decimal.Decimal
	CurrentStock int
	ReorderPoint *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BelowReorderPoint reports whether the item needs restocking.
// Items without a reorder point never do.
func (i Item) BelowReorderPoint() bool {
	return i.ReorderPoint != nil && i.CurrentStock <= *i.ReorderPoint
}

// =============================================================================
// TRANSACTION - Immutable record of one stock-affecting event
// =============================================================================

// Transaction records one stock change. Once the Digest is set, the tuple
// (ItemID, Type, Quantity, OccurredAt, UserID) must never change.
//
// OccurredAt defaults to commit time but may be backdated for
// record-keeping. It is NEVER used to reorder stock arithmetic: every
// apply starts from the current persisted stock regardless of the
// timestamp on the new row.
type Transaction struct {
	ID         string
	ItemID     string
	Type       TransactionType
	Quantity   int // always positive; sign comes from Type
	UserID     string
	Note       string
	OccurredAt time.Time
	Digest     string // integrity digest, empty until attached post-commit
	CreatedAt  time.Time
}

// Delta returns the signed stock change of this transaction.
func (tx Transaction) Delta() int {
	return SignedDelta(tx.Type, tx.Quantity)
}

// =============================================================================
// REPLAY - Conservation check helper
// =============================================================================

// ReplayStock sums the signed deltas of txs in order, starting from
// baseline. Used to verify the conservation invariant:
// item.CurrentStock == ReplayStock(0, all transactions for the item).
func ReplayStock(baseline int, txs []Transaction) int {
	stock := baseline
	for _, tx := range txs {
		stock += tx.Delta()
	}
	return stock
}
