/*
store.go - Persistence interface for items and transactions

PURPOSE:
  Defines the interface between the domain logic and the database.
  The central operation is WithStockUpdate: one atomic unit of work that
  reads an Item, writes the updated Item, and inserts a Transaction,
  such that either all effects are visible or none are.

TWO KINDS OF "TRANSACTION":
  The business Transaction (a ledger row) and the database transaction
  (the atomic unit of work) share a name but are different concepts.
  This package calls the former Transaction and the latter a stock
  update / unit of work; implementations map the unit of work onto
  whatever their storage engine provides (sql.Tx, a mutex, ...).

APPEND-ONLY CONTRACT:
  Transactions are append-only. The ONLY permitted update to an existing
  row is AttachDigest, which sets the integrity digest after the owning
  unit of work has committed. There is no delete.

CONCURRENCY:
  Two concurrent stock updates against the same item must not both read
  a stale stock value: the implementation must serialize the
  read-modify-write per item (row lock, single-writer transaction, or
  equivalent). Different items are independent.

IMPLEMENTATIONS:
  - store/sqlite: production store (single-writer SQLite transactions)
  - ledger/store: in-memory store for tests and development

SEE ALSO:
  - ledger.go: StockLedger drives WithStockUpdate via a mutator
  - service.go: Issues AttachDigest after commit
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STOCK UPDATE - The atomic unit of work
// =============================================================================

// StockMutator encapsulates the validation and delta computation for one
// stock update. It is invoked inside the unit of work with the item as
// currently persisted (not a stale snapshot) and returns the new stock
// value together with the transaction to append. Returning an error
// aborts the unit of work with no partial effect.
type StockMutator func(item Item) (newStock int, tx Transaction, err error)

// =============================================================================
// STORE - Persistence interface
// =============================================================================

// Store handles persistence of items and transactions.
type Store interface {
	// WithStockUpdate opens a unit of work, loads the item by id (failing
	// with ErrItemNotFound if absent), invokes mutate, persists the updated
	// item and the new transaction, and commits. Any failure before commit
	// leaves both stores unchanged. The read-modify-write is serialized per
	// item. The unit of work is abortable via ctx up to the commit point.
	WithStockUpdate(ctx context.Context, itemID string, mutate StockMutator) (Item, Transaction, error)

	// AttachDigest sets the digest field of an existing transaction.
	// Called after the owning unit of work has committed; its failure is
	// independent and recoverable (digests can be backfilled later).
	AttachDigest(ctx context.Context, transactionID, digest string) error

	// FindTransaction returns a transaction by id, or ErrTransactionNotFound.
	FindTransaction(ctx context.Context, id string) (Transaction, error)

	// ListTransactions returns one page of transactions matching the filter
	// plus the total match count, consistent with the returned page.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, int, error)

	// ListMissingDigest returns up to limit committed transactions whose
	// digest is still empty, oldest first. Feed for the backfill sweep.
	ListMissingDigest(ctx context.Context, limit int) ([]Transaction, error)

	// GetItem returns an item by id, or ErrItemNotFound.
	GetItem(ctx context.Context, id string) (Item, error)

	// SaveItem inserts or updates an item. Fails with ErrDuplicateSKU when
	// the SKU belongs to a different item.
	SaveItem(ctx context.Context, item Item) error

	// ListItems returns one page of items matching the filter plus the
	// total match count. A zero Limit returns all matches.
	ListItems(ctx context.Context, f ItemFilter) ([]Item, int, error)

	// DeleteItem removes an item, or fails with ErrItemReferenced while
	// transactions reference it.
	DeleteItem(ctx context.Context, id string) error
}

// =============================================================================
// FILTERS
// =============================================================================

// TransactionFilter selects and orders transactions. Zero values mean
// "no constraint".
type TransactionFilter struct {
	Type   TransactionType // filter by kind
	From   time.Time       // occurred-at lower bound (inclusive)
	To     time.Time       // occurred-at upper bound (inclusive)
	ItemID string          // restrict to one item
	UserID string          // restrict to one acting user
	Search string          // free text against item name, SKU, and notes

	SortBy string // occurred_at | created_at | quantity | type
	Order  string // asc | desc (default desc)
	Page   int    // 1-based; 0 means 1
	Limit  int    // page size; 0 means default
}

// ItemFilter selects and orders items.
type ItemFilter struct {
	Search   string // free text against name, SKU, and description
	LowStock bool   // only items at or below their reorder point

	SortBy string // name | sku | current_stock | created_at
	Order  string // asc | desc
	Page   int
	Limit  int // 0 means all matches (reports need full aggregates)
}
