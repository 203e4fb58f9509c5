/*
ledger.go - Stock consistency enforcement

PURPOSE:
  StockLedger owns the invariant "current stock = sum of signed
  transaction quantities" for a single apply-transaction request. It
  validates the request, computes the new stock level from the stock as
  currently persisted, and drives the store's atomic unit of work so the
  item update and the transaction row commit together or not at all.

CRITICAL INVARIANTS:
  1. Stock never goes negative: decreasing types fail with
     InsufficientStock when quantity exceeds current stock
  2. Atomicity: the item's stock field and the new transaction row are
     written durably together (see store.go)
  3. Ordering: applies are ordered by commit order, not by the
     client-supplied occurred-at, which may be backdated

CORRECTIONS:
  A mistaken transaction is never edited. Append a compensating
  adjustment instead; both rows remain in the ledger.

SEE ALSO:
  - store.go: WithStockUpdate unit-of-work contract
  - service.go: Orchestrates Apply with digest attachment
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// APPLY REQUEST
// =============================================================================

// ApplyRequest describes one stock-affecting event to record.
type ApplyRequest struct {
	ItemID   string
	Type     TransactionType
	Quantity int
	UserID   string // acting user, supplied by the identity collaborator
	Note     string
	// OccurredAt defaults to commit time when zero. May be backdated for
	// record-keeping; has no effect on the stock arithmetic.
	OccurredAt time.Time
}

// =============================================================================
// STOCK LEDGER
// =============================================================================

// StockLedger enforces the stock-consistency invariant.
type StockLedger struct {
	Store Store

	// Now is the commit-time clock, overridable in tests.
	Now func() time.Time
}

// NewStockLedger creates a StockLedger backed by store.
func NewStockLedger(store Store) *StockLedger {
	return &StockLedger{Store: store, Now: time.Now}
}

// Apply validates req, computes the new stock level, and persists the
// updated item together with the new transaction in one atomic unit of
// work. The returned transaction carries no digest yet; digest
// attachment is a separate post-commit step (see Service).
//
// Validation and business failures (ErrInvalidQuantity,
// ErrInvalidTransactionType, ErrItemNotFound, ErrInsufficientStock) are
// deterministic and must not be retried automatically.
func (l *StockLedger) Apply(ctx context.Context, req ApplyRequest) (Transaction, Item, error) {
	if req.Quantity <= 0 {
		return Transaction{}, Item{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, req.Quantity)
	}
	if !ValidType(req.Type) {
		return Transaction{}, Item{}, fmt.Errorf("%w: %q", ErrInvalidTransactionType, req.Type)
	}
	if req.UserID == "" {
		return Transaction{}, Item{}, fmt.Errorf("%w: missing acting user", ErrInvalidTransactionType)
	}

	now := l.Now().UTC()
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	// Truncate to the canonical millisecond precision so the persisted
	// timestamp and the digest input are identical.
	occurredAt = occurredAt.UTC().Truncate(time.Millisecond)

	tx := Transaction{
		ID:         uuid.NewString(),
		ItemID:     req.ItemID,
		Type:       req.Type,
		Quantity:   req.Quantity,
		UserID:     req.UserID,
		Note:       req.Note,
		OccurredAt: occurredAt,
		CreatedAt:  now,
	}

	// The sufficiency check runs inside the unit of work, against the item
	// as currently persisted. Two concurrent applies on the same item are
	// serialized by the store, so neither computes from a stale stock.
	item, tx, err := l.Store.WithStockUpdate(ctx, req.ItemID, func(item Item) (int, Transaction, error) {
		if req.Type.Decreases() && item.CurrentStock < req.Quantity {
			return 0, Transaction{}, &InsufficientStockError{
				ItemID:    item.ID,
				Available: item.CurrentStock,
				Requested: req.Quantity,
			}
		}
		return item.CurrentStock + SignedDelta(req.Type, req.Quantity), tx, nil
	})
	if err != nil {
		return Transaction{}, Item{}, err
	}

	return tx, item, nil
}
