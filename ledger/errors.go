/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is or the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - Malformed caller input (400-class)
  2. Business-rule errors - Deterministic given current state (400-class)
  3. Not-found errors - Missing item or transaction (404-class)
  4. Infrastructure errors - Storage failures (500-class, retryable
     before commit, never after)

USAGE:
  if errors.Is(err, ledger.ErrInsufficientStock) {
      // report as a business failure, do not retry automatically
  }

SEE ALSO:
  - ledger.go: Produces validation and business errors
  - service.go: Maps errors to response classes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidQuantity is returned when quantity is not a positive integer.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrInvalidTransactionType is returned when the type is not one of the
	// recognized kinds, or is outside the allowed set for the operation
	// (sales must go through RecordSale, not RecordAdjustment).
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInsufficientStock is returned when a decreasing transaction would
	// drive stock below zero. Deterministic given current state; the system
	// never retries it automatically.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrItemNotFound is returned when a referenced item doesn't exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrTransactionNotFound is returned when a referenced transaction
	// doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNoDigestRecorded is returned by verification when a transaction
	// has no integrity digest attached yet.
	ErrNoDigestRecorded = errors.New("no integrity digest recorded for transaction")

	// ErrInvalidItem is returned when item fields are malformed (empty SKU
	// or name, unparseable or negative price, negative stock).
	ErrInvalidItem = errors.New("invalid item")

	// ErrDuplicateSKU is returned when creating an item with a SKU that
	// already exists.
	ErrDuplicateSKU = errors.New("duplicate SKU")

	// ErrItemReferenced is returned when deleting an item that
	// transactions still reference.
	ErrItemReferenced = errors.New("item is referenced by transactions")

	// ErrIncompleteTransaction is returned by digest computation when a
	// transaction is missing a field of the canonical tuple.
	ErrIncompleteTransaction = errors.New("transaction is missing fields required for digest")

	// ErrStoreUnavailable wraps storage-level failures. Safe to retry the
	// whole unit of work since nothing has committed.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports how short the stock was.
type InsufficientStockError struct {
	ItemID    string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: available %d, requested %d",
		e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input or a
// business rule, i.e. a 400-class failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidTransactionType) ||
		errors.Is(err, ErrInvalidItem) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateSKU) ||
		errors.Is(err, ErrItemReferenced)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrNoDigestRecorded)
}

// IsRetryable returns true if the whole unit of work may be retried.
// Only infrastructure failures qualify; validation and business failures
// are deterministic and retry is pointless.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
