/*
service.go - Use-case orchestration for the transaction ledger

PURPOSE:
  Service wires StockLedger, FingerprintEngine, and the Store together
  for the three transaction-producing use cases (sale, manual
  adjustment, initial stock) and for verification queries.

REQUEST PIPELINE (per call, not persisted):
  Validated -> StockChecked -> Committed -> DigestAttached(optional) -> Returned

  Committed is the durability point: from there the transaction is real
  and visible to readers even if later steps fail. Digest computation
  and attachment are best-effort; a failure is logged and swallowed, and
  the transaction simply carries an empty digest until the backfill
  sweep catches it.

SEE ALSO:
  - ledger.go: Validation and the atomic apply
  - fingerprint.go: Digest computation and verification
  - api/sweeper.go: Periodic BackfillDigests driver
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// SaleNote is the fixed note recorded on every sale transaction.
const SaleNote = "Online Sale"

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates the ledger use cases.
type Service struct {
	Ledger      *StockLedger
	Fingerprint FingerprintEngine
	Store       Store
}

// NewService creates a Service over store. Pass an empty explorerBaseURL
// to use the default.
func NewService(store Store, explorerBaseURL string) *Service {
	return &Service{
		Ledger:      NewStockLedger(store),
		Fingerprint: FingerprintEngine{ExplorerBaseURL: explorerBaseURL},
		Store:       store,
	}
}

// Result is the outcome of a recorded transaction. Transaction.Digest is
// populated only when digest attachment succeeded in-line; an empty
// digest does not indicate failure of the recording itself.
type Result struct {
	Transaction Transaction
	Item        Item
}

// =============================================================================
// PRODUCER USE CASES
// =============================================================================

// RecordSale records a purchase by actor: always type sale, always
// quantity-checked against stock, always attributed to the purchasing
// user, with the fixed note "Online Sale".
func (s *Service) RecordSale(ctx context.Context, actorID, itemID string, quantity int) (Result, error) {
	return s.record(ctx, ApplyRequest{
		ItemID:   itemID,
		Type:     TxSale,
		Quantity: quantity,
		UserID:   actorID,
		Note:     SaleNote,
	})
}

// RecordAdjustment records an initial-stock load or a manual stock
// correction. The caller supplies type, quantity, note, and an optional
// backdated occurred-at. Sales are rejected here: they must go through
// RecordSale, which carries its own attribution and side effects.
func (s *Service) RecordAdjustment(ctx context.Context, actorID, itemID string, txType TransactionType, quantity int, note string, occurredAt time.Time) (Result, error) {
	switch txType {
	case TxInitialStock, TxAdjustmentIncrease, TxAdjustmentDecrease:
	default:
		return Result{}, fmt.Errorf("%w: %q (must be one of initial_stock, adjustment_increase, adjustment_decrease)",
			ErrInvalidTransactionType, txType)
	}

	return s.record(ctx, ApplyRequest{
		ItemID:     itemID,
		Type:       txType,
		Quantity:   quantity,
		UserID:     actorID,
		Note:       note,
		OccurredAt: occurredAt,
	})
}

// record runs the shared pipeline: atomic apply, then best-effort digest.
func (s *Service) record(ctx context.Context, req ApplyRequest) (Result, error) {
	tx, item, err := s.Ledger.Apply(ctx, req)
	if err != nil {
		return Result{}, err
	}

	// Committed. Everything below is best-effort: the transaction is
	// already durable and must not be failed retroactively.
	if digest, err := s.attachDigest(ctx, tx); err != nil {
		log.Printf("[ledger] digest attach failed for tx %s (will backfill): %v", tx.ID, err)
	} else {
		tx.Digest = digest
	}

	return Result{Transaction: tx, Item: item}, nil
}

func (s *Service) attachDigest(ctx context.Context, tx Transaction) (string, error) {
	digest, err := s.Fingerprint.Compute(tx)
	if err != nil {
		return "", fmt.Errorf("compute: %w", err)
	}
	if err := s.Store.AttachDigest(ctx, tx.ID, digest); err != nil {
		return "", fmt.Errorf("attach: %w", err)
	}
	return digest, nil
}

// =============================================================================
// VERIFICATION
// =============================================================================

// Verification is the outcome of a verify query.
type Verification struct {
	TransactionID string
	Digest        string
	IsValid       bool
	ExplorerURL   string
}

// VerifyTransaction loads the transaction and checks its stored digest
// against a recomputation. Fails with ErrTransactionNotFound or, when no
// digest has been attached yet, ErrNoDigestRecorded. A mismatch is a
// valid result (IsValid=false), not an error.
func (s *Service) VerifyTransaction(ctx context.Context, id string) (Verification, error) {
	tx, err := s.Store.FindTransaction(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	if tx.Digest == "" {
		return Verification{}, fmt.Errorf("%w: %s", ErrNoDigestRecorded, id)
	}

	return Verification{
		TransactionID: tx.ID,
		Digest:        tx.Digest,
		IsValid:       s.Fingerprint.Verify(tx, tx.Digest),
		ExplorerURL:   s.Fingerprint.ExplorerURL(tx.Digest),
	}, nil
}

// =============================================================================
// READ PATH
// =============================================================================

// GetTransaction returns a single transaction.
func (s *Service) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return s.Store.FindTransaction(ctx, id)
}

// ListTransactions returns one page of transactions plus the total count.
func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, int, error) {
	return s.Store.ListTransactions(ctx, f)
}

// =============================================================================
// DIGEST BACKFILL
// =============================================================================

// BackfillDigests recomputes and attaches digests for up to limit
// transactions that committed without one. Per-row failures are logged
// and skipped; the sweep is safe to run at any time and as often as
// wanted. Returns the number of digests attached.
func (s *Service) BackfillDigests(ctx context.Context, limit int) (int, error) {
	txs, err := s.Store.ListMissingDigest(ctx, limit)
	if err != nil {
		return 0, err
	}

	attached := 0
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return attached, err
		}
		if _, err := s.attachDigest(ctx, tx); err != nil {
			// Skip rows that still race with an in-flight attach.
			if errors.Is(err, ErrTransactionNotFound) {
				continue
			}
			log.Printf("[ledger] backfill failed for tx %s: %v", tx.ID, err)
			continue
		}
		attached++
	}
	return attached, nil
}
