/*
fingerprint.go - Deterministic integrity digest over transaction fields

PURPOSE:
  Computes a content-derived digest for a committed transaction so the
  record can later be checked for tampering. The digest is a plain
  SHA-256 over a canonical string of the transaction's identifying
  fields. There is no chaining, no consensus, no proof-of-work: the
  guarantee is only that the digest is independently reproducible from
  the transaction's contents.

CANONICAL TUPLE (fixed order, joined with "-"):
  item id, transaction type, quantity,
  occurred-at (ISO-8601, millisecond precision, UTC), acting-user id

BEST-EFFORT CONTRACT:
  Digest computation happens AFTER the owning unit of work commits, and
  its failure must never roll back or fail the committed transaction.
  A transaction may carry an empty digest indefinitely; the sweep in
  service.go backfills them.

SEE ALSO:
  - service.go: Attaches digests post-commit, verifies on demand
  - types.go: TimeLayout shared with persistence
*/
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// =============================================================================
// FINGERPRINT ENGINE
// =============================================================================

// FingerprintEngine computes and checks integrity digests. The zero value
// is ready to use; ExplorerBaseURL only affects ExplorerURL.
type FingerprintEngine struct {
	// ExplorerBaseURL is the base for cosmetic explorer links. The link is
	// a pure string template over the digest, not a network lookup.
	ExplorerBaseURL string
}

// DefaultExplorerBaseURL is used when ExplorerBaseURL is empty.
const DefaultExplorerBaseURL = "https://ledger.stockroom.dev/tx"

// Compute builds the canonical string for tx and returns its SHA-256
// digest, hex-encoded lowercase. Pure function: same inputs always
// produce the same digest.
//
// Fails only when the canonical tuple is incomplete; the hash itself
// cannot fail. Callers treat any error as best-effort and log-and-continue.
func (f FingerprintEngine) Compute(tx Transaction) (string, error) {
	if tx.ItemID == "" || tx.UserID == "" || tx.OccurredAt.IsZero() {
		return "", fmt.Errorf("%w: item=%q user=%q occurred_at=%v",
			ErrIncompleteTransaction, tx.ItemID, tx.UserID, tx.OccurredAt)
	}
	if !ValidType(tx.Type) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, tx.Type)
	}
	if tx.Quantity <= 0 {
		return "", ErrInvalidQuantity
	}

	canonical := fmt.Sprintf("%s-%s-%d-%s-%s",
		tx.ItemID, tx.Type, tx.Quantity, FormatTime(tx.OccurredAt), tx.UserID)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the digest for tx and compares it to digest.
// Returns false (not an error) on mismatch, and false for an empty or
// absent digest.
func (f FingerprintEngine) Verify(tx Transaction, digest string) bool {
	if digest == "" {
		return false
	}
	computed, err := f.Compute(tx)
	if err != nil {
		return false
	}
	return computed == digest
}

// ExplorerURL formats the cosmetic external link for a digest.
func (f FingerprintEngine) ExplorerURL(digest string) string {
	base := f.ExplorerBaseURL
	if base == "" {
		base = DefaultExplorerBaseURL
	}
	return fmt.Sprintf("%s/%s", base, digest)
}
