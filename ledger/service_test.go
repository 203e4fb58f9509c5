package ledger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stockroom/inventory-ledger/ledger"
	"github.com/stockroom/inventory-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*ledger.Service, *store.Memory) {
	mem := store.NewMemory()
	return ledger.NewService(mem, ""), mem
}

// flakyStore fails AttachDigest on demand while delegating everything
// else to the in-memory store.
type flakyStore struct {
	*store.Memory
	failAttach bool
}

func (f *flakyStore) AttachDigest(ctx context.Context, transactionID, digest string) error {
	if f.failAttach {
		return fmt.Errorf("%w: simulated outage", ledger.ErrStoreUnavailable)
	}
	return f.Memory.AttachDigest(ctx, transactionID, digest)
}

// =============================================================================
// RECORD SALE
// =============================================================================

func TestRecordSale_CommitsAndAttachesDigest(t *testing.T) {
	// GIVEN: An item with stock
	// WHEN: A buyer purchases 2 units
	// THEN: Stock drops, the note is the fixed sale note, the transaction is
	//       attributed to the buyer, and the stored row carries a valid digest

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedItem(t, mem, "widget", 10)

	result, err := svc.RecordSale(ctx, "buyer-1", "widget", 2)
	require.NoError(t, err)

	assert.Equal(t, 8, result.Item.CurrentStock)
	assert.Equal(t, ledger.TxSale, result.Transaction.Type)
	assert.Equal(t, "buyer-1", result.Transaction.UserID)
	assert.Equal(t, ledger.SaleNote, result.Transaction.Note)
	assert.NotEmpty(t, result.Transaction.Digest)

	stored, err := mem.FindTransaction(ctx, result.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Transaction.Digest, stored.Digest)
	assert.True(t, svc.Fingerprint.Verify(stored, stored.Digest))
}

func TestRecordSale_InsufficientStock_NothingRecorded(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedItem(t, mem, "widget", 1)

	_, err := svc.RecordSale(ctx, "buyer-1", "widget", 2)
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	item, err := mem.GetItem(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, 1, item.CurrentStock)
}

func TestRecordSale_DigestFailure_DoesNotFailSale(t *testing.T) {
	// GIVEN: A store whose digest update is down
	// WHEN: Recording a sale
	// THEN: The sale still succeeds and commits; only the digest is missing

	fs := &flakyStore{Memory: store.NewMemory(), failAttach: true}
	svc := &ledger.Service{
		Ledger:      ledger.NewStockLedger(fs),
		Fingerprint: ledger.FingerprintEngine{},
		Store:       fs,
	}
	ctx := context.Background()
	seedItem(t, fs.Memory, "widget", 10)

	result, err := svc.RecordSale(ctx, "buyer-1", "widget", 3)
	require.NoError(t, err, "commit must not be failed retroactively")

	assert.Equal(t, 7, result.Item.CurrentStock)
	assert.Empty(t, result.Transaction.Digest)

	stored, err := fs.FindTransaction(ctx, result.Transaction.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Digest)
}

// =============================================================================
// RECORD ADJUSTMENT
// =============================================================================

func TestRecordAdjustment_AllowedTypes(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedItem(t, mem, "widget", 0)

	result, err := svc.RecordAdjustment(ctx, "clerk-1", "widget", ledger.TxInitialStock, 50, "opening count", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 50, result.Item.CurrentStock)
	assert.Equal(t, "opening count", result.Transaction.Note)

	result, err = svc.RecordAdjustment(ctx, "clerk-1", "widget", ledger.TxAdjustmentDecrease, 5, "breakage", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 45, result.Item.CurrentStock)
}

func TestRecordAdjustment_SaleType_Rejected(t *testing.T) {
	// GIVEN: An item with stock
	// WHEN: Trying to record a sale through the adjustment path
	// THEN: The request is rejected before any stock change

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedItem(t, mem, "widget", 10)

	_, err := svc.RecordAdjustment(ctx, "clerk-1", "widget", ledger.TxSale, 1, "", time.Time{})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransactionType)

	item, err := mem.GetItem(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, 10, item.CurrentStock)
}

func TestRecordAdjustment_Backdated(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedItem(t, mem, "widget", 10)

	past := time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC)
	result, err := svc.RecordAdjustment(ctx, "clerk-1", "widget", ledger.TxAdjustmentIncrease, 2, "late entry", past)
	require.NoError(t, err)
	assert.Equal(t, past, result.Transaction.OccurredAt)
}

// =============================================================================
// VERIFICATION
// =============================================================================

func TestVerifyTransaction_IntactRecord(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedItem(t, mem, "widget", 10)

	result, err := svc.RecordSale(ctx, "buyer-1", "widget", 1)
	require.NoError(t, err)

	v, err := svc.VerifyTransaction(ctx, result.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.Equal(t, result.Transaction.Digest, v.Digest)
	assert.Contains(t, v.ExplorerURL, v.Digest)
}

func TestVerifyTransaction_MissingDigest(t *testing.T) {
	// GIVEN: A committed transaction whose digest never attached
	// WHEN: Verifying it
	// THEN: ErrNoDigestRecorded, not a false "invalid" verdict

	fs := &flakyStore{Memory: store.NewMemory(), failAttach: true}
	svc := &ledger.Service{
		Ledger:      ledger.NewStockLedger(fs),
		Fingerprint: ledger.FingerprintEngine{},
		Store:       fs,
	}
	ctx := context.Background()
	seedItem(t, fs.Memory, "widget", 10)

	result, err := svc.RecordSale(ctx, "buyer-1", "widget", 1)
	require.NoError(t, err)

	_, err = svc.VerifyTransaction(ctx, result.Transaction.ID)
	assert.ErrorIs(t, err, ledger.ErrNoDigestRecorded)
}

func TestVerifyTransaction_Unknown(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.VerifyTransaction(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

// =============================================================================
// DIGEST BACKFILL
// =============================================================================

func TestBackfillDigests_FillsMissingOnly(t *testing.T) {
	// GIVEN: Two transactions recorded during a digest outage and one after
	// WHEN: Running the backfill sweep
	// THEN: Exactly the two missing digests are attached, and they verify

	fs := &flakyStore{Memory: store.NewMemory()}
	svc := &ledger.Service{
		Ledger:      ledger.NewStockLedger(fs),
		Fingerprint: ledger.FingerprintEngine{},
		Store:       fs,
	}
	ctx := context.Background()
	seedItem(t, fs.Memory, "widget", 100)

	fs.failAttach = true
	r1, err := svc.RecordSale(ctx, "buyer-1", "widget", 1)
	require.NoError(t, err)
	r2, err := svc.RecordSale(ctx, "buyer-2", "widget", 2)
	require.NoError(t, err)

	fs.failAttach = false
	r3, err := svc.RecordSale(ctx, "buyer-3", "widget", 3)
	require.NoError(t, err)
	require.NotEmpty(t, r3.Transaction.Digest)

	attached, err := svc.BackfillDigests(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, attached)

	for _, id := range []string{r1.Transaction.ID, r2.Transaction.ID, r3.Transaction.ID} {
		tx, err := fs.FindTransaction(ctx, id)
		require.NoError(t, err)
		assert.True(t, svc.Fingerprint.Verify(tx, tx.Digest), "tx %s must verify after backfill", id)
	}

	// A second sweep finds nothing left to do.
	attached, err = svc.BackfillDigests(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, attached)
}

func TestBackfillDigests_HonorsLimit(t *testing.T) {
	fs := &flakyStore{Memory: store.NewMemory(), failAttach: true}
	svc := &ledger.Service{
		Ledger:      ledger.NewStockLedger(fs),
		Fingerprint: ledger.FingerprintEngine{},
		Store:       fs,
	}
	ctx := context.Background()
	seedItem(t, fs.Memory, "widget", 100)

	for i := 0; i < 5; i++ {
		_, err := svc.RecordSale(ctx, "buyer-1", "widget", 1)
		require.NoError(t, err)
	}

	fs.failAttach = false
	attached, err := svc.BackfillDigests(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, attached)

	remaining, err := fs.ListMissingDigest(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

// =============================================================================
// END TO END
// =============================================================================

func TestLedger_EndToEnd_SaleAdjustVerify(t *testing.T) {
	// GIVEN: A freshly stocked item
	// WHEN: Running a realistic day (initial load, sales, correction)
	// THEN: Stock, history, and digests are all consistent

	svc, mem := newTestService(t)
	ctx := context.Background()
	seedItem(t, mem, "mug", 0)

	_, err := svc.RecordAdjustment(ctx, "manager-1", "mug", ledger.TxInitialStock, 20, "opening count", time.Time{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordSale(ctx, "buyer-1", "mug", 2)
		require.NoError(t, err)
	}

	// One mug broke in the stockroom.
	result, err := svc.RecordAdjustment(ctx, "manager-1", "mug", ledger.TxAdjustmentDecrease, 1, "breakage", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 13, result.Item.CurrentStock)

	txs, total, err := svc.ListTransactions(ctx, ledger.TransactionFilter{ItemID: "mug", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 13, ledger.ReplayStock(0, txs))

	for _, tx := range txs {
		v, err := svc.VerifyTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.True(t, v.IsValid)
	}
}
