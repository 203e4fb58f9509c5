/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Production persistence for items and transactions. In production with
  PostgreSQL the same patterns apply - only minor SQL dialect
  differences.

ATOMIC STOCK UPDATE:
  WithStockUpdate maps the unit of work onto a single database
  transaction: SELECT the item, run the mutator, UPDATE the item's
  stock, INSERT the transaction row, COMMIT. A write mutex plus SQLite's
  single-writer transactions serialize the read-modify-write, so two
  concurrent updates against the same item never both see a stale stock.

APPEND-ONLY ENFORCEMENT:
  The only UPDATE ever issued against the transactions table sets the
  digest column of a row that committed without one. There is no DELETE.
  Stock corrections are compensating adjustment rows.

KEY TABLES:
  items:        Catalog with denormalized current_stock (CHECK >= 0)
  transactions: Immutable ledger of stock-affecting events

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store, "")

SEE ALSO:
  - ledger/store.go: Interface definitions and the unit-of-work contract
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory-ledger/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite is single-writer anyway, and :memory:
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Items (catalog with denormalized stock)
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		unit_cost TEXT NOT NULL,
		sale_price TEXT NOT NULL,
		current_stock INTEGER NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
		reorder_point INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_sku ON items(sku);
	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES items(id),
		tx_type TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		user_id TEXT NOT NULL,
		note TEXT,
		occurred_at TEXT NOT NULL,
		digest TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_item
		ON transactions(item_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_occurred_at
		ON transactions(occurred_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(tx_type);
	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id);

	-- Feed for the digest backfill sweep
	CREATE INDEX IF NOT EXISTS idx_transactions_missing_digest
		ON transactions(created_at) WHERE digest IS NULL OR digest = '';
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STOCK UPDATE (the atomic unit of work)
// =============================================================================

// WithStockUpdate executes one atomic read-modify-write: load the item,
// run the mutator, persist the new stock and the transaction row,
// commit. Any failure before commit rolls everything back.
func (s *Store) WithStockUpdate(ctx context.Context, itemID string, mutate ledger.StockMutator) (ledger.Item, ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Item{}, ledger.Transaction{}, fmt.Errorf("%w: begin: %v", ledger.ErrStoreUnavailable, err)
	}
	defer sqlTx.Rollback()

	item, err := scanItemRow(sqlTx.QueryRowContext(ctx, selectItem+" WHERE id = ?", itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Item{}, ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrItemNotFound, itemID)
	}
	if err != nil {
		return ledger.Item{}, ledger.Transaction{}, fmt.Errorf("%w: load item: %v", ledger.ErrStoreUnavailable, err)
	}

	newStock, tx, err := mutate(item)
	if err != nil {
		return ledger.Item{}, ledger.Transaction{}, err
	}

	item.CurrentStock = newStock
	item.UpdatedAt = tx.CreatedAt

	_, err = sqlTx.ExecContext(ctx,
		`UPDATE items SET current_stock = ?, updated_at = ? WHERE id = ?`,
		newStock, ledger.FormatTime(item.UpdatedAt), itemID,
	)
	if err != nil {
		return ledger.Item{}, ledger.Transaction{}, fmt.Errorf("%w: update stock: %v", ledger.ErrStoreUnavailable, err)
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO transactions (id, item_id, tx_type, quantity, user_id, note, occurred_at, digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		tx.ID, tx.ItemID, tx.Type, tx.Quantity, tx.UserID, nullString(tx.Note),
		ledger.FormatTime(tx.OccurredAt), ledger.FormatTime(tx.CreatedAt),
	)
	if err != nil {
		return ledger.Item{}, ledger.Transaction{}, fmt.Errorf("%w: insert transaction: %v", ledger.ErrStoreUnavailable, err)
	}

	if err := sqlTx.Commit(); err != nil {
		return ledger.Item{}, ledger.Transaction{}, fmt.Errorf("%w: commit: %v", ledger.ErrStoreUnavailable, err)
	}

	return item, tx, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// AttachDigest sets the digest of a committed transaction. This is the
// only update ever issued against the transactions table.
func (s *Store) AttachDigest(ctx context.Context, transactionID, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET digest = ? WHERE id = ?`,
		digest, transactionID,
	)
	if err != nil {
		return fmt.Errorf("%w: attach digest: %v", ledger.ErrStoreUnavailable, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, transactionID)
	}
	return nil
}

const selectTransaction = `
	SELECT t.id, t.item_id, t.tx_type, t.quantity, t.user_id, t.note, t.occurred_at, t.digest, t.created_at
	FROM transactions t`

// FindTransaction returns a transaction by id.
func (s *Store) FindTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := scanTransactionRow(s.db.QueryRowContext(ctx, selectTransaction+" WHERE t.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, id)
	}
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("%w: find transaction: %v", ledger.ErrStoreUnavailable, err)
	}
	return tx, nil
}

// ListTransactions returns one page of transactions matching the filter
// and the total match count. The count and the page come from the same
// WHERE clause, so they are consistent.
func (s *Store) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		conds []string
		args  []any
	)
	if f.Type != "" {
		conds = append(conds, "t.tx_type = ?")
		args = append(args, f.Type)
	}
	if f.ItemID != "" {
		conds = append(conds, "t.item_id = ?")
		args = append(args, f.ItemID)
	}
	if f.UserID != "" {
		conds = append(conds, "t.user_id = ?")
		args = append(args, f.UserID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "t.occurred_at >= ?")
		args = append(args, ledger.FormatTime(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "t.occurred_at <= ?")
		args = append(args, ledger.FormatTime(f.To))
	}
	if f.Search != "" {
		conds = append(conds, "(i.name LIKE ? OR i.sku LIKE ? OR t.note LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	join := " JOIN items i ON i.id = t.item_id"
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM transactions t" + join + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count transactions: %v", ledger.ErrStoreUnavailable, err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	query := selectTransaction + join + where +
		" ORDER BY " + transactionSortColumn(f.SortBy) + " " + sortOrder(f.Order) +
		", t.created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list transactions: %v", ledger.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransactionRow(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	return txs, total, rows.Err()
}

// ListMissingDigest returns committed transactions without a digest,
// oldest first.
func (s *Store) ListMissingDigest(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE t.digest IS NULL OR t.digest = '' ORDER BY t.created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list missing digests: %v", ledger.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// ITEMS
// =============================================================================

const selectItem = `
	SELECT id, sku, name, description, unit_cost, sale_price, current_stock, reorder_point, created_at, updated_at
	FROM items`

// GetItem returns an item by id.
func (s *Store) GetItem(ctx context.Context, id string) (ledger.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := scanItemRow(s.db.QueryRowContext(ctx, selectItem+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Item{}, fmt.Errorf("%w: %s", ledger.ErrItemNotFound, id)
	}
	if err != nil {
		return ledger.Item{}, fmt.Errorf("%w: get item: %v", ledger.ErrStoreUnavailable, err)
	}
	return item, nil
}

// SaveItem inserts or updates an item.
func (s *Store) SaveItem(ctx context.Context, item ledger.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO items (id, sku, name, description, unit_cost, sale_price, current_stock, reorder_point, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sku = excluded.sku,
			name = excluded.name,
			description = excluded.description,
			unit_cost = excluded.unit_cost,
			sale_price = excluded.sale_price,
			current_stock = excluded.current_stock,
			reorder_point = excluded.reorder_point,
			updated_at = excluded.updated_at
	`

	var reorder any
	if item.ReorderPoint != nil {
		reorder = *item.ReorderPoint
	}

	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.SKU, item.Name, item.Description,
		item.UnitCost.String(), item.SalePrice.String(),
		item.CurrentStock, reorder,
		ledger.FormatTime(item.CreatedAt), ledger.FormatTime(item.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateSKU, item.SKU)
		}
		return fmt.Errorf("%w: save item: %v", ledger.ErrStoreUnavailable, err)
	}
	return nil
}

// ListItems returns one page of items matching the filter and the total
// match count. A zero Limit returns all matches (reports aggregate over
// the full filtered set).
func (s *Store) ListItems(ctx context.Context, f ledger.ItemFilter) ([]ledger.Item, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		conds []string
		args  []any
	)
	if f.Search != "" {
		conds = append(conds, "(name LIKE ? OR sku LIKE ? OR description LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if f.LowStock {
		conds = append(conds, "reorder_point IS NOT NULL AND current_stock <= reorder_point")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count items: %v", ledger.ErrStoreUnavailable, err)
	}

	query := selectItem + where + " ORDER BY " + itemSortColumn(f.SortBy) + " " + itemSortOrder(f.Order)
	if f.Limit > 0 {
		page := f.Page
		if page <= 0 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, (page-1)*f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list items: %v", ledger.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var items []ledger.Item
	for rows.Next() {
		item, err := scanItemRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// DeleteItem removes an item unless transactions reference it.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refs int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE item_id = ?", id,
	).Scan(&refs); err != nil {
		return fmt.Errorf("%w: count references: %v", ledger.ErrStoreUnavailable, err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: %s has %d transactions", ledger.ErrItemReferenced, id, refs)
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: delete item: %v", ledger.ErrStoreUnavailable, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrItemNotFound, id)
	}
	return nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemRow(row rowScanner) (ledger.Item, error) {
	var (
		item         ledger.Item
		description  sql.NullString
		unitCost     string
		salePrice    string
		reorderPoint sql.NullInt64
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&item.ID, &item.SKU, &item.Name, &description,
		&unitCost, &salePrice, &item.CurrentStock, &reorderPoint,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return item, err
	}

	item.Description = description.String
	item.UnitCost = mustParseDecimal(unitCost)
	item.SalePrice = mustParseDecimal(salePrice)
	if reorderPoint.Valid {
		rp := int(reorderPoint.Int64)
		item.ReorderPoint = &rp
	}
	item.CreatedAt, _ = ledger.ParseTime(createdAt)
	item.UpdatedAt, _ = ledger.ParseTime(updatedAt)
	return item, nil
}

func scanTransactionRow(row rowScanner) (ledger.Transaction, error) {
	var (
		tx         ledger.Transaction
		note       sql.NullString
		digest     sql.NullString
		occurredAt string
		createdAt  string
	)

	err := row.Scan(
		&tx.ID, &tx.ItemID, &tx.Type, &tx.Quantity, &tx.UserID,
		&note, &occurredAt, &digest, &createdAt,
	)
	if err != nil {
		return tx, err
	}

	tx.Note = note.String
	tx.Digest = digest.String
	tx.OccurredAt, _ = ledger.ParseTime(occurredAt)
	tx.CreatedAt, _ = ledger.ParseTime(createdAt)
	return tx, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Sort columns are whitelisted; anything else falls back to the default.

func transactionSortColumn(sortBy string) string {
	switch sortBy {
	case "created_at":
		return "t.created_at"
	case "quantity":
		return "t.quantity"
	case "type":
		return "t.tx_type"
	default:
		return "t.occurred_at"
	}
}

func itemSortColumn(sortBy string) string {
	switch sortBy {
	case "sku":
		return "sku"
	case "current_stock":
		return "current_stock"
	case "created_at":
		return "created_at"
	default:
		return "name"
	}
}

// Transactions default to newest first; items to alphabetical.

func sortOrder(order string) string {
	if order == "asc" {
		return "ASC"
	}
	return "DESC"
}

func itemSortOrder(order string) string {
	if order == "desc" {
		return "DESC"
	}
	return "ASC"
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
