// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/stockroom/inventory-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.Store with in-process maps. The unit of work
// is a single mutex: WithStockUpdate computes all effects before
// touching state, so a mutator error leaves nothing behind.
type Memory struct {
	mu           sync.RWMutex
	items        map[string]ledger.Item
	transactions map[string]ledger.Transaction
	order        []string // transaction ids in commit order
}

func NewMemory() *Memory {
	return &Memory{
		items:        make(map[string]ledger.Item),
		transactions: make(map[string]ledger.Transaction),
	}
}

// =============================================================================
// STOCK UPDATE
// =============================================================================

func (m *Memory) WithStockUpdate(ctx context.Context, itemID string, mutate ledger.StockMutator) (ledger.Item, ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ledger.Item{}, ledger.Transaction{}, err
	}

	item, ok := m.items[itemID]
	if !ok {
		return ledger.Item{}, ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrItemNotFound, itemID)
	}

	newStock, tx, err := mutate(item)
	if err != nil {
		return ledger.Item{}, ledger.Transaction{}, err
	}
	if _, exists := m.transactions[tx.ID]; exists {
		return ledger.Item{}, ledger.Transaction{}, fmt.Errorf("duplicate transaction id %s: %w", tx.ID, ledger.ErrStoreUnavailable)
	}

	// Commit point: both effects or neither.
	item.CurrentStock = newStock
	item.UpdatedAt = tx.CreatedAt
	m.items[itemID] = item
	m.transactions[tx.ID] = tx
	m.order = append(m.order, tx.ID)

	return item, tx, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) AttachDigest(_ context.Context, transactionID, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[transactionID]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, transactionID)
	}
	tx.Digest = digest
	m.transactions[transactionID] = tx
	return nil
}

func (m *Memory) FindTransaction(_ context.Context, id string) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, id)
	}
	return tx, nil
}

func (m *Memory) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []ledger.Transaction
	for _, id := range m.order {
		tx := m.transactions[id]
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if f.ItemID != "" && tx.ItemID != f.ItemID {
			continue
		}
		if f.UserID != "" && tx.UserID != f.UserID {
			continue
		}
		if !f.From.IsZero() && tx.OccurredAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && tx.OccurredAt.After(f.To) {
			continue
		}
		if f.Search != "" && !m.matchesSearch(tx, f.Search) {
			continue
		}
		matched = append(matched, tx)
	}

	total := len(matched)
	sortTransactions(matched, f.SortBy, f.Order)
	return paginate(matched, f.Page, f.Limit), total, nil
}

func (m *Memory) matchesSearch(tx ledger.Transaction, search string) bool {
	s := strings.ToLower(search)
	if strings.Contains(strings.ToLower(tx.Note), s) {
		return true
	}
	if item, ok := m.items[tx.ItemID]; ok {
		return strings.Contains(strings.ToLower(item.Name), s) ||
			strings.Contains(strings.ToLower(item.SKU), s)
	}
	return false
}

func (m *Memory) ListMissingDigest(_ context.Context, limit int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var missing []ledger.Transaction
	for _, id := range m.order {
		if tx := m.transactions[id]; tx.Digest == "" {
			missing = append(missing, tx)
			if limit > 0 && len(missing) >= limit {
				break
			}
		}
	}
	return missing, nil
}

// =============================================================================
// ITEMS
// =============================================================================

func (m *Memory) GetItem(_ context.Context, id string) (ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return ledger.Item{}, fmt.Errorf("%w: %s", ledger.ErrItemNotFound, id)
	}
	return item, nil
}

func (m *Memory) SaveItem(_ context.Context, item ledger.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.SKU == item.SKU && existing.ID != item.ID {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateSKU, item.SKU)
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *Memory) ListItems(_ context.Context, f ledger.ItemFilter) ([]ledger.Item, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []ledger.Item
	for _, item := range m.items {
		if f.Search != "" {
			s := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(item.Name), s) &&
				!strings.Contains(strings.ToLower(item.SKU), s) &&
				!strings.Contains(strings.ToLower(item.Description), s) {
				continue
			}
		}
		if f.LowStock && !item.BelowReorderPoint() {
			continue
		}
		matched = append(matched, item)
	}

	total := len(matched)
	sortItems(matched, f.SortBy, f.Order)
	if f.Limit == 0 {
		return matched, total, nil
	}
	return paginateItems(matched, f.Page, f.Limit), total, nil
}

func (m *Memory) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrItemNotFound, id)
	}
	for _, tx := range m.transactions {
		if tx.ItemID == id {
			return fmt.Errorf("%w: %s", ledger.ErrItemReferenced, id)
		}
	}
	delete(m.items, id)
	return nil
}

// =============================================================================
// SORT / PAGINATE HELPERS
// =============================================================================

func sortTransactions(txs []ledger.Transaction, sortBy, order string) {
	less := func(i, j int) bool { return txs[i].OccurredAt.Before(txs[j].OccurredAt) }
	switch sortBy {
	case "created_at":
		less = func(i, j int) bool { return txs[i].CreatedAt.Before(txs[j].CreatedAt) }
	case "quantity":
		less = func(i, j int) bool { return txs[i].Quantity < txs[j].Quantity }
	case "type":
		less = func(i, j int) bool { return txs[i].Type < txs[j].Type }
	}
	if order != "asc" {
		inner := less
		less = func(i, j int) bool { return inner(j, i) }
	}
	sort.SliceStable(txs, less)
}

func sortItems(items []ledger.Item, sortBy, order string) {
	less := func(i, j int) bool { return items[i].Name < items[j].Name }
	switch sortBy {
	case "sku":
		less = func(i, j int) bool { return items[i].SKU < items[j].SKU }
	case "current_stock":
		less = func(i, j int) bool { return items[i].CurrentStock < items[j].CurrentStock }
	case "created_at":
		less = func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) }
	}
	if order == "desc" {
		inner := less
		less = func(i, j int) bool { return inner(j, i) }
	}
	sort.SliceStable(items, less)
}

func paginate(txs []ledger.Transaction, page, limit int) []ledger.Transaction {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(txs) {
		return []ledger.Transaction{}
	}
	end := start + limit
	if end > len(txs) {
		end = len(txs)
	}
	return txs[start:end]
}

func paginateItems(items []ledger.Item, page, limit int) []ledger.Item {
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []ledger.Item{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
