/*
Package catalog manages the item catalog.

PURPOSE:
  Create, update, list, and delete inventory items. This is the
  conventional CRUD side of the system: it has no ledger invariants of
  its own beyond SKU uniqueness and the rule that an item referenced by
  transactions is never hard-deleted.

STOCK EDITS:
  UpdateItem may set CurrentStock directly. This is a supported but
  separate catalog-editing path; normal stock mutation goes through the
  ledger's apply-transaction path, which is the only path that keeps the
  transaction history consistent with the stock field.
*/
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory-ledger/ledger"
)

// Service manages items on top of the shared store.
type Service struct {
	Store ledger.Store
	Now   func() time.Time
}

func NewService(store ledger.Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

// CreateItemInput describes a new item. Prices are decimal strings.
type CreateItemInput struct {
	SKU          string
	Name         string
	Description  string
	UnitCost     string
	SalePrice    string
	CurrentStock int
	ReorderPoint *int
}

// CreateItem validates input and persists a new item.
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (ledger.Item, error) {
	sku := strings.TrimSpace(in.SKU)
	name := strings.TrimSpace(in.Name)
	if sku == "" || name == "" {
		return ledger.Item{}, fmt.Errorf("%w: SKU and name are required", ledger.ErrInvalidItem)
	}
	if in.CurrentStock < 0 {
		return ledger.Item{}, fmt.Errorf("%w: stock cannot be negative", ledger.ErrInvalidItem)
	}

	unitCost, err := parsePrice(in.UnitCost)
	if err != nil {
		return ledger.Item{}, err
	}
	salePrice, err := parsePrice(in.SalePrice)
	if err != nil {
		return ledger.Item{}, err
	}

	now := s.Now().UTC()
	item := ledger.Item{
		ID:           uuid.NewString(),
		SKU:          sku,
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		UnitCost:     unitCost,
		SalePrice:    salePrice,
		CurrentStock: in.CurrentStock,
		ReorderPoint: in.ReorderPoint,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.SaveItem(ctx, item); err != nil {
		return ledger.Item{}, err
	}
	return item, nil
}

// UpdateItemInput carries item fields to change. Nil pointers leave the
// field untouched.
type UpdateItemInput struct {
	SKU          *string
	Name         *string
	Description  *string
	UnitCost     *string
	SalePrice    *string
	CurrentStock *int // direct edit path, bypasses the ledger
	ReorderPoint *int
}

// UpdateItem applies a partial update to an existing item.
func (s *Service) UpdateItem(ctx context.Context, id string, in UpdateItemInput) (ledger.Item, error) {
	item, err := s.Store.GetItem(ctx, id)
	if err != nil {
		return ledger.Item{}, err
	}

	if in.SKU != nil {
		if strings.TrimSpace(*in.SKU) == "" {
			return ledger.Item{}, fmt.Errorf("%w: SKU cannot be empty", ledger.ErrInvalidItem)
		}
		item.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		item.Description = strings.TrimSpace(*in.Description)
	}
	if in.UnitCost != nil {
		if item.UnitCost, err = parsePrice(*in.UnitCost); err != nil {
			return ledger.Item{}, err
		}
	}
	if in.SalePrice != nil {
		if item.SalePrice, err = parsePrice(*in.SalePrice); err != nil {
			return ledger.Item{}, err
		}
	}
	if in.CurrentStock != nil {
		if *in.CurrentStock < 0 {
			return ledger.Item{}, fmt.Errorf("%w: stock cannot be negative", ledger.ErrInvalidItem)
		}
		item.CurrentStock = *in.CurrentStock
	}
	if in.ReorderPoint != nil {
		item.ReorderPoint = in.ReorderPoint
	}
	item.UpdatedAt = s.Now().UTC()

	if err := s.Store.SaveItem(ctx, item); err != nil {
		return ledger.Item{}, err
	}
	return item, nil
}

// GetItem returns an item by id.
func (s *Service) GetItem(ctx context.Context, id string) (ledger.Item, error) {
	return s.Store.GetItem(ctx, id)
}

// ListItems returns one page of items plus the total count.
func (s *Service) ListItems(ctx context.Context, f ledger.ItemFilter) ([]ledger.Item, int, error) {
	return s.Store.ListItems(ctx, f)
}

// ListLowStock returns items at or below their reorder point.
func (s *Service) ListLowStock(ctx context.Context) ([]ledger.Item, error) {
	items, _, err := s.Store.ListItems(ctx, ledger.ItemFilter{LowStock: true, SortBy: "current_stock", Order: "asc"})
	return items, err
}

// DeleteItem removes an item. Fails with ErrItemReferenced while
// transactions reference it.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	return s.Store.DeleteItem(ctx, id)
}

func parsePrice(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid price %q", ledger.ErrInvalidItem, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: price cannot be negative", ledger.ErrInvalidItem)
	}
	return d, nil
}
