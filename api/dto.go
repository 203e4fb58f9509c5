/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in the domain services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/stockroom/inventory-ledger/ledger"
	"github.com/stockroom/inventory-ledger/reports"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// BuyRequest records a sale attributed to the authenticated buyer.
type BuyRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// CreateTransactionRequest records a non-sale stock transaction.
type CreateTransactionRequest struct {
	ItemID          string `json:"item_id"`
	TransactionType string `json:"transaction_type"`
	Quantity        int    `json:"quantity"`
	Notes           string `json:"notes,omitempty"`
	TransactionDate string `json:"transaction_date,omitempty"` // canonical timestamp, may be backdated
}

// CreateItemRequest creates a catalog item.
type CreateItemRequest struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	UnitCost     string `json:"unit_cost"`
	SalePrice    string `json:"sale_price"`
	CurrentStock int    `json:"current_stock"`
	ReorderPoint *int   `json:"reorder_point,omitempty"`
}

// UpdateItemRequest partially updates a catalog item.
type UpdateItemRequest struct {
	SKU          *string `json:"sku,omitempty"`
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	UnitCost     *string `json:"unit_cost,omitempty"`
	SalePrice    *string `json:"sale_price,omitempty"`
	CurrentStock *int    `json:"current_stock,omitempty"`
	ReorderPoint *int    `json:"reorder_point,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ItemDTO represents an item in API responses.
type ItemDTO struct {
	ID           string `json:"id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	UnitCost     string `json:"unit_cost"`
	SalePrice    string `json:"sale_price"`
	CurrentStock int    `json:"current_stock"`
	ReorderPoint *int   `json:"reorder_point,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// TransactionDTO represents a ledger transaction.
type TransactionDTO struct {
	ID         string `json:"id"`
	ItemID     string `json:"item_id"`
	Type       string `json:"type"`
	Quantity   int    `json:"quantity"`
	Delta      int    `json:"delta"`
	UserID     string `json:"user_id"`
	Note       string `json:"note,omitempty"`
	OccurredAt string `json:"occurred_at"`
	Digest     string `json:"digest,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// RecordResultDTO is the response to a recorded transaction.
type RecordResultDTO struct {
	Transaction TransactionDTO `json:"transaction"`
	Item        ItemDTO        `json:"item"`
}

// VerificationDTO is the response to a verify query.
type VerificationDTO struct {
	TransactionID string `json:"transaction_id"`
	Digest        string `json:"digest"`
	IsValid       bool   `json:"is_valid"`
	ExplorerURL   string `json:"explorer_url"`
}

// PaginationDTO describes a page of results.
type PaginationDTO struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// PageDTO wraps a page of results with pagination metadata.
type PageDTO struct {
	Data       any           `json:"data"`
	Pagination PaginationDTO `json:"pagination"`
}

// InventoryLineDTO is one row of the inventory summary report.
type InventoryLineDTO struct {
	ItemDTO
	TotalValue      string `json:"total_value"`
	TotalSaleValue  string `json:"total_sale_value"`
	PotentialProfit string `json:"potential_profit"`
}

// InventorySummaryDTO is the inventory valuation report.
type InventorySummaryDTO struct {
	Lines  []InventoryLineDTO `json:"data"`
	Totals InventoryTotalsDTO `json:"totals"`
	Total  int                `json:"total"`
}

// InventoryTotalsDTO aggregates the full filtered set.
type InventoryTotalsDTO struct {
	TotalItems           int    `json:"total_items"`
	TotalStock           int    `json:"total_stock"`
	TotalValue           string `json:"total_value"`
	TotalSaleValue       string `json:"total_sale_value"`
	TotalPotentialProfit string `json:"total_potential_profit"`
}

// ActivityReportDTO summarizes stock movement over a date range.
type ActivityReportDTO struct {
	From             string         `json:"from"`
	To               string         `json:"to"`
	TransactionCount int            `json:"transaction_count"`
	UnitsIn          int            `json:"units_in"`
	UnitsOut         int            `json:"units_out"`
	SalesCount       int            `json:"sales_count"`
	UnitsSold        int            `json:"units_sold"`
	SalesRevenue     string         `json:"sales_revenue"`
	ByType           map[string]int `json:"by_type"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toItemDTO(item ledger.Item) ItemDTO {
	return ItemDTO{
		ID:           item.ID,
		SKU:          item.SKU,
		Name:         item.Name,
		Description:  item.Description,
		UnitCost:     item.UnitCost.String(),
		SalePrice:    item.SalePrice.String(),
		CurrentStock: item.CurrentStock,
		ReorderPoint: item.ReorderPoint,
		CreatedAt:    ledger.FormatTime(item.CreatedAt),
		UpdatedAt:    ledger.FormatTime(item.UpdatedAt),
	}
}

func toItemDTOs(items []ledger.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	return dtos
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:         tx.ID,
		ItemID:     tx.ItemID,
		Type:       string(tx.Type),
		Quantity:   tx.Quantity,
		Delta:      tx.Delta(),
		UserID:     tx.UserID,
		Note:       tx.Note,
		OccurredAt: ledger.FormatTime(tx.OccurredAt),
		Digest:     tx.Digest,
		CreatedAt:  ledger.FormatTime(tx.CreatedAt),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toInventorySummaryDTO(summary reports.InventorySummary) InventorySummaryDTO {
	dto := InventorySummaryDTO{
		Lines: make([]InventoryLineDTO, len(summary.Lines)),
		Total: summary.Total,
		Totals: InventoryTotalsDTO{
			TotalItems:           summary.Totals.TotalItems,
			TotalStock:           summary.Totals.TotalStock,
			TotalValue:           summary.Totals.TotalValue.String(),
			TotalSaleValue:       summary.Totals.TotalSaleValue.String(),
			TotalPotentialProfit: summary.Totals.TotalPotentialProfit.String(),
		},
	}
	for i, line := range summary.Lines {
		dto.Lines[i] = InventoryLineDTO{
			ItemDTO:         toItemDTO(line.Item),
			TotalValue:      line.TotalValue.String(),
			TotalSaleValue:  line.TotalSaleValue.String(),
			PotentialProfit: line.PotentialProfit.String(),
		}
	}
	return dto
}

func toActivityReportDTO(report reports.ActivityReport) ActivityReportDTO {
	byType := make(map[string]int, len(report.ByType))
	for t, n := range report.ByType {
		byType[string(t)] = n
	}
	return ActivityReportDTO{
		From:             ledger.FormatTime(report.From),
		To:               ledger.FormatTime(report.To),
		TransactionCount: report.TransactionCount,
		UnitsIn:          report.UnitsIn,
		UnitsOut:         report.UnitsOut,
		SalesCount:       report.SalesCount,
		UnitsSold:        report.UnitsSold,
		SalesRevenue:     report.SalesRevenue.String(),
		ByType:           byType,
	}
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		limit = 10
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pages
}
