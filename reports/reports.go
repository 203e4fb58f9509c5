/*
Package reports aggregates finalized transactions and catalog state.

PURPOSE:
  Pure read path over the store: inventory valuation and transaction
  activity summaries, plus CSV export. No invariants of its own -
  transactions are read-only inputs here.

PRECISION:
  All money aggregates use decimal arithmetic. Aggregate totals are
  computed over the FULL filtered set, not just the returned page.
*/
package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory-ledger/ledger"
)

// Service produces reports from the shared store.
type Service struct {
	Store ledger.Store
}

func NewService(store ledger.Store) *Service {
	return &Service{Store: store}
}

// =============================================================================
// INVENTORY SUMMARY
// =============================================================================

// InventoryLine is one item's valuation.
type InventoryLine struct {
	Item            ledger.Item
	TotalValue      decimal.Decimal // unit cost * current stock
	TotalSaleValue  decimal.Decimal // sale price * current stock
	PotentialProfit decimal.Decimal
}

// InventoryTotals aggregates the full filtered set.
type InventoryTotals struct {
	TotalItems           int
	TotalStock           int
	TotalValue           decimal.Decimal
	TotalSaleValue       decimal.Decimal
	TotalPotentialProfit decimal.Decimal
}

// InventorySummary is a paginated valuation report with whole-set totals.
type InventorySummary struct {
	Lines  []InventoryLine
	Totals InventoryTotals
	Total  int // total matching items, for pagination
}

// InventorySummary values every matching item at cost and at sale price.
// The Lines honor the filter's pagination; the Totals always cover the
// whole filtered set.
func (s *Service) InventorySummary(ctx context.Context, f ledger.ItemFilter) (InventorySummary, error) {
	page, total, err := s.Store.ListItems(ctx, f)
	if err != nil {
		return InventorySummary{}, err
	}

	summary := InventorySummary{Total: total}
	for _, item := range page {
		summary.Lines = append(summary.Lines, valuate(item))
	}

	// Totals over the full filtered set, ignoring pagination.
	all := page
	if f.Limit > 0 {
		full := f
		full.Page = 0
		full.Limit = 0
		if all, _, err = s.Store.ListItems(ctx, full); err != nil {
			return InventorySummary{}, err
		}
	}

	totals := InventoryTotals{
		TotalValue:           decimal.Zero,
		TotalSaleValue:       decimal.Zero,
		TotalPotentialProfit: decimal.Zero,
	}
	for _, item := range all {
		line := valuate(item)
		totals.TotalItems++
		totals.TotalStock += item.CurrentStock
		totals.TotalValue = totals.TotalValue.Add(line.TotalValue)
		totals.TotalSaleValue = totals.TotalSaleValue.Add(line.TotalSaleValue)
		totals.TotalPotentialProfit = totals.TotalPotentialProfit.Add(line.PotentialProfit)
	}
	summary.Totals = totals

	return summary, nil
}

func valuate(item ledger.Item) InventoryLine {
	stock := decimal.NewFromInt(int64(item.CurrentStock))
	value := item.UnitCost.Mul(stock)
	saleValue := item.SalePrice.Mul(stock)
	return InventoryLine{
		Item:            item,
		TotalValue:      value,
		TotalSaleValue:  saleValue,
		PotentialProfit: saleValue.Sub(value),
	}
}

// =============================================================================
// TRANSACTION ACTIVITY
// =============================================================================

// ActivityReport summarizes stock movement over a date range.
type ActivityReport struct {
	From time.Time
	To   time.Time

	TransactionCount int
	UnitsIn          int // initial_stock + adjustment_increase
	UnitsOut         int // adjustment_decrease + sale
	SalesCount       int
	UnitsSold        int
	SalesRevenue     decimal.Decimal // units sold * sale price at report time
	ByType           map[ledger.TransactionType]int
}

// activityPageSize bounds each store read while walking the full range.
const activityPageSize = 500

// Activity aggregates all transactions in [from, to]. Revenue is valued
// at the item's current sale price; historical prices are not recorded.
func (s *Service) Activity(ctx context.Context, from, to time.Time) (ActivityReport, error) {
	report := ActivityReport{
		From:         from,
		To:           to,
		SalesRevenue: decimal.Zero,
		ByType:       make(map[ledger.TransactionType]int),
	}

	prices := make(map[string]decimal.Decimal)

	for page := 1; ; page++ {
		txs, total, err := s.Store.ListTransactions(ctx, ledger.TransactionFilter{
			From:   from,
			To:     to,
			SortBy: "occurred_at",
			Order:  "asc",
			Page:   page,
			Limit:  activityPageSize,
		})
		if err != nil {
			return ActivityReport{}, err
		}

		for _, tx := range txs {
			report.TransactionCount++
			report.ByType[tx.Type]++

			if tx.Type.Decreases() {
				report.UnitsOut += tx.Quantity
			} else {
				report.UnitsIn += tx.Quantity
			}

			if tx.Type == ledger.TxSale {
				report.SalesCount++
				report.UnitsSold += tx.Quantity

				price, ok := prices[tx.ItemID]
				if !ok {
					item, err := s.Store.GetItem(ctx, tx.ItemID)
					if err != nil {
						return ActivityReport{}, err
					}
					price = item.SalePrice
					prices[tx.ItemID] = price
				}
				report.SalesRevenue = report.SalesRevenue.Add(price.Mul(decimal.NewFromInt(int64(tx.Quantity))))
			}
		}

		if report.TransactionCount >= total || len(txs) == 0 {
			break
		}
	}

	return report, nil
}
