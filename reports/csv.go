package reports

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/stockroom/inventory-ledger/ledger"
)

// =============================================================================
// CSV EXPORT
// =============================================================================

// WriteInventoryCSV renders an inventory summary as CSV, one row per
// line plus a trailing totals row.
func WriteInventoryCSV(w io.Writer, summary InventorySummary) error {
	cw := csv.NewWriter(w)

	header := []string{
		"sku", "name", "current_stock", "reorder_point",
		"unit_cost", "sale_price", "total_value", "total_sale_value", "potential_profit",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, line := range summary.Lines {
		reorder := ""
		if line.Item.ReorderPoint != nil {
			reorder = strconv.Itoa(*line.Item.ReorderPoint)
		}
		row := []string{
			line.Item.SKU,
			line.Item.Name,
			strconv.Itoa(line.Item.CurrentStock),
			reorder,
			line.Item.UnitCost.String(),
			line.Item.SalePrice.String(),
			line.TotalValue.String(),
			line.TotalSaleValue.String(),
			line.PotentialProfit.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	totals := []string{
		"TOTAL", "",
		strconv.Itoa(summary.Totals.TotalStock),
		"", "", "",
		summary.Totals.TotalValue.String(),
		summary.Totals.TotalSaleValue.String(),
		summary.Totals.TotalPotentialProfit.String(),
	}
	if err := cw.Write(totals); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// WriteTransactionsCSV renders transactions as CSV.
func WriteTransactionsCSV(w io.Writer, txs []ledger.Transaction) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "item_id", "type", "quantity", "user_id", "note", "occurred_at", "digest"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, tx := range txs {
		row := []string{
			tx.ID,
			tx.ItemID,
			string(tx.Type),
			strconv.Itoa(tx.Quantity),
			tx.UserID,
			tx.Note,
			ledger.FormatTime(tx.OccurredAt),
			tx.Digest,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
