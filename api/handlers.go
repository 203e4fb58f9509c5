/*
handlers.go - HTTP API handlers for the inventory ledger

PURPOSE:
  Exposes the ledger, catalog, and reporting services via REST. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Shop:
    POST   /api/shop/buy                    Record a sale (buyer identity)

  Transactions:
    GET    /api/transactions                List with filters
    POST   /api/transactions                Record adjustment/initial stock
    GET    /api/transactions/{id}           Get one
    GET    /api/transactions/{id}/verify    Verify integrity digest

  Items:
    GET    /api/items                       List with search/sort/paginate
    POST   /api/items                       Create
    GET    /api/items/low-stock             Items at/below reorder point
    GET    /api/items/{id}                  Get one
    PUT    /api/items/{id}                  Update (incl. direct stock edit)
    DELETE /api/items/{id}                  Delete (blocked while referenced)

  Reports:
    GET    /api/reports/inventory           Valuation summary (?format=csv)
    GET    /api/reports/activity            Movement over a date range (?format=csv)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation and business-rule failures (insufficient stock, ...)
  - 401: Missing/invalid token
  - 403: Missing permission
  - 404: Item or transaction not found, digest not yet recorded
  - 500: Infrastructure failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stockroom/inventory-ledger/auth"
	"github.com/stockroom/inventory-ledger/catalog"
	"github.com/stockroom/inventory-ledger/ledger"
	"github.com/stockroom/inventory-ledger/reports"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *ledger.Service
	Catalog *catalog.Service
	Reports *reports.Service
}

// NewHandler creates a handler wiring all services over one store.
func NewHandler(store ledger.Store, explorerBaseURL string) *Handler {
	return &Handler{
		Ledger:  ledger.NewService(store, explorerBaseURL),
		Catalog: catalog.NewService(store),
		Reports: reports.NewService(store),
	}
}

// =============================================================================
// SHOP
// =============================================================================

// BuyItem records a sale attributed to the authenticated buyer.
func (h *Handler) BuyItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing identity", nil)
		return
	}

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required", nil)
		return
	}

	result, err := h.Ledger.RecordSale(r.Context(), actor.UserID, req.ItemID, req.Quantity)
	if err != nil {
		writeDomainError(w, "Failed to complete purchase", err)
		return
	}

	writeJSON(w, http.StatusOK, RecordResultDTO{
		Transaction: toTransactionDTO(result.Transaction),
		Item:        toItemDTO(result.Item),
	})
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// CreateTransaction records a non-sale transaction (initial stock or
// manual adjustment). Sales are rejected here; they go through BuyItem.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing identity", nil)
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ItemID == "" || req.TransactionType == "" {
		writeError(w, http.StatusBadRequest, "item_id and transaction_type are required", nil)
		return
	}

	var occurredAt time.Time
	if req.TransactionDate != "" {
		var err error
		if occurredAt, err = parseDate(req.TransactionDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid transaction_date", err)
			return
		}
	}

	result, err := h.Ledger.RecordAdjustment(r.Context(), actor.UserID, req.ItemID,
		ledger.TransactionType(req.TransactionType), req.Quantity, req.Notes, occurredAt)
	if err != nil {
		writeDomainError(w, "Failed to record transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordResultDTO{
		Transaction: toTransactionDTO(result.Transaction),
		Item:        toItemDTO(result.Item),
	})
}

// ListTransactions returns a filtered, paginated transaction page.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	txs, total, err := h.Ledger.ListTransactions(r.Context(), f)
	if err != nil {
		writeDomainError(w, "Failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, PageDTO{
		Data: toTransactionDTOs(txs),
		Pagination: PaginationDTO{
			Total:      total,
			Page:       maxInt(f.Page, 1),
			Limit:      f.Limit,
			TotalPages: totalPages(total, f.Limit),
		},
	})
}

// GetTransaction returns a single transaction.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Ledger.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// VerifyTransaction checks a transaction's integrity digest.
func (h *Handler) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	v, err := h.Ledger.VerifyTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to verify transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, VerificationDTO{
		TransactionID: v.TransactionID,
		Digest:        v.Digest,
		IsValid:       v.IsValid,
		ExplorerURL:   v.ExplorerURL,
	})
}

// =============================================================================
// ITEMS
// =============================================================================

// CreateItem creates a catalog item. An opening stock is loaded through
// the ledger as an initial_stock transaction, so replaying the history
// reproduces the stock from day one.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing identity", nil)
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CurrentStock < 0 {
		writeError(w, http.StatusBadRequest, "current_stock cannot be negative", nil)
		return
	}

	item, err := h.Catalog.CreateItem(r.Context(), catalog.CreateItemInput{
		SKU:          req.SKU,
		Name:         req.Name,
		Description:  req.Description,
		UnitCost:     req.UnitCost,
		SalePrice:    req.SalePrice,
		ReorderPoint: req.ReorderPoint,
	})
	if err != nil {
		writeDomainError(w, "Failed to create item", err)
		return
	}

	if req.CurrentStock > 0 {
		result, err := h.Ledger.RecordAdjustment(r.Context(), actor.UserID, item.ID,
			ledger.TxInitialStock, req.CurrentStock, "Initial stock", time.Time{})
		if err != nil {
			writeDomainError(w, "Failed to load initial stock", err)
			return
		}
		item = result.Item
	}

	writeJSON(w, http.StatusCreated, toItemDTO(item))
}

// UpdateItem applies a partial update, including the direct stock edit
// path that bypasses the ledger.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	item, err := h.Catalog.UpdateItem(r.Context(), chi.URLParam(r, "id"), catalog.UpdateItemInput{
		SKU:          req.SKU,
		Name:         req.Name,
		Description:  req.Description,
		UnitCost:     req.UnitCost,
		SalePrice:    req.SalePrice,
		CurrentStock: req.CurrentStock,
		ReorderPoint: req.ReorderPoint,
	})
	if err != nil {
		writeDomainError(w, "Failed to update item", err)
		return
	}

	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// GetItem returns a single item.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Catalog.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// ListItems returns a filtered, paginated item page.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	f := itemFilterFromQuery(r)

	items, total, err := h.Catalog.ListItems(r.Context(), f)
	if err != nil {
		writeDomainError(w, "Failed to list items", err)
		return
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	writeJSON(w, http.StatusOK, PageDTO{
		Data: toItemDTOs(items),
		Pagination: PaginationDTO{
			Total:      total,
			Page:       maxInt(f.Page, 1),
			Limit:      limit,
			TotalPages: totalPages(total, f.Limit),
		},
	})
}

// ListLowStock returns items at or below their reorder point.
func (h *Handler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.ListLowStock(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list low-stock items", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTOs(items))
}

// DeleteItem removes an unreferenced item.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORTS
// =============================================================================

// InventoryReport returns the valuation summary, as JSON or CSV.
func (h *Handler) InventoryReport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Reports.InventorySummary(r.Context(), itemFilterFromQuery(r))
	if err != nil {
		writeDomainError(w, "Failed to build inventory report", err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		if !requirePermission(w, r, auth.PermExportReports) {
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="inventory_report.csv"`)
		if err := reports.WriteInventoryCSV(w, summary); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to write CSV", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toInventorySummaryDTO(summary))
}

// ActivityReport returns stock movement over a date range, as JSON or CSV.
func (h *Handler) ActivityReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		if !requirePermission(w, r, auth.PermExportReports) {
			return
		}
		txs, _, err := h.Ledger.ListTransactions(r.Context(), ledger.TransactionFilter{
			From: from, To: to, SortBy: "occurred_at", Order: "asc", Limit: 10000,
		})
		if err != nil {
			writeDomainError(w, "Failed to build activity report", err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="transaction_report.csv"`)
		if err := reports.WriteTransactionsCSV(w, txs); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to write CSV", err)
		}
		return
	}

	report, err := h.Reports.Activity(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, "Failed to build activity report", err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityReportDTO(report))
}

// =============================================================================
// QUERY / RESPONSE HELPERS
// =============================================================================

func transactionFilterFromQuery(r *http.Request) (ledger.TransactionFilter, error) {
	q := r.URL.Query()
	f := ledger.TransactionFilter{
		Type:   ledger.TransactionType(q.Get("type")),
		ItemID: q.Get("item_id"),
		Search: q.Get("search"),
		SortBy: q.Get("sort_by"),
		Order:  q.Get("order"),
		Page:   atoiDefault(q.Get("page"), 1),
		Limit:  atoiDefault(q.Get("limit"), 10),
	}

	if f.Type != "" && !ledger.ValidType(f.Type) {
		return f, fmt.Errorf("unknown transaction type %q", f.Type)
	}

	var err error
	if s := q.Get("start_date"); s != "" {
		if f.From, err = parseDate(s); err != nil {
			return f, err
		}
	}
	if s := q.Get("end_date"); s != "" {
		if f.To, err = parseDate(s); err != nil {
			return f, err
		}
	}

	// Viewers without the global read permission only see their own rows.
	if id, ok := auth.IdentityFrom(r.Context()); ok && !id.Can(auth.PermReadTransactions) {
		f.UserID = id.UserID
	}

	return f, nil
}

func itemFilterFromQuery(r *http.Request) ledger.ItemFilter {
	q := r.URL.Query()
	return ledger.ItemFilter{
		Search: q.Get("search"),
		SortBy: q.Get("sort_by"),
		Order:  q.Get("order"),
		Page:   atoiDefault(q.Get("page"), 1),
		Limit:  atoiDefault(q.Get("limit"), 10),
	}
}

func dateRangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)

	var err error
	if s := q.Get("start_date"); s != "" {
		if from, err = parseDate(s); err != nil {
			return from, to, err
		}
	}
	if s := q.Get("end_date"); s != "" {
		if to, err = parseDate(s); err != nil {
			return from, to, err
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("end_date is before start_date")
	}
	return from, to, nil
}

// parseDate accepts the canonical timestamp, RFC3339, or a bare date.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{ledger.TimeLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func requirePermission(w http.ResponseWriter, r *http.Request, permission string) bool {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok || !id.Can(permission) {
		writeError(w, http.StatusForbidden, "Missing permission: "+permission, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain failures onto response classes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
