/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend
  5. Identity:   Bearer-token validation, injects the acting user
  6. Permission: Per-route permission guards

ROUTE GROUPS:
  /api/shop/*          Sales (buyer-facing)
  /api/transactions/*  Ledger transactions
  /api/items/*         Catalog
  /api/reports/*       Aggregation + CSV export

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stockroom/inventory-ledger/auth"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, verifier *auth.Verifier) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes (all authenticated)
	r.Route("/api", func(r chi.Router) {
		r.Use(Identity(verifier))

		// Shop routes (buyer-facing)
		r.Route("/shop", func(r chi.Router) {
			r.With(Permission(auth.PermCreateSaleTransaction)).Post("/buy", h.BuyItem)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions) // own rows unless read_transactions
			r.With(Permission(auth.PermCreateTransaction)).Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.With(Permission(auth.PermVerifyLedger)).Get("/{id}/verify", h.VerifyTransaction)
		})

		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.With(Permission(auth.PermReadItems)).Get("/", h.ListItems)
			r.With(Permission(auth.PermManageItems)).Post("/", h.CreateItem)
			r.With(Permission(auth.PermReadItems)).Get("/low-stock", h.ListLowStock)
			r.With(Permission(auth.PermReadItems)).Get("/{id}", h.GetItem)
			r.With(Permission(auth.PermManageItems)).Put("/{id}", h.UpdateItem)
			r.With(Permission(auth.PermManageItems)).Delete("/{id}", h.DeleteItem)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Use(Permission(auth.PermViewReports))
			r.Get("/inventory", h.InventoryReport)
			r.Get("/activity", h.ActivityReport)
		})
	})

	return r
}

// =============================================================================
// AUTH MIDDLEWARE
// =============================================================================

// Identity validates the bearer token and injects the acting user into
// the request context.
func Identity(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := verifier.FromAuthorizationHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// Permission rejects identities lacking the given permission.
func Permission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requirePermission(w, r, permission) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
