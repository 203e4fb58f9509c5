/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Stockroom inventory ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start digest sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: inventory.db)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  JWT_SECRET         HMAC secret for token verification (required)
  EXPLORER_BASE_URL  Base URL for digest explorer links (optional)
  SWEEP_INTERVAL     Digest sweep interval, e.g. "30s" (default: 1m)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the digest sweeper
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  JWT_SECRET=dev ./server -db="./data/inventory.db"

  # Run with in-memory database
  JWT_SECRET=dev ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - api/sweeper.go: Digest backfill sweeper
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/stockroom/inventory-ledger/api"
	"github.com/stockroom/inventory-ledger/auth"
	"github.com/stockroom/inventory-ledger/ledger"
	"github.com/stockroom/inventory-ledger/store/sqlite"
)

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "inventory.db", "SQLite database path")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	explorerBaseURL := os.Getenv("EXPLORER_BASE_URL")
	if explorerBaseURL == "" {
		explorerBaseURL = ledger.DefaultExplorerBaseURL
	}

	sweepInterval := 1 * time.Minute
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid SWEEP_INTERVAL %q: %v", raw, err)
		}
		sweepInterval = parsed
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler and router
	handler := api.NewHandler(store, explorerBaseURL)
	verifier := auth.NewVerifier(secret)
	router := api.NewRouter(handler, verifier)

	// Start digest sweeper
	sweeper := api.NewDigestSweeper(handler.Ledger)
	sweeper.SweepInterval = sweepInterval
	sweeper.Start()
	defer sweeper.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
