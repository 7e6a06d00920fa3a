/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission dashboard server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Wire the importer from sheet URLs (optional)
  4. Create API handler and router
  5. Start the sync scheduler (when sources are configured)
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: commissions.db)
             Use ":memory:" for an in-memory database
  -mappings  Optional YAML file overriding import column mappings
  -sync      Sync interval for the background importer (default: 1h)

ENVIRONMENT (loaded from .env when present):
  SHEET_PARTNERS_URL       Partners sheet URL
  SHEET_SUBSCRIPTIONS_URL  Subscriptions sheet URL
  SHEET_LIQUIDATIONS_URL   Liquidations sheet URL
  SHEET_PLANS_URL          Plans sheet URL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sync scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/commissions.db"

  # Run with in-memory database and custom mappings
  ./server -db=":memory:" -mappings=./mappings.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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

	"github.com/atlas/commission-engine/api"
	"github.com/atlas/commission-engine/importer"
	"github.com/atlas/commission-engine/store/sqlite"
)

func main() {
	// .env is optional; flags and real env vars win.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "commissions.db", "SQLite database path")
	mappingsPath := flag.String("mappings", "", "YAML file overriding import column mappings")
	syncInterval := flag.Duration("sync", time.Hour, "background sync interval")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store)

	// Wire the importer when sheet URLs are configured
	urls := importer.SourceURLs{
		Partners:      os.Getenv("SHEET_PARTNERS_URL"),
		Subscriptions: os.Getenv("SHEET_SUBSCRIPTIONS_URL"),
		Liquidations:  os.Getenv("SHEET_LIQUIDATIONS_URL"),
		Plans:         os.Getenv("SHEET_PLANS_URL"),
	}

	var scheduler *api.SyncScheduler
	if urls != (importer.SourceURLs{}) {
		mappings, err := importer.LoadMappings(*mappingsPath)
		if err != nil {
			log.Fatalf("Failed to load mappings: %v", err)
		}
		handler.Importer = importer.New(store, urls, mappings)

		scheduler = api.NewSyncScheduler(handler.Importer)
		scheduler.Interval = *syncInterval
		scheduler.Start()
		defer scheduler.Stop()
	} else {
		log.Println("No sheet URLs configured, importer disabled")
	}

	// Create router and server
	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

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
