/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift reconciliation service.
  Handles configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Wire orchestrator, approval workflow and API handler
  4. Start server with graceful shutdown

COMMAND-LINE FLAGS (env var fallback in parentheses):
  -port     HTTP server port (PORT, default: 8080)
  -db       SQLite database path (DB_PATH, default: reconcile.db)
            Use ":memory:" for an in-memory database
  -workers  Concurrent (team, date) pairs per run (WORKERS, default: 4)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit
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
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voltgrid/shift-engine/api"
	"github.com/voltgrid/shift-engine/approval"
	"github.com/voltgrid/shift-engine/batch"
	"github.com/voltgrid/shift-engine/reconcile"
	"github.com/voltgrid/shift-engine/reconcile/store"
	"github.com/voltgrid/shift-engine/store/sqlite"
)

func main() {
	// .env is optional; flags still win over environment.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "reconcile.db"), "SQLite database path")
	workers := flag.Int("workers", envInt("WORKERS", batch.DefaultWorkers), "concurrent pairs per run")
	flag.Parse()

	// Initialize store
	st, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer st.Close()

	// Wire the core. Justification lookups go through a TTL cache; types
	// change rarely while a forced run asks thousands of times.
	orch := &batch.Orchestrator{
		Schedule: st,
		Shifts:   st,
		Catalog:  store.NewCachedCatalog(st, 5*time.Minute),
		Outcomes: st,
		Engine:   &reconcile.Engine{},
		Runs:     st,
		Workers:  *workers,
	}
	workflow := approval.NewWorkflow(st)

	handler := api.NewHandler(st, orch, workflow)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Reconciliation service listening on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

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

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
