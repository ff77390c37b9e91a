/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the workforce engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags, environment, .env)
  2. Open the SQL store (SQLite or PostgreSQL)
  3. Seed ladders from the ladder file, if any
  4. Pick the session store (Redis or in-memory)
  5. Configure HTTP router and the pending review monitor
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080)
  -db-driver    sqlite3 | postgres (default: sqlite3)
  -db           Database path or URL (default: workforce.db)
                Use ":memory:" for in-memory database
  -redis        Redis address for deviation sessions (default: in-memory)
  -session-ttl  Lifetime of an open deviation session (default: 2h)
  -ladders      Ladder file (JSON or YAML) loaded at startup
  -origins      Comma separated CORS origins

  Every flag has a WFE_* environment counterpart, see config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the review monitor
  4. Close session and database connections

EXAMPLES:
  # Run with file database
  ./server -db="./data/workforce.db"

  # PostgreSQL with shared sessions
  ./server -db-driver=postgres -db="postgres://localhost/wfe?sslmode=disable" -redis=localhost:6379

  # Preload ladders
  ./server -ladders=./ladders.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/workforce-engine/api"
	"github.com/warp/workforce-engine/config"
	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/store/sessions"
	"github.com/warp/workforce-engine/store/sqlstore"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	store, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if cfg.LadderFile != "" {
		if err := seedLadders(context.Background(), store, cfg.LadderFile); err != nil {
			log.Fatalf("Failed to load ladders: %v", err)
		}
	}

	sess, closeSessions, err := openSessions(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	defer closeSessions()

	handler := api.NewHandler(store, sess)
	monitor := api.NewReviewMonitor(store, handler.Metrics)

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Monitor:        monitor,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	monitor.Start()

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d (%s)", cfg.Port, store.Driver())
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Port)
		log.Printf("📈 Metrics at http://localhost:%d/metrics", cfg.Port)
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
		log.Printf("Server forced to shutdown: %v", err)
	}
	monitor.Stop()

	log.Println("Server stopped")
}

func seedLadders(ctx context.Context, store *sqlstore.Store, path string) error {
	ladders, err := factory.NewLadderFactory().LoadFile(path)
	if err != nil {
		return err
	}
	for _, l := range ladders {
		if err := store.SaveLadder(ctx, l); err != nil {
			return fmt.Errorf("ladder %s: %w", l.ID, err)
		}
	}
	log.Printf("Loaded %d ladders from %s", len(ladders), path)
	return nil
}

func openSessions(cfg *config.Config) (sessions.Store, func(), error) {
	if cfg.RedisAddr == "" {
		log.Printf("Deviation sessions kept in memory (ttl %v)", cfg.SessionTTL)
		return sessions.NewMemory(cfg.SessionTTL), func() {}, nil
	}
	r, err := sessions.NewRedis(sessions.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.SessionTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	return r, func() {
		if err := r.Close(); err != nil {
			log.Printf("Failed to close Redis: %v", err)
		}
	}, nil
}
