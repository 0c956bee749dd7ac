/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the wage engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Open the rule store (sqlite, postgres or memory)
  3. Create the calculator and API handler
  4. Optionally seed a demo scenario
  5. Start server with graceful shutdown (metrics on GET /metrics)

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for in-memory database
  -seed    Load a demo scenario at startup (e.g. regional-trucking)

ENVIRONMENT:
  APP_PORT, APP_ENV, LOG_LEVEL
  STORE_DRIVER            sqlite (default), postgres, memory
  SQLITE_PATH
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE
  BATCH_GROUP_SIZE        records calculated concurrently (default 10)
  CORS_ALLOWED_ORIGINS    comma separated

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/wage.db"

  # Run in memory with demo data
  ./server -db=":memory:" -seed=regional-trucking

  # Run against PostgreSQL
  STORE_DRIVER=postgres DB_HOST=db ./server

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Rule stores
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/wage-engine/api"
	"github.com/warp/wage-engine/config"
	"github.com/warp/wage-engine/metrics"
	"github.com/warp/wage-engine/store/postgres"
	"github.com/warp/wage-engine/store/sqlite"
	"github.com/warp/wage-engine/wage"
	"github.com/warp/wage-engine/wage/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Store.SQLitePath, "SQLite database path")
	seed := flag.String("seed", "", "Demo scenario to load at startup")
	flag.Parse()
	cfg.Store.SQLitePath = *dbPath

	level, err := config.ParseLogLevel(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid LOG_LEVEL: %v\n", err)
		os.Exit(1)
	}
	logger := api.NewLogger(os.Stdout, level, cfg.App.Env)
	slog.SetDefault(logger)

	// Initialize store
	repo, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize store",
			slog.String("driver", cfg.Store.Driver),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	// Initialize handler
	calc := wage.NewCalculator(repo,
		wage.WithLogger(logger),
		wage.WithGroupSize(cfg.Batch.GroupSize))
	handler := api.NewHandler(repo, calc, logger)
	handler.Metrics = metrics.New()

	if *seed != "" {
		if err := handler.LoadScenarioData(context.Background(), *seed); err != nil {
			logger.Warn("Failed to seed scenario",
				slog.String("scenario", *seed),
				slog.String("error", err.Error()))
		}
	}

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		LogLevel:       level,
	})

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
		logger.Info("Server starting",
			slog.Int("port", *port),
			slog.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", slog.String("error", err.Error()))
		return
	}

	logger.Info("Server stopped")
}

// openStore opens the configured rule store and returns its close function.
func openStore(ctx context.Context, cfg *config.Config) (api.Repository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL())
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.DriverMemory:
		return store.NewMemory(), func() {}, nil
	default:
		s, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
}
