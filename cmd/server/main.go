/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the dashboard API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, .env, YAML, env), then apply flags
  2. Open the configured store and wrap it with latency metrics
  3. Build the schema registry (built-ins plus optional overrides)
  4. Create the resource service and API handler
  5. Seed sample data into empty collections (when enabled)
  6. Start the storage probe behind /health
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 3000)
  -data     Data directory for the file and sqlite drivers (default: ./data)
  -store    Store driver: file, sqlite, postgres, s3, memory
  -schemas  YAML/JSON schema overrides
  -seed     Seed sample data into empty collections

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdownTimeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # JSON files under ./data
  ./server

  # SQLite on a different port
  ./server -store=sqlite -port=8080

  # Postgres
  DASHBOARD_POSTGRES_DSN=postgres://... ./server -store=postgres

ENVIRONMENT:
  See config/config.go. DASHBOARD_CONFIG_PATH names an optional YAML file.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/open.go: Store drivers
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/warp/dashboard-engine/api"
	"github.com/warp/dashboard-engine/config"
	"github.com/warp/dashboard-engine/factory"
	"github.com/warp/dashboard-engine/resource"
	"github.com/warp/dashboard-engine/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags override every other source, but only when given.
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dataDir := flag.String("data", cfg.Store.DataDir, "data directory (file and sqlite drivers)")
	driver := flag.String("store", cfg.Store.Driver, "store driver: file, sqlite, postgres, s3, memory")
	schemas := flag.String("schemas", cfg.Schemas, "schema overrides (YAML or JSON)")
	seed := flag.Bool("seed", cfg.Seed.Sample, "seed sample data into empty collections")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Store.DataDir = *dataDir
	cfg.Store.Driver = *driver
	cfg.Schemas = *schemas
	cfg.Seed.Sample = *seed
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx := context.Background()

	// Initialize store
	backend, closeStore, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	instrumented := store.NewInstrumented(backend, reg)

	schemaRegistry := factory.NewRegistry()
	if err := factory.LoadSchemas(schemaRegistry, cfg.Schemas); err != nil {
		return err
	}

	svc := resource.NewService(schemaRegistry, instrumented, resource.WithLogger(logger))
	probe := api.NewStorageProbe(svc, reg, api.WithProbeLogger(logger))
	handler := api.NewHandler(svc, api.WithLogger(logger), api.WithGatherer(reg), api.WithProbe(probe))

	if cfg.Seed.Sample {
		if _, err := handler.EnsureSampleData(ctx); err != nil {
			logger.Error("initializing sample data", "error", err)
		}
	}

	probe.Start()
	defer probe.Stop()

	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", cfg.Addr(),
			"store", cfg.Store.Driver,
			"types", len(svc.Types()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
