package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guttosm/fundpulse/config"
	"github.com/guttosm/fundpulse/internal/app"
	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/ingestion"
	"github.com/guttosm/fundpulse/internal/logger"
	"github.com/guttosm/fundpulse/internal/storage"
	"github.com/guttosm/fundpulse/internal/transport"
)

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
//
// Parameters:
//   - ctx (context.Context): A context with timeout for graceful shutdown.
//   - server (*http.Server): The HTTP server instance to shut down.
//   - cleanup (func()): Cleanup callback to release resources (e.g., DB connections).
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// runIngest loads every CSV price file in dir and feeds the change queue.
func runIngest(ctx context.Context, dir string, parallel int) {
	cfg := config.AppConfig

	db, err := app.InitPostgres(cfg)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("db connect error")
	}
	defer func() { _ = db.Close() }()

	queue, err := transport.NewRedisQueue(cfg.Redis)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("redis connect error")
	}
	defer func() { _ = queue.Close() }()

	repo := storage.NewPriceRepository(db)
	if err := ingestion.ProcessDirectory(ctx, dir, repo, queue, cfg.Pipeline.ChangeQueue, parallel); err != nil {
		logger.L().Fatal().Err(err).Msg("ingestion failed")
	}
	logger.L().Info().Msg("ingestion completed successfully")
}

// main is the entry point of the fundpulse application.
//
// Modes (selected via --mode flag):
//   - ingest:    Loads .csv price files from ./data/input/ and announces changes.
//   - dispatch:  Consumes change notifications and emits bucket recompute tasks.
//   - aggregate: Consumes bucket tasks for one granularity (week or month).
//   - api:       Starts the REST API exposing stored price series.
//
// Flags:
//   - --mode:        Execution mode. Default: "api".
//   - --dir:         Directory containing .csv input files (ingest). Default: "./data/input".
//   - --parallel:    How many files to ingest concurrently (0=auto).
//   - --granularity: Aggregator target, "week" or "month". Default: "week".
//   - --port:        Port for API mode. Defaults to value from config (SERVER_PORT).
func main() {
	// Load configuration from environment or .env file
	config.LoadConfig()

	// Initialize JSON logger
	logger.Init()

	mode := flag.String("mode", "api", "Mode: ingest, dispatch, aggregate or api")
	dir := flag.String("dir", "./data/input", "Directory with .csv files (ingest mode)")
	parallel := flag.Int("parallel", 0, "How many files to ingest concurrently (0=auto)")
	granularity := flag.String("granularity", "week", "Aggregator target: week or month")
	port := flag.String("port", config.AppConfig.Server.Port, "Port for API mode")
	flag.Parse()

	switch *mode {
	case "ingest":
		logger.L().Info().Str("dir", *dir).Msg("running ingestion")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		runIngest(ctx, *dir, *parallel)

	case "dispatch":
		logger.L().Info().Msg("starting dispatcher")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := app.RunDispatcher(ctx); err != nil {
			logger.L().Fatal().Err(err).Msg("dispatcher failed")
		}
		logger.L().Info().Msg("dispatcher exited gracefully")

	case "aggregate":
		target, err := models.ParseGranularity(*granularity)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("invalid granularity")
		}
		logger.L().Info().Str("granularity", string(target)).Msg("starting aggregator")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := app.RunAggregator(ctx, target); err != nil {
			logger.L().Fatal().Err(err).Msg("aggregator failed")
		}
		logger.L().Info().Msg("aggregator exited gracefully")

	case "api":
		logger.L().Info().Msg("starting API server")
		router, cleanup, err := app.InitializeApp()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}

		server := startServer(router, *port)
		gracefulShutdown(context.Background(), server, cleanup)

	default:
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}
