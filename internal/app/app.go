package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/fundpulse/config"
	"github.com/guttosm/fundpulse/internal/api"
	"github.com/guttosm/fundpulse/internal/service"
	"github.com/guttosm/fundpulse/internal/storage"
	"github.com/guttosm/fundpulse/internal/transport"
)

// redisOpener is an indirection used by the app wiring; overridden in tests
// to avoid real connections.
var redisOpener = transport.NewRedisQueue

// InitializeApp sets up all API-mode dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to PostgreSQL using InitPostgres().
//   - Connects to Redis (readiness probing only; the API itself never queues).
//   - Initializes the repository layer (PriceRepository).
//   - Creates the service and HTTP handler layers.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources.
//
// Returns:
//   - *gin.Engine: the configured Gin HTTP router.
//   - func(): cleanup function to be executed on shutdown.
//   - error: any initialization error that occurred.
func InitializeApp() (*gin.Engine, func(), error) {
	cfg := config.AppConfig

	db, err := postgresOpener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	queue, err := redisOpener(cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Repository layer (responsible for DB access)
	repo := storage.NewPriceRepository(db)

	// Service layer (business logic)
	svc := service.NewPriceService(repo)

	// HTTP handler layer (business logic to HTTP mapping)
	handler := api.NewHandler(svc)

	// Gin router with routes
	router := api.NewRouter(handler)

	// Health and readiness probes
	healthHandler := api.NewHealthHandler(db.Ping, queue.Ping)
	healthHandler.Register(router)

	cleanup := func() {
		_ = queue.Close()
		_ = db.Close()
	}

	return router, cleanup, nil
}
