package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler provides liveness and readiness endpoints for the service.
//
// Responsibilities:
//   - /healthz: Basic liveness probe (always returns 200 OK).
//   - /readyz: Readiness probe (depends on database and queue connectivity).
type HealthHandler struct {
	dbPing    func() error                    // checks database connectivity
	queuePing func(ctx context.Context) error // checks Redis connectivity
}

// NewHealthHandler constructs a HealthHandler with the provided dependency probes.
//
// Parameters:
//   - dbPing (func() error): Checks if the database is reachable.
//     Typically db.Ping from *sql.DB. May be nil when no DB is wired.
//   - queuePing (func(ctx) error): Checks if the queue transport is reachable.
//     May be nil when no queue is wired.
//
// Returns:
//   - *HealthHandler: A new handler instance.
func NewHealthHandler(dbPing func() error, queuePing func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, queuePing: queuePing}
}

// Register mounts the health and readiness endpoints into the provided Gin router.
//
// Routes:
//   - GET /healthz: Always returns 200 OK.
//   - GET /readyz: Returns 200 OK if every wired dependency is reachable,
//     503 otherwise.
//
// Parameters:
//   - r (*gin.Engine): The Gin router to register routes on.
func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if h.dbPing != nil && h.dbPing() != nil {
			c.JSON(503, gin.H{"status": "degraded", "dependency": "postgres"})
			return
		}
		if h.queuePing != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if h.queuePing(ctx) != nil {
				c.JSON(503, gin.H{"status": "degraded", "dependency": "redis"})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
}
