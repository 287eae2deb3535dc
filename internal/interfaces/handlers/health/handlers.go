package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// DBPinger abstracts the database liveness check.
type DBPinger interface {
	Ping() error
}

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	DB  DBPinger
	Rdb *redis.Client
}

// JSON handles GET /health: reports per-dependency status.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	deps := fiber.Map{}
	status := "ok"

	if h.DB != nil {
		if err := h.DB.Ping(); err != nil {
			deps["database"] = "down"
			status = "degraded"
		} else {
			deps["database"] = "ok"
		}
	}
	if h.Rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.Rdb.Ping(ctx).Err(); err != nil {
			deps["redis"] = "down"
			status = "degraded"
		} else {
			deps["redis"] = "ok"
		}
	}

	return c.JSON(fiber.Map{
		"service":      "trading-simulator-api",
		"status":       status,
		"dependencies": deps,
	})
}
