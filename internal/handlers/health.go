package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/autolumiku/whatsapp-backend/internal/storage"
)

// HealthHandler reports process liveness and store reachability.
type HealthHandler struct {
	Version string
	store   storage.Store
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, store storage.Store) *HealthHandler {
	return &HealthHandler{
		Version: version,
		store:   store,
		started: time.Now(),
	}
}

// Check returns the health status of the service. An unreachable store
// degrades the response to 503 so load balancers rotate the instance out.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "OK"
	code := fiber.StatusOK
	if h.store != nil {
		if err := h.store.Ping(); err != nil {
			status = "DEGRADED"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"service": "Autolumiku WhatsApp Backend",
		"version": h.Version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}
