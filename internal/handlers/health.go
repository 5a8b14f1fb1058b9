package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"gridmenu/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	connManager *services.ConnectionManager
	sessions    *services.SessionService
	catalog     *services.CatalogService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(connManager *services.ConnectionManager, sessions *services.SessionService, catalog *services.CatalogService) *HealthHandler {
	return &HealthHandler{
		connManager: connManager,
		sessions:    sessions,
		catalog:     catalog,
	}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":             "healthy",
		"connections":        h.connManager.Count(),
		"open_sessions":      h.sessions.OpenSessionCount(),
		"catalog_generation": h.catalog.Generation(),
		"catalog_errors":     len(h.catalog.ValidationErrors()),
		"timestamp":          time.Now().Format(time.RFC3339),
	})
}
