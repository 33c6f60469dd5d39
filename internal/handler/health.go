package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"hls-gateway-go/internal/catalog"
	"hls-gateway-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg      *config.Config
	registry *catalog.Registry
	version  Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, registry *catalog.Registry, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, registry: registry, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":     "ok",
		"version":    string(h.version),
		"public_url": h.cfg.Proxy.PublicURL,
		"channels":   strconv.Itoa(h.registry.Len()),
	})
}
