package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/support-router/backend/internal/analytics"
	"github.com/support-router/backend/internal/knowledge"
)

const (
	ServiceName = "Customer Support Router"
	Version     = "1.0.0"
)

type HealthHandler struct {
	store     *knowledge.Store
	analytics *analytics.Aggregator
	hub       *Hub
}

func NewHealthHandler(store *knowledge.Store, aggregator *analytics.Aggregator, hub *Hub) *HealthHandler {
	return &HealthHandler{store: store, analytics: aggregator, hub: hub}
}

func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   ServiceName,
		"version":   Version,
		"timestamp": time.Now().UTC(),
	})
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"components": fiber.Map{
			"api":            true,
			"websocket":      h.hub != nil,
			"knowledge_base": h.store != nil && h.store.Len() > 0,
			"analytics":      h.analytics != nil,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Ready reports 503 until the knowledge store is loaded and while analytics is closed.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.store == nil || h.analytics == nil || !h.analytics.Accepting() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
		})
	}

	resp := fiber.Map{
		"status":    "ready",
		"documents": h.store.Len(),
	}
	if h.hub != nil {
		resp["connections"] = h.hub.Count()
	}
	return c.JSON(resp)
}
