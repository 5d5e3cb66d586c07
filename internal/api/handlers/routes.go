package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/support-router/backend/internal/metrics"
)

type Handlers struct {
	Health    *HealthHandler
	Query     *QueryHandler
	Analytics *AnalyticsHandler
	Knowledge *KnowledgeHandler
	WebSocket *WebSocketHandler
}

// RegisterRoutes mounts every endpoint on app. Global middleware is the caller's concern.
func RegisterRoutes(app *fiber.App, h Handlers) {
	app.Get("/", h.Health.Root)
	app.Get("/health", h.Health.Health)
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/health", h.Health.Health)
	api.Get("/ready", h.Health.Ready)

	api.Post("/query", h.Query.HandleQuery)
	api.Get("/query/history", h.Query.GetQueryHistory)

	api.Post("/feedback", h.Analytics.SubmitFeedback)
	api.Get("/analytics", h.Analytics.GetAnalytics)
	api.Get("/analytics/realtime", h.Analytics.GetRealTime)
	api.Get("/analytics/sessions/:id", h.Analytics.GetSession)

	api.Get("/knowledge", h.Knowledge.ListDocuments)
	api.Get("/knowledge/:id", h.Knowledge.GetDocument)

	ws := app.Group("/ws", UpgradeMiddleware())
	ws.Get("/:session_id", h.WebSocket.Handler())
}
