package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/support-router/backend/internal/agent"
	"github.com/support-router/backend/internal/analytics"
	"github.com/support-router/backend/internal/middleware/validation"
	"github.com/support-router/backend/internal/query"
	"github.com/support-router/backend/pkg/logger"
)

const defaultHistoryLimit = 10

type QueryHandler struct {
	queryEngine *query.Engine
	analytics   *analytics.Aggregator
}

func NewQueryHandler(queryEngine *query.Engine, aggregator *analytics.Aggregator) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
		analytics:   aggregator,
	}
}

type queryRequest struct {
	Query      string `json:"query"`
	CustomerID string `json:"customer_id"`
	SessionID  string `json:"session_id"`
	Priority   string `json:"priority"`
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if sanitized, ok := validation.SanitizedQuery(c); ok {
		req.Query = sanitized
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "customer_id is required",
		})
	}

	priority, err := agent.ParsePriority(req.Priority)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	response, err := h.queryEngine.ProcessQuery(c.UserContext(), query.QueryRequest{
		Query:      req.Query,
		CustomerID: req.CustomerID,
		SessionID:  req.SessionID,
		Priority:   priority,
	})
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(response)
}

// GetQueryHistory returns the most recent queries of a session, oldest first.
func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be positive",
		})
	}

	history := h.analytics.SessionHistory(sessionID, limit)
	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"count":      len(history),
		"history":    history,
	})
}
