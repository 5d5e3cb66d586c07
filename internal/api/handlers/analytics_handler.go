package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/support-router/backend/internal/analytics"
	"github.com/support-router/backend/pkg/logger"
)

type AnalyticsHandler struct {
	analytics *analytics.Aggregator
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: aggregator}
}

func (h *AnalyticsHandler) GetAnalytics(c *fiber.Ctx) error {
	return c.JSON(h.analytics.Snapshot())
}

func (h *AnalyticsHandler) GetRealTime(c *fiber.Ctx) error {
	return c.JSON(h.analytics.RealTime())
}

func (h *AnalyticsHandler) GetSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	snapshot, ok := h.analytics.SessionSnapshot(sessionID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return c.JSON(snapshot)
}

func (h *AnalyticsHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Rating    int    `json:"rating"`
		Comment   string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse feedback body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	err := h.analytics.LogFeedback(analytics.FeedbackRecord{
		SessionID: req.SessionID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	switch {
	case errors.Is(err, analytics.ErrInvalidRating):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, analytics.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Analytics is shutting down",
		})
	case err != nil:
		logger.Error("Failed to record feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record feedback",
		})
	}

	return c.JSON(fiber.Map{
		"status":     "recorded",
		"session_id": req.SessionID,
	})
}
