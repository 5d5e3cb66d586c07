package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/support-router/backend/internal/knowledge"
)

type KnowledgeHandler struct {
	store *knowledge.Store
}

func NewKnowledgeHandler(store *knowledge.Store) *KnowledgeHandler {
	return &KnowledgeHandler{store: store}
}

// ListDocuments returns the loaded knowledge base, optionally filtered by ?category=.
func (h *KnowledgeHandler) ListDocuments(c *fiber.Ctx) error {
	category := c.Query("category")

	docs := make([]knowledge.Document, 0, h.store.Len())
	for _, d := range h.store.Documents() {
		if category != "" && d.Category != category {
			continue
		}
		docs = append(docs, d)
	}

	return c.JSON(fiber.Map{
		"count":     len(docs),
		"documents": docs,
	})
}

func (h *KnowledgeHandler) GetDocument(c *fiber.Ctx) error {
	id := c.Params("id")
	for _, d := range h.store.Documents() {
		if d.ID == id {
			return c.JSON(d)
		}
	}

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Document not found",
	})
}
