package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SanitizedQueryKey holds the cleaned query string for downstream handlers.
const SanitizedQueryKey = "sanitized_query"

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxQueryLength      int
	MaxCommentLength    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware guards the JSON write endpoints: content type, body shape, text length and obvious
// script injection. Field semantics such as priority values are left to the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 1000
	}
	if cfg.MaxCommentLength == 0 {
		cfg.MaxCommentLength = 2000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()

		switch {
		case strings.HasSuffix(path, "/api/v1/query"):
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "Invalid JSON format")
			}

			query, ok := req["query"].(string)
			if !ok {
				return badRequest(c, "Query is required and must be a string")
			}
			query = sanitizeString(query)
			if query == "" {
				return badRequest(c, "Query is required and must be a string")
			}
			if utf8.RuneCountInString(query) > cfg.MaxQueryLength {
				return badRequest(c, "Query exceeds maximum length")
			}

			if customerID, ok := req["customer_id"].(string); !ok || strings.TrimSpace(customerID) == "" {
				return badRequest(c, "customer_id is required and must be a string")
			}

			if containsXSS(query) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("path", path),
				)
				return badRequest(c, "Invalid query content")
			}

			c.Locals(SanitizedQueryKey, query)

		case strings.HasSuffix(path, "/api/v1/feedback"):
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "Invalid JSON format")
			}

			if _, ok := req["rating"].(float64); !ok {
				return badRequest(c, "rating is required and must be a number")
			}

			if comment, ok := req["comment"].(string); ok {
				if utf8.RuneCountInString(comment) > cfg.MaxCommentLength {
					return badRequest(c, "Comment exceeds maximum length")
				}
				if containsXSS(comment) {
					cfg.Logger.Warn("Potential XSS attempt",
						zap.String("ip", c.IP()),
						zap.String("path", path),
					)
					return badRequest(c, "Invalid comment content")
				}
			}
		}

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

// SanitizedQuery returns the query cleaned by Middleware, if it ran for this request.
func SanitizedQuery(c *fiber.Ctx) (string, bool) {
	q, ok := c.Locals(SanitizedQueryKey).(string)
	return q, ok
}

func sanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
