package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headersFor(t *testing.T, cfg HeadersConfig) http.Header {
	t.Helper()
	app := fiber.New()
	app.Use(HeadersMiddleware(cfg))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.Header
}

func TestHeadersMiddleware(t *testing.T) {
	h := headersFor(t, HeadersConfig{AllowedOrigins: []string{"https://support.example.com", "*"}})

	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, h.Get("Strict-Transport-Security"))

	csp := h.Get("Content-Security-Policy")
	assert.Contains(t, csp, "connect-src 'self' https://support.example.com wss://support.example.com;")
	assert.NotContains(t, csp, "*")
}

func TestHeadersDevelopment(t *testing.T) {
	h := headersFor(t, HeadersConfig{IsDevelopment: true})

	assert.Empty(t, h.Get("Strict-Transport-Security"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "connect-src 'self';")
}

func TestBuildConnectSrc(t *testing.T) {
	assert.Equal(t, "http://localhost:3000 ws://localhost:3000", buildConnectSrc([]string{" http://localhost:3000 ", ""}))
	assert.Empty(t, buildConnectSrc(nil))
}
