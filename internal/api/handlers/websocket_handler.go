package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/support-router/backend/internal/agent"
	"github.com/support-router/backend/internal/metrics"
	"github.com/support-router/backend/internal/query"
	"github.com/support-router/backend/pkg/logger"
)

const anonymousCustomer = "anonymous"

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (cl *client) writeJSON(v interface{}) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conn.WriteJSON(v)
}

// Hub tracks open chat connections by session. A newer connection for the same session replaces
// the older one as the session's delivery target.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*client
	open     int
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*client)}
}

func (h *Hub) register(sessionID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sessionID] = cl
	h.open++
	metrics.ActiveConnections.Inc()
}

func (h *Hub) unregister(sessionID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == cl {
		delete(h.sessions, sessionID)
	}
	h.open--
	metrics.ActiveConnections.Dec()
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.open
}

// Send delivers v to the session's current connection. It reports false when the session has no
// connection.
func (h *Hub) Send(sessionID string, v interface{}) (bool, error) {
	h.mu.RLock()
	cl, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, cl.writeJSON(v)
}

type WebSocketHandler struct {
	queryEngine *query.Engine
	hub         *Hub
}

func NewWebSocketHandler(queryEngine *query.Engine, hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{
		queryEngine: queryEngine,
		hub:         hub,
	}
}

type chatMessage struct {
	Query      string `json:"query"`
	CustomerID string `json:"customer_id"`
	Priority   string `json:"priority"`
}

type chatResponse struct {
	Type         string     `json:"type"`
	Response     string     `json:"response"`
	AgentType    agent.Kind `json:"agent_type"`
	Confidence   float64    `json:"confidence"`
	Escalate     bool       `json:"escalate"`
	ResponseTime float64    `json:"response_time"`
	Timestamp    time.Time  `json:"timestamp"`
}

// UpgradeMiddleware rejects non-websocket requests on the chat route.
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WebSocketHandler) Handler() fiber.Handler {
	return websocket.New(h.HandleConnection)
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	sessionID := c.Params("session_id")
	cl := &client{conn: c}
	ctx, cancel := context.WithCancel(context.Background())

	h.hub.register(sessionID, cl)
	logger.Info("WebSocket connection established", zap.String("session_id", sessionID))

	defer func() {
		cancel()
		h.hub.unregister(sessionID, cl)
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session_id", sessionID))
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		var msg chatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := h.sendError(cl, "Invalid message format"); err != nil {
				return
			}
			continue
		}

		if err := h.answer(ctx, sessionID, cl, msg); err != nil {
			logger.Error("Failed to send WebSocket response", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) answer(ctx context.Context, sessionID string, cl *client, msg chatMessage) error {
	text := strings.TrimSpace(msg.Query)
	if text == "" {
		return h.sendError(cl, "Query is required")
	}

	priority, err := agent.ParsePriority(msg.Priority)
	if err != nil {
		return h.sendError(cl, err.Error())
	}

	customerID := msg.CustomerID
	if customerID == "" {
		customerID = anonymousCustomer
	}

	logger.Info("Processing WebSocket query", zap.String("session_id", sessionID))

	response, err := h.queryEngine.ProcessQuery(ctx, query.QueryRequest{
		Query:      text,
		CustomerID: customerID,
		SessionID:  sessionID,
		Priority:   priority,
	})
	if err != nil {
		logger.Error("Failed to process WebSocket query", zap.Error(err))
		return h.sendError(cl, "Failed to process query")
	}

	return cl.writeJSON(chatResponse{
		Type:         "ai_response",
		Response:     response.Response,
		AgentType:    response.AgentType,
		Confidence:   response.Confidence,
		Escalate:     response.Escalate,
		ResponseTime: response.ResponseTime,
		Timestamp:    response.Timestamp,
	})
}

func (h *WebSocketHandler) sendError(cl *client, errorMsg string) error {
	return cl.writeJSON(fiber.Map{
		"type":  "error",
		"error": errorMsg,
	})
}
