// Package agent turns a classified query and its retrieved context into a canned support reply.
package agent

import (
	"fmt"
	"strings"

	"github.com/support-router/backend/internal/intent"
	"github.com/support-router/backend/internal/knowledge"
)

// Kind identifies the response variant that produced a reply.
type Kind string

const (
	KindTechnical Kind = "technical"
	KindBilling   Kind = "billing"
	KindGeneral   Kind = "general"
	KindError     Kind = "error"
)

func (k Kind) String() string {
	return string(k)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority accepts low, medium, high and urgent case-insensitively. An empty string yields
// medium.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("invalid priority %q: must be one of low, medium, high, urgent", s)
	}
}

type Request struct {
	Intent     intent.Intent
	Query      string
	Context    []knowledge.Document
	CustomerID string
	Priority   Priority
}

type Response struct {
	Response         string   `json:"response"`
	AgentType        Kind     `json:"agent_type"`
	Confidence       float64  `json:"confidence"`
	Escalate         bool     `json:"escalate"`
	SuggestedActions []string `json:"suggested_actions"`
}

// variant is the per-intent configuration record.
type variant struct {
	kind       Kind
	confidence float64
	escalate   func(req Request) bool
	preamble   string
	closing    string
	noContext  func(req Request) string
	actions    []string
}

// Router is stateless; a single instance is shared by every request.
type Router struct {
	variants map[intent.Intent]variant
}

func NewRouter() *Router {
	return &Router{variants: map[intent.Intent]variant{
		intent.Technical: {
			kind:       KindTechnical,
			confidence: 0.85,
			escalate: func(req Request) bool {
				return req.Priority == PriorityUrgent
			},
			preamble: "Based on our documentation, here's how I can help with your technical issue:",
			closing:  "If this doesn't resolve your issue, I can escalate to our technical team.",
			noContext: func(Request) string {
				return "I understand you're experiencing a technical issue. Let me help troubleshoot this. " +
					"Can you provide more details about the specific problem you're encountering?"
			},
			actions: []string{
				"Try the suggested solution",
				"Clear browser cache",
				"Contact technical team if issue persists",
			},
		},
		intent.Billing: {
			kind:       KindBilling,
			confidence: 0.90,
			escalate: func(req Request) bool {
				q := strings.ToLower(req.Query)
				return strings.Contains(q, "refund") || strings.Contains(q, "cancel")
			},
			preamble: "I can help you with your billing question. Here's the relevant information:",
			closing:  "For account-specific billing details, I may need to connect you with our billing team.",
			noContext: func(req Request) string {
				return fmt.Sprintf("I'm here to help with your billing inquiry for customer %s. "+
					"I can assist with payment issues, subscription changes, and billing questions.",
					req.CustomerID)
			},
			actions: []string{
				"Check account settings",
				"Review billing history",
				"Contact billing team for account changes",
			},
		},
		intent.General: {
			kind:       KindGeneral,
			confidence: 0.75,
			escalate: func(req Request) bool {
				return req.Priority == PriorityHigh || req.Priority == PriorityUrgent
			},
			preamble: "Thank you for contacting support. I found some relevant information that might help:",
			closing:  "Is there anything specific I can help you with today?",
			noContext: func(Request) string {
				return "Thank you for contacting our support team. I'm here to help you with any questions " +
					"or concerns you may have. How can I assist you today?"
			},
			actions: []string{
				"Provide more specific details",
				"Check our help documentation",
				"Contact specialized support if needed",
			},
		},
	}}
}

// Route selects the variant for req.Intent, falling back to general, and assembles the reply.
func (r *Router) Route(req Request) Response {
	v, ok := r.variants[req.Intent]
	if !ok {
		v = r.variants[intent.General]
	}

	text := v.noContext(req)
	if len(req.Context) > 0 {
		contents := make([]string, len(req.Context))
		for i, doc := range req.Context {
			contents[i] = doc.Content
		}
		text = v.preamble + "\n\n" + strings.Join(contents, "\n") + "\n\n" + v.closing
	}

	actions := make([]string, len(v.actions))
	copy(actions, v.actions)

	return Response{
		Response:         text,
		AgentType:        v.kind,
		Confidence:       v.confidence,
		Escalate:         v.escalate(req),
		SuggestedActions: actions,
	}
}

// ErrorResponse is the reply used when the pipeline fails internally.
func ErrorResponse() Response {
	return Response{
		Response:         "I apologize, but I'm experiencing technical difficulties. Please try again or contact human support.",
		AgentType:        KindError,
		Confidence:       0,
		Escalate:         true,
		SuggestedActions: []string{},
	}
}
