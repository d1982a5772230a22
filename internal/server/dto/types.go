// Exported request and response types for the chat API.
package dto

import (
	"strings"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
)

// ChatStreamReq is the JSON request body for POST /api/v1/chat/stream. When
// attachments are present the same fields arrive as a multipart form
// instead.
type ChatStreamReq struct {
	Message      string   `json:"message"`
	EnabledTools []string `json:"enabled_tools,omitempty"`
	ModelID      string   `json:"model_id,omitempty"`
}

// Validate implements Validatable.
func (r *ChatStreamReq) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return BadRequest("message is required")
	}
	return nil
}

// HistoryReq identifies the session for GET /api/v1/sessions/{id}/history.
type HistoryReq struct {
	SessionID string `path:"id"`
	UserID    string `header:"X-User-ID"`
}

// Validate implements Validatable.
func (r *HistoryReq) Validate() error {
	if r.SessionID == "" {
		return BadRequest("session id is required")
	}
	return nil
}

// HistoryResp is the response for GET /api/v1/sessions/{id}/history: the
// session's recorded event sequence in arrival order.
type HistoryResp struct {
	SessionID string        `json:"sessionId"`
	Events    []event.Event `json:"events"`
}

// ToolInfo is the JSON representation of a registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// StatusResp is a common response for mutation endpoints.
type StatusResp struct {
	Status string `json:"status"`
}

// EmptyReq is used for endpoints that take no request body.
type EmptyReq struct{}

// Validate implements Validatable.
func (r *EmptyReq) Validate() error { return nil }
