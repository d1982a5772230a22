// Package client implements the browser-facing side of the chat stream: the
// transport that issues streaming calls, the reducer that folds decoded
// events into conversation state, and the per-turn latency tracker.
package client

import (
	"encoding/json"
	"time"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
)

// AgentStatus is the coarse activity signal surfaced to the UI.
type AgentStatus string

// Agent status values.
const (
	StatusIdle       AgentStatus = "idle"
	StatusThinking   AgentStatus = "thinking"
	StatusResponding AgentStatus = "responding"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one text segment in a turn. While Streaming is true the text is
// still growing; a finalized segment never changes again.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Streaming bool
	IsError   bool
}

// ToolExecution pairs a tool invocation with its eventual result. Identity is
// ToolUseID, assigned by the producer.
type ToolExecution struct {
	ToolUseID string
	Name      string
	Kind      string
	Input     json.RawMessage
	Result    json.RawMessage
	Images    []event.ImageData
	Complete  bool
	Canceled  bool
	// Orphan is set when a tool_result arrived with no matching tool_use
	// and a placeholder record had to be created.
	Orphan bool
}

// Turn is one user submission and the agent's full reply to it.
type Turn struct {
	ID        string
	UserText  string
	Messages  []*Message
	Tools     []*ToolExecution
	Reasoning string
	Interrupt *event.Interrupt
	Closed    bool

	streaming   *Message
	toolsByID   map[string]*ToolExecution
	terminal    bool
	submittedAt time.Time
}

// SessionState is the turn-scoped state owned by the reducer. The browser
// session pointer outlives turns; everything else is cleared on terminal
// events.
type SessionState struct {
	ActiveTurn     *Turn
	BrowserSession *event.BrowserSession
}

// UIState is the per-tab state surfaced to the presentation layer.
type UIState struct {
	Connected   bool
	AgentStatus AgentStatus
	Latency     LatencyMetrics
}

// LatencyMetrics measures one turn. TTFT and E2E stay nil until recorded.
type LatencyMetrics struct {
	RequestStart     time.Time
	TimeToFirstToken *time.Duration
	EndToEndLatency  *time.Duration
	Usage            *event.Usage
	saved            bool
}
