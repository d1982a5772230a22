// Package event defines the chat streaming protocol events and the
// line-oriented SSE frame codec used between the relay and the browser.
package event

import (
	"encoding/json"
	"fmt"
)

// Type discriminates the event kind.
type Type string

// Event type constants.
const (
	TypeInit         Type = "init"
	TypeReasoning    Type = "reasoning"
	TypeResponse     Type = "response"
	TypeToolUse      Type = "tool_use"
	TypeToolResult   Type = "tool_result"
	TypeToolProgress Type = "tool_progress"
	TypeInterrupt    Type = "interrupt"
	TypeMetadata     Type = "metadata"
	TypeComplete     Type = "complete"
	TypeError        Type = "error"
)

// Event is a single decoded unit from the chat stream. The Type field
// discriminates the payload; use the typed accessor methods to get the
// concrete payload after checking Type.
type Event struct {
	// Type discriminates the event kind.
	Type Type

	raw json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("Event: %w", err)
	}
	if probe.Type == "" {
		return fmt.Errorf("Event: missing type discriminator")
	}
	e.Type = probe.Type
	e.raw = append(e.raw[:0], data...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.raw) == 0 {
		return nil, fmt.Errorf("Event: empty payload")
	}
	return e.raw, nil
}

// Raw returns the original JSON bytes for this event.
func (e *Event) Raw() json.RawMessage { return e.raw }

// Init is emitted once at the start of a turn.
type Init struct {
	Type Type `json:"type"`
}

// Reasoning carries a snippet of the agent's current thinking.
type Reasoning struct {
	Type Type   `json:"type"`
	Text string `json:"text"`
}

// Response carries an incremental text delta of the agent's reply.
type Response struct {
	Type Type   `json:"type"`
	Text string `json:"text"`
}

// ToolUse is emitted when the agent invokes a tool.
type ToolUse struct {
	Type      Type            `json:"type"`
	ToolUseID string          `json:"toolUseId"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// ImageData carries a single base64-encoded image.
type ImageData struct {
	MediaType string `json:"mediaType"`
	Data      string `json:"data"`
}

// ToolResult is emitted when a tool call completes.
type ToolResult struct {
	Type      Type            `json:"type"`
	ToolUseID string          `json:"toolUseId"`
	Result    json.RawMessage `json:"result,omitempty"`
	Images    []ImageData     `json:"images,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// ToolProgress is an advisory progress update for a long-running tool.
type ToolProgress struct {
	Type      Type            `json:"type"`
	ToolID    string          `json:"toolId"`
	SessionID string          `json:"sessionId,omitempty"`
	Step      string          `json:"step,omitempty"`
	Message   string          `json:"message,omitempty"`
	Progress  float64         `json:"progress,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// InterruptItem is a single pending approval request.
type InterruptItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Interrupt requests human approval before the agent proceeds.
type Interrupt struct {
	Type       Type            `json:"type"`
	Interrupts []InterruptItem `json:"interrupts"`
}

// BrowserSession points at a remote browser-automation session usable for an
// out-of-band live view. It is a reference, not owned data.
type BrowserSession struct {
	SessionID  string `json:"sessionId"`
	ResourceID string `json:"resourceId"`
}

// Metadata is a free-form side channel. Known keys are typed; everything else
// rides in Extra.
type Metadata struct {
	Type           Type            `json:"type"`
	BrowserSession *BrowserSession `json:"browserSession,omitempty"`
	Extra          json.RawMessage `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler, retaining the full payload in
// Extra so free-form keys survive a round trip.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type Alias Metadata
	if err := json.Unmarshal(data, (*Alias)(m)); err != nil {
		return fmt.Errorf("Metadata: %w", err)
	}
	m.Extra = append(m.Extra[:0], data...)
	return nil
}

// Usage reports token consumption for a turn.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens,omitempty"`
}

// Complete terminates a turn successfully.
type Complete struct {
	Type   Type        `json:"type"`
	Images []ImageData `json:"images,omitempty"`
	Usage  *Usage      `json:"usage,omitempty"`
}

// Error codes distinguishing terminal upstream failures from record-scoped
// protocol violations.
const (
	// ErrCodeProtocol marks a synthetic error for a single malformed frame.
	// It does not terminate the stream or the turn.
	ErrCodeProtocol = "protocol"
)

// Error reports a failure. Without a code it terminates the turn; with
// ErrCodeProtocol it is scoped to one malformed record.
type Error struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// AsReasoning decodes the event as a Reasoning payload.
func (e *Event) AsReasoning() (*Reasoning, error) {
	var v Reasoning
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AsResponse decodes the event as a Response payload.
func (e *Event) AsResponse() (*Response, error) {
	var v Response
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AsToolUse decodes the event as a ToolUse payload.
func (e *Event) AsToolUse() (*ToolUse, error) {
	var v ToolUse
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AsToolResult decodes the event as a ToolResult payload.
func (e *Event) AsToolResult() (*ToolResult, error) {
	var v ToolResult
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AsToolProgress decodes the event as a ToolProgress payload.
func (e *Event) AsToolProgress() (*ToolProgress, error) {
	var v ToolProgress
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AsInterrupt decodes the event as an Interrupt payload.
func (e *Event) AsInterrupt() (*Interrupt, error) {
	var v Interrupt
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AsMetadata decodes the event as a Metadata payload.
func (e *Event) AsMetadata() (*Metadata, error) {
	var v Metadata
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AsComplete decodes the event as a Complete payload.
func (e *Event) AsComplete() (*Complete, error) {
	var v Complete
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AsError decodes the event as an Error payload.
func (e *Event) AsError() (*Error, error) {
	var v Error
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// IsTerminal reports whether the event ends a turn. Record-scoped protocol
// errors are not terminal.
func (e *Event) IsTerminal() bool {
	if e.Type == TypeComplete {
		return true
	}
	return e.Type == TypeError && !e.IsProtocolError()
}

// mustEvent marshals a typed payload into an Event. Payload structs are
// produced by this package and always marshal.
func mustEvent(t Type, v any) Event {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("event: marshal %s: %v", t, err))
	}
	return Event{Type: t, raw: data}
}

// NewInit builds an init event.
func NewInit() Event { return mustEvent(TypeInit, Init{Type: TypeInit}) }

// NewReasoning builds a reasoning event.
func NewReasoning(text string) Event {
	return mustEvent(TypeReasoning, Reasoning{Type: TypeReasoning, Text: text})
}

// NewResponse builds a response delta event.
func NewResponse(text string) Event {
	return mustEvent(TypeResponse, Response{Type: TypeResponse, Text: text})
}

// NewToolUse builds a tool_use event.
func NewToolUse(toolUseID, name string, input json.RawMessage) Event {
	return mustEvent(TypeToolUse, ToolUse{Type: TypeToolUse, ToolUseID: toolUseID, Name: name, Input: input})
}

// NewToolResult builds a tool_result event.
func NewToolResult(toolUseID string, result json.RawMessage) Event {
	return mustEvent(TypeToolResult, ToolResult{Type: TypeToolResult, ToolUseID: toolUseID, Result: result})
}

// NewToolProgress builds a tool_progress event.
func NewToolProgress(p ToolProgress) Event {
	p.Type = TypeToolProgress
	return mustEvent(TypeToolProgress, p)
}

// NewInterrupt builds an interrupt event.
func NewInterrupt(items ...InterruptItem) Event {
	return mustEvent(TypeInterrupt, Interrupt{Type: TypeInterrupt, Interrupts: items})
}

// NewBrowserSessionMetadata builds a metadata event carrying a browser-session
// pointer.
func NewBrowserSessionMetadata(bs BrowserSession) Event {
	return mustEvent(TypeMetadata, struct {
		Type           Type           `json:"type"`
		BrowserSession BrowserSession `json:"browserSession"`
	}{TypeMetadata, bs})
}

// NewComplete builds a complete event.
func NewComplete(usage *Usage) Event {
	return mustEvent(TypeComplete, Complete{Type: TypeComplete, Usage: usage})
}

// NewError builds a terminal error event.
func NewError(message string) Event {
	return mustEvent(TypeError, Error{Type: TypeError, Message: message})
}

// NewProtocolError builds a record-scoped error event for a malformed frame.
func NewProtocolError(message string) Event {
	return mustEvent(TypeError, Error{Type: TypeError, Message: message, Code: ErrCodeProtocol})
}

// IsProtocolError reports whether e is a record-scoped decode failure rather
// than a terminal upstream error.
func (e *Event) IsProtocolError() bool {
	if e.Type != TypeError {
		return false
	}
	v, err := e.AsError()
	return err == nil && v.Code == ErrCodeProtocol
}
