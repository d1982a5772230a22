package client

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/tools"
)

// Reducer folds the decoded event sequence into conversation state. It is
// driven synchronously from the transport's frame loop; it never blocks and
// never performs I/O inline (latency persistence is dispatched in the
// background by the tracker).
type Reducer struct {
	Latency  *LatencyTracker
	Registry *tools.Registry
	Log      *slog.Logger

	// UserID and SessionID key latency persistence. SessionID is updated by
	// the transport when the server assigns one.
	UserID    string
	SessionID string

	mu      sync.Mutex
	session SessionState
	ui      UIState
	turns   []*Turn
}

// NewReducer returns a reducer in the idle state.
func NewReducer(latency *LatencyTracker, registry *tools.Registry, log *slog.Logger) *Reducer {
	if log == nil {
		log = slog.Default()
	}
	return &Reducer{
		Latency:  latency,
		Registry: registry,
		Log:      log,
		ui:       UIState{AgentStatus: StatusIdle},
	}
}

// BeginTurn opens a new turn for a user submission. Any pending interrupt is
// consumed: submitting a message is how an approval decision re-enters the
// flow.
func (r *Reducer) BeginTurn(userText string) *Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.beginTurn(userText)
}

func (r *Reducer) beginTurn(userText string) *Turn {
	t := &Turn{
		ID:          uuid.NewString(),
		UserText:    userText,
		toolsByID:   map[string]*ToolExecution{},
		submittedAt: time.Now(),
	}
	t.Messages = append(t.Messages, &Message{ID: uuid.NewString(), Role: RoleUser, Text: userText})
	r.turns = append(r.turns, t)
	r.session.ActiveTurn = t
	return t
}

// Apply processes one decoded event in arrival order.
func (r *Reducer) Apply(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.session.ActiveTurn
	if t == nil {
		if ev.Type != event.TypeInit {
			r.Log.Warn("reducer: event outside a turn, dropped", "type", ev.Type)
			return
		}
		// Replayed sequences start with init and have no explicit submission.
		t = r.beginTurn("")
		t.Messages = nil
	}
	// While an approval is pending no event advances the turn; a fresh init
	// for the resubmitted decision re-opens the flow, and terminal events
	// still end the turn.
	if t.Interrupt != nil && ev.Type != event.TypeInit && !ev.IsTerminal() {
		r.Log.Debug("reducer: event gated by pending interrupt", "type", ev.Type)
		return
	}

	switch ev.Type {
	case event.TypeInit:
		// A duplicate init mid-turn must not restart latency tracking.
		if t.Interrupt == nil && r.ui.AgentStatus != StatusIdle {
			r.Log.Warn("reducer: duplicate init mid-turn, dropped")
			return
		}
		t.Interrupt = nil
		r.ui.AgentStatus = StatusThinking
		if r.Latency != nil {
			t0 := t.submittedAt
			if t0.IsZero() {
				t0 = time.Now()
			}
			r.Latency.StartTracking(t0)
		}

	case event.TypeReasoning:
		v, err := ev.AsReasoning()
		if err != nil {
			r.Log.Warn("reducer: bad reasoning payload", "err", err)
			return
		}
		t.Reasoning = v.Text

	case event.TypeResponse:
		v, err := ev.AsResponse()
		if err != nil {
			r.Log.Warn("reducer: bad response payload", "err", err)
			return
		}
		if t.streaming == nil {
			m := &Message{ID: uuid.NewString(), Role: RoleBot, Text: v.Text, Streaming: true}
			t.streaming = m
			t.Messages = append(t.Messages, m)
			if r.ui.AgentStatus == StatusThinking {
				if r.Latency != nil {
					r.Latency.RecordTTFT()
				}
				r.ui.AgentStatus = StatusResponding
			}
		} else {
			t.streaming.Text += v.Text
		}

	case event.TypeToolUse:
		v, err := ev.AsToolUse()
		if err != nil {
			r.Log.Warn("reducer: bad tool_use payload", "err", err)
			return
		}
		// A tool call ends the current reply segment; a distinct one may
		// follow after the result. Applies to live and replayed streams
		// alike.
		r.finalizeStreaming(t)
		te := t.toolsByID[v.ToolUseID]
		if te == nil {
			te = &ToolExecution{ToolUseID: v.ToolUseID}
			t.toolsByID[v.ToolUseID] = te
			t.Tools = append(t.Tools, te)
		}
		te.Name = v.Name
		te.Input = v.Input
		if r.Registry != nil {
			te.Kind = string(r.Registry.KindOf(v.Name))
		}

	case event.TypeToolResult:
		v, err := ev.AsToolResult()
		if err != nil {
			r.Log.Warn("reducer: bad tool_result payload", "err", err)
			return
		}
		te := t.toolsByID[v.ToolUseID]
		if te == nil {
			id := v.ToolUseID
			if id == "" {
				id = uuid.NewString()
			}
			te = &ToolExecution{ToolUseID: id, Orphan: true}
			t.toolsByID[id] = te
			t.Tools = append(t.Tools, te)
			r.Log.Warn("reducer: tool_result without matching tool_use", "toolUseId", v.ToolUseID)
		}
		te.Result = v.Result
		te.Images = v.Images
		te.Complete = true
		if v.Status == "cancelled" {
			te.Canceled = true
		}

	case event.TypeToolProgress:
		// Advisory only; never alters agent status.
		if v, err := ev.AsToolProgress(); err == nil {
			r.Log.Debug("tool progress", "toolId", v.ToolID, "step", v.Step, "progress", v.Progress)
		}

	case event.TypeInterrupt:
		v, err := ev.AsInterrupt()
		if err != nil {
			r.Log.Warn("reducer: bad interrupt payload", "err", err)
			return
		}
		t.Interrupt = v
		r.ui.AgentStatus = StatusIdle

	case event.TypeMetadata:
		v, err := ev.AsMetadata()
		if err != nil {
			r.Log.Warn("reducer: bad metadata payload", "err", err)
			return
		}
		if v.BrowserSession != nil {
			r.session.BrowserSession = v.BrowserSession
		}

	case event.TypeComplete:
		if t.terminal {
			return
		}
		t.terminal = true
		v, err := ev.AsComplete()
		if err != nil {
			r.Log.Warn("reducer: bad complete payload", "err", err)
			v = &event.Complete{}
		}
		r.finalizeStreaming(t)
		if r.Latency != nil {
			r.Latency.RecordE2E(r.UserID, r.SessionID, v.Usage)
		}
		r.closeTurn(t)

	case event.TypeError:
		if ev.IsProtocolError() {
			// Scoped to one malformed record; the stream continues.
			if v, err := ev.AsError(); err == nil {
				r.Log.Warn("reducer: malformed record", "message", v.Message)
			}
			return
		}
		if t.terminal {
			return
		}
		t.terminal = true
		msg := "unknown error"
		if v, err := ev.AsError(); err == nil && v.Message != "" {
			msg = v.Message
		}
		r.finalizeStreaming(t)
		t.Messages = append(t.Messages, &Message{ID: uuid.NewString(), Role: RoleBot, Text: msg, IsError: true})
		if r.Latency != nil {
			r.Latency.RecordE2E(r.UserID, r.SessionID, nil)
		}
		r.closeTurn(t)

	default:
		r.Log.Warn("reducer: unknown event type", "type", ev.Type)
	}
}

func (r *Reducer) finalizeStreaming(t *Turn) {
	if t.streaming != nil {
		t.streaming.Streaming = false
		t.streaming = nil
	}
}

// closeTurn clears the turn-scoped state. The browser session pointer
// survives until a later metadata event replaces it.
func (r *Reducer) closeTurn(t *Turn) {
	t.Closed = true
	r.session.ActiveTurn = nil
	r.ui.AgentStatus = StatusIdle
}

// CancelTurn aborts the active turn without a terminal event. It finalizes
// latency at the cancellation time and marks unresolved tools canceled. Not
// an error path: no bot error message is produced.
func (r *Reducer) CancelTurn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.session.ActiveTurn
	if t == nil {
		return
	}
	if !t.terminal {
		t.terminal = true
		if r.Latency != nil {
			r.Latency.RecordE2E(r.UserID, r.SessionID, nil)
		}
	}
	r.finalizeStreaming(t)
	for _, te := range t.Tools {
		if !te.Complete {
			te.Canceled = true
		}
	}
	r.closeTurn(t)
}

// SetConnected updates the UI connectivity flag.
func (r *Reducer) SetConnected(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ui.Connected = ok
}

// Turns returns all turns, oldest first. Turn contents must only be
// inspected once the turn is closed or the stream has ended.
func (r *Reducer) Turns() []*Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turns
}

// ActiveTurn returns the in-progress turn, or nil.
func (r *Reducer) ActiveTurn() *Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.ActiveTurn
}

// BrowserSession returns the last observed browser-session pointer, or nil.
func (r *Reducer) BrowserSession() *event.BrowserSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.BrowserSession
}

// Status returns the current agent status.
func (r *Reducer) Status() AgentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ui.AgentStatus
}

// UI returns a copy of the UI state, with the tracker's current metrics.
func (r *Reducer) UI() UIState {
	r.mu.Lock()
	ui := r.ui
	r.mu.Unlock()
	if r.Latency != nil {
		ui.Latency = r.Latency.Metrics()
	}
	return ui
}
