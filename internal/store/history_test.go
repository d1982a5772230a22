package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
)

func TestHistoryLogRoundTrip(t *testing.T) {
	h, err := NewHistoryLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()

	if _, err := h.Events(ctx, "u1", "none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Events(missing) = %v, want ErrNotFound", err)
	}

	seq := []event.Event{
		event.NewInit(),
		event.NewToolUse("t1", "calculator", json.RawMessage(`{"expression":"2+2"}`)),
		event.NewToolResult("t1", json.RawMessage(`"4"`)),
		event.NewComplete(&event.Usage{InputTokens: 3, OutputTokens: 5}),
	}
	for _, ev := range seq {
		if err := h.Append(ctx, "u1", "s1", ev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := h.Events(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(seq) {
		t.Fatalf("got %d events, want %d", len(got), len(seq))
	}
	for i := range got {
		if got[i].Type != seq[i].Type {
			t.Errorf("event %d type = %s, want %s", i, got[i].Type, seq[i].Type)
		}
	}
	tu, err := got[1].AsToolUse()
	if err != nil {
		t.Fatal(err)
	}
	if tu.ToolUseID != "t1" || tu.Name != "calculator" {
		t.Errorf("tool_use = %+v", tu)
	}

	// Sessions are isolated.
	if _, err := h.Events(ctx, "u2", "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Events(other user) = %v, want ErrNotFound", err)
	}
}
