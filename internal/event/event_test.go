package event

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalProbe(t *testing.T) {
	var ev Event
	if err := json.Unmarshal([]byte(`{"type":"tool_use","toolUseId":"t1","name":"browser","input":{"url":"https://example.com"}}`), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != TypeToolUse {
		t.Fatalf("type = %s, want tool_use", ev.Type)
	}
	v, err := ev.AsToolUse()
	if err != nil {
		t.Fatal(err)
	}
	if v.ToolUseID != "t1" || v.Name != "browser" {
		t.Errorf("payload = %+v", v)
	}
}

func TestUnmarshalMissingType(t *testing.T) {
	var ev Event
	if err := json.Unmarshal([]byte(`{"text":"no type"}`), &ev); err == nil {
		t.Fatal("expected an error for a payload without a type discriminator")
	}
}

func TestMetadataRetainsUnknownKeys(t *testing.T) {
	raw := `{"type":"metadata","browserSession":{"sessionId":"s","resourceId":"r"},"custom":{"a":1}}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatal(err)
	}
	md, err := ev.AsMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if md.BrowserSession == nil || md.BrowserSession.SessionID != "s" {
		t.Fatalf("browserSession = %+v", md.BrowserSession)
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(md.Extra, &extra); err != nil {
		t.Fatal(err)
	}
	if _, ok := extra["custom"]; !ok {
		t.Error("free-form key dropped from Extra")
	}
}

func TestIsTerminal(t *testing.T) {
	cases := []struct {
		ev   Event
		want bool
	}{
		{NewInit(), false},
		{NewResponse("x"), false},
		{NewComplete(nil), true},
		{NewError("boom"), true},
		{NewProtocolError("bad frame"), false},
		{NewInterrupt(InterruptItem{ID: "i"}), false},
	}
	for _, c := range cases {
		if got := c.ev.IsTerminal(); got != c.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", c.ev.Type, got, c.want)
		}
	}
}

func TestInterruptPayload(t *testing.T) {
	ev := NewInterrupt(InterruptItem{ID: "i1", Name: "plan", Reason: "review the plan"})
	v, err := ev.AsInterrupt()
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Interrupts) != 1 || v.Interrupts[0].Reason != "review the plan" {
		t.Errorf("payload = %+v", v)
	}
}
