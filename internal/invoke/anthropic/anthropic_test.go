package anthropic

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/invoke"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/tools"
)

type stubMessages struct{}

func (stubMessages) NewStreaming(context.Context, sdk.MessageNewParams, ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	return nil
}

func newTestInvoker(t *testing.T) *Invoker {
	t.Helper()
	inv, err := New(stubMessages{}, Options{
		DefaultModel: "claude-sonnet-4-20250514",
		MaxTokens:    1024,
		Registry:     tools.Default(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return inv
}

func TestPrepareRequestDefaults(t *testing.T) {
	inv := newTestInvoker(t)

	params, err := inv.prepareRequest(invoke.Request{Message: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if params.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", params.Model)
	}
	if params.MaxTokens != 1024 {
		t.Errorf("max tokens = %d", params.MaxTokens)
	}
	if len(params.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(params.Messages))
	}
	if len(params.Tools) != 0 {
		t.Errorf("tools = %d, want none", len(params.Tools))
	}
}

func TestPrepareRequestModelOverride(t *testing.T) {
	inv := newTestInvoker(t)

	params, err := inv.prepareRequest(invoke.Request{Message: "hi", ModelID: "claude-opus-4-20250514"})
	if err != nil {
		t.Fatal(err)
	}
	if params.Model != "claude-opus-4-20250514" {
		t.Errorf("model = %q", params.Model)
	}
}

func TestPrepareRequestAttachments(t *testing.T) {
	inv := newTestInvoker(t)

	params, err := inv.prepareRequest(invoke.Request{
		Message: "look",
		Attachments: []invoke.Attachment{
			{Name: "shot.png", MediaType: "image/png", Data: []byte{0x89, 0x50}},
			{Name: "notes.txt", MediaType: "text/plain", Data: []byte("skip me")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	// One text block plus the image; the non-image attachment is dropped.
	if got := len(params.Messages[0].Content); got != 2 {
		t.Errorf("content blocks = %d, want 2", got)
	}
}

func TestPrepareRequestRejectsEmptyMessage(t *testing.T) {
	if _, err := newTestInvoker(t).prepareRequest(invoke.Request{}); err == nil {
		t.Fatal("empty message accepted")
	}
}

func TestEncodeTools(t *testing.T) {
	inv := newTestInvoker(t)

	params, err := inv.prepareRequest(invoke.Request{
		Message:      "calc",
		EnabledTools: []string{"calculator", "web_search"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(params.Tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(params.Tools))
	}
	if params.Tools[0].OfTool == nil || params.Tools[0].OfTool.Name != "calculator" {
		t.Errorf("first tool = %+v", params.Tools[0])
	}
}

func TestEncodeToolsUnknownName(t *testing.T) {
	inv := newTestInvoker(t)
	if _, err := inv.prepareRequest(invoke.Request{Message: "x", EnabledTools: []string{"warp_drive"}}); err == nil {
		t.Fatal("unknown tool accepted")
	}
}

// message_delta usage figures are cumulative per message; repeat snapshots
// must replace, not add.
func TestTrackUsageTakesLatestSnapshot(t *testing.T) {
	var u event.Usage
	trackUsage(&u, sdk.MessageDeltaUsage{InputTokens: 12, OutputTokens: 5})
	trackUsage(&u, sdk.MessageDeltaUsage{InputTokens: 12, OutputTokens: 40})
	if u.InputTokens != 12 || u.OutputTokens != 40 {
		t.Fatalf("usage = %+v, want input 12 output 40", u)
	}
	if u.TotalTokens != 52 {
		t.Errorf("total = %d, want 52", u.TotalTokens)
	}
	// A snapshot that omits input keeps the last known value.
	trackUsage(&u, sdk.MessageDeltaUsage{OutputTokens: 41})
	if u.InputTokens != 12 || u.OutputTokens != 41 || u.TotalTokens != 53 {
		t.Errorf("usage = %+v, want input 12 output 41 total 53", u)
	}
}

func TestToolBufferJoinsFragments(t *testing.T) {
	b := &toolBuffer{id: "tu_1", name: "calculator", fragments: []string{`{"expre`, `ssion":"1`, `+1"}`}}
	if got := string(b.finalInput()); got != `{"expression":"1+1"}` {
		t.Errorf("input = %s", got)
	}
	empty := &toolBuffer{id: "tu_2", name: "browser"}
	if got := string(empty.finalInput()); got != "{}" {
		t.Errorf("empty input = %s", got)
	}
}
