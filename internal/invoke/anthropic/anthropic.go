// Package anthropic provides an invoke.Invoker backed by the Anthropic
// Messages streaming API. It maps incremental SDK events (text deltas,
// thinking deltas, tool_use blocks) onto the chat streaming protocol.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/invoke"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/tools"
)

// MessagesClient is the subset of the Anthropic SDK used by the adapter.
// Satisfied by *sdk.MessageService; tests pass a stub.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Options configures the adapter.
type Options struct {
	// DefaultModel is used when Request.ModelID is empty.
	DefaultModel string
	// MaxTokens caps the completion length. Required.
	MaxTokens int
	// Registry supplies tool definitions for enabled tools.
	Registry *tools.Registry
}

// Invoker implements invoke.Invoker on top of Anthropic Claude Messages.
type Invoker struct {
	msg          MessagesClient
	defaultModel string
	maxTok       int
	registry     *tools.Registry
}

var _ invoke.Invoker = (*Invoker)(nil)

// New builds an Anthropic-backed invoker.
func New(msg MessagesClient, opts Options) (*Invoker, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &Invoker{msg: msg, defaultModel: opts.DefaultModel, maxTok: maxTok, registry: opts.Registry}, nil
}

// NewFromAPIKey constructs an invoker using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, defaultModel string, registry *tools.Registry) (*Invoker, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel, Registry: registry})
}

// Invoke implements invoke.Invoker. It issues one Messages.NewStreaming call
// and adapts its events. The returned stream terminates with a complete event
// on normal stop, or reports the upstream failure through Stream.Err.
func (c *Invoker) Invoke(ctx context.Context, req invoke.Request) (*invoke.Stream, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic messages.new stream: %w", err)
	}
	out := invoke.NewStream(32)
	go c.pump(ctx, stream, out)
	return out, nil
}

func (c *Invoker) prepareRequest(req invoke.Request) (*sdk.MessageNewParams, error) {
	if req.Message == "" {
		return nil, errors.New("anthropic: message is required")
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.defaultModel
	}
	blocks := []sdk.ContentBlockParamUnion{sdk.NewTextBlock(req.Message)}
	for _, a := range req.Attachments {
		if !strings.HasPrefix(a.MediaType, "image/") {
			continue
		}
		blocks = append(blocks, sdk.NewImageBlockBase64(a.MediaType, base64.StdEncoding.EncodeToString(a.Data)))
	}
	params := &sdk.MessageNewParams{
		MaxTokens: int64(c.maxTok),
		Model:     sdk.Model(modelID),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	}
	if c.registry != nil && len(req.EnabledTools) > 0 {
		defs, err := c.encodeTools(req.EnabledTools)
		if err != nil {
			return nil, err
		}
		params.Tools = defs
	}
	return params, nil
}

func (c *Invoker) encodeTools(names []string) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(names))
	for _, name := range names {
		t, ok := c.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("anthropic: unknown tool %q", name)
		}
		var schema sdk.ToolInputSchemaParam
		if len(t.InputSchema) > 0 {
			var m map[string]any
			if err := json.Unmarshal(t.InputSchema, &m); err != nil {
				return nil, fmt.Errorf("anthropic: tool %q schema: %w", name, err)
			}
			schema = sdk.ToolInputSchemaParam{ExtraFields: m}
		}
		u := sdk.ToolUnionParamOfTool(schema, t.Name)
		if u.OfTool != nil && t.Description != "" {
			u.OfTool.Description = sdk.String(t.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

// pump drains the SDK stream into out, emitting protocol events in order.
func (c *Invoker) pump(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion], out *invoke.Stream) {
	defer func() { _ = stream.Close() }()

	tb := make(map[int]*toolBuffer)
	var usage event.Usage
	started := false

	emit := func(ev event.Event) bool { return out.Send(ctx, ev) }

	for stream.Next() {
		switch ev := stream.Current().AsAny().(type) {
		case sdk.MessageStartEvent:
			if !started {
				started = true
				if !emit(event.NewInit()) {
					out.Close(ctx.Err())
					return
				}
			}
		case sdk.ContentBlockStartEvent:
			if tu, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				tb[int(ev.Index)] = &toolBuffer{id: tu.ID, name: tu.Name}
			}
		case sdk.ContentBlockDeltaEvent:
			idx := int(ev.Index)
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text == "" {
					continue
				}
				if !emit(event.NewResponse(delta.Text)) {
					out.Close(ctx.Err())
					return
				}
			case sdk.ThinkingDelta:
				if delta.Thinking == "" {
					continue
				}
				if !emit(event.NewReasoning(delta.Thinking)) {
					out.Close(ctx.Err())
					return
				}
			case sdk.InputJSONDelta:
				if b := tb[idx]; b != nil {
					b.fragments = append(b.fragments, delta.PartialJSON)
				}
			}
		case sdk.ContentBlockStopEvent:
			idx := int(ev.Index)
			if b := tb[idx]; b != nil {
				delete(tb, idx)
				if !emit(event.NewToolUse(b.id, b.name, b.finalInput())) {
					out.Close(ctx.Err())
					return
				}
			}
		case sdk.MessageDeltaEvent:
			trackUsage(&usage, ev.Usage)
		case sdk.MessageStopEvent:
			// The complete event is emitted after the stream drains so a
			// transport error surfaced by Err wins over a premature stop.
		}
	}
	if err := stream.Err(); err != nil {
		out.Close(fmt.Errorf("anthropic stream: %w", err))
		return
	}
	if !emit(event.NewComplete(&usage)) {
		out.Close(ctx.Err())
		return
	}
	out.Close(nil)
}

// trackUsage folds a message_delta usage snapshot into u. The API reports
// cumulative counts per message, so a later snapshot replaces an earlier
// one rather than adding to it.
func trackUsage(u *event.Usage, d sdk.MessageDeltaUsage) {
	if d.InputTokens > 0 {
		u.InputTokens = int(d.InputTokens)
	}
	if d.OutputTokens > 0 {
		u.OutputTokens = int(d.OutputTokens)
	}
	u.TotalTokens = u.InputTokens + u.OutputTokens
}

type toolBuffer struct {
	id        string
	name      string
	fragments []string
}

func (b *toolBuffer) finalInput() json.RawMessage {
	joined := strings.TrimSpace(strings.Join(b.fragments, ""))
	if joined == "" {
		joined = "{}"
	}
	return json.RawMessage(joined)
}
