package invoke

import (
	"context"
	"time"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
)

// Step is one scripted emission: an optional delay followed by an event.
type Step struct {
	Delay time.Duration
	Event event.Event
}

// Scripted is an Invoker that replays a fixed event sequence. Used by -fake
// mode and tests.
type Scripted struct {
	// Steps is the sequence emitted for every invocation. When nil, a
	// minimal init/response/complete exchange is emitted.
	Steps []Step
	// Err, when non-nil, is reported as the upstream failure after the
	// steps are drained.
	Err error
}

var _ Invoker = (*Scripted)(nil)

// Invoke implements Invoker.
func (s *Scripted) Invoke(ctx context.Context, req Request) (*Stream, error) {
	steps := s.Steps
	if steps == nil {
		steps = []Step{
			{Event: event.NewInit()},
			{Event: event.NewResponse("Echo: " + req.Message)},
			{Event: event.NewComplete(&event.Usage{InputTokens: 1, OutputTokens: 1})},
		}
	}
	st := NewStream(len(steps))
	go func() {
		for _, step := range steps {
			if step.Delay > 0 {
				select {
				case <-time.After(step.Delay):
				case <-ctx.Done():
					st.Close(ctx.Err())
					return
				}
			}
			if !st.Send(ctx, step.Event) {
				st.Close(ctx.Err())
				return
			}
		}
		st.Close(s.Err)
	}()
	return st, nil
}
