// Package invoke defines the agent-invocation collaborator contract: given a
// user message and session context, an Invoker produces an ordered sequence
// of protocol events terminated by completion or error.
package invoke

import (
	"context"
	"sync"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
)

// Attachment is a binary file uploaded with a message.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
}

// Request describes one agent invocation. An Invoker may be invoked at most
// once per client request.
type Request struct {
	UserID       string
	SessionID    string
	Message      string
	EnabledTools []string
	ModelID      string
	Attachments  []Attachment
}

// Invoker is the agent-invocation collaborator. The returned Stream yields
// events in order; after the events channel is drained, Err reports whether
// the upstream failed.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Stream, error)
}

// Stream is an ordered, asynchronous sequence of events produced by an
// Invoker. Producers push with Send and finish with Close; consumers range
// over Events and then check Err.
type Stream struct {
	ch chan event.Event

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// NewStream creates a Stream with the given channel buffer.
func NewStream(buf int) *Stream {
	return &Stream{ch: make(chan event.Event, buf)}
}

// Events returns the ordered event channel. It is closed when the producer
// finishes.
func (s *Stream) Events() <-chan event.Event { return s.ch }

// Err reports the upstream failure, if any. Valid once Events is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Send pushes ev to the consumer. It returns false if ctx is done before the
// consumer accepts the event.
func (s *Stream) Send(ctx context.Context, ev event.Event) bool {
	select {
	case s.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close marks the stream finished with err (nil for normal completion) and
// closes the events channel. Idempotent.
func (s *Stream) Close(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	})
}
