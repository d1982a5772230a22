package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/invoke"
)

// memSink collects written frames.
type memSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *memSink) WriteFrame(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), p...))
	return nil
}

func (s *memSink) Flush() {}

// decoded parses all collected frames back into events.
func (s *memSink) decoded(t *testing.T) []event.Event {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var d event.Decoder
	var out []event.Event
	for _, f := range s.frames {
		out = append(out, d.Feed(f)...)
	}
	return out
}

func (s *memSink) keepAlives() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		if strings.HasPrefix(string(f), ":") {
			n++
		}
	}
	return n
}

func TestRunForwardsEvents(t *testing.T) {
	inv := &invoke.Scripted{Steps: []invoke.Step{
		{Event: event.NewInit()},
		{Event: event.NewResponse("hello")},
		{Event: event.NewComplete(nil)},
	}}
	sink := &memSink{}
	r := &Relay{}
	if err := r.Run(t.Context(), inv, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	got := sink.decoded(t)
	if len(got) != 3 {
		t.Fatalf("forwarded %d events, want 3", len(got))
	}
	if got[2].Type != event.TypeComplete {
		t.Errorf("last event = %s, want complete", got[2].Type)
	}
	if r.State() != StateClosed {
		t.Errorf("state = %s, want closed", r.State())
	}
}

func TestKeepAliveOnlyWhenIdle(t *testing.T) {
	inv := &invoke.Scripted{Steps: []invoke.Step{
		{Event: event.NewInit()},
		// Quiet period long enough for at least two keep-alives.
		{Delay: 130 * time.Millisecond, Event: event.NewResponse("late")},
		{Event: event.NewComplete(nil)},
	}}
	sink := &memSink{}
	r := &Relay{KeepAlive: 50 * time.Millisecond}
	if err := r.Run(t.Context(), inv, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	if n := sink.keepAlives(); n < 1 || n > 3 {
		t.Errorf("keep-alives = %d, want 1..3 for a ~130ms idle period", n)
	}
}

func TestNoKeepAliveWhenBusy(t *testing.T) {
	steps := []invoke.Step{{Event: event.NewInit()}}
	for range 10 {
		steps = append(steps, invoke.Step{Delay: 5 * time.Millisecond, Event: event.NewResponse("x")})
	}
	steps = append(steps, invoke.Step{Event: event.NewComplete(nil)})
	sink := &memSink{}
	r := &Relay{KeepAlive: 80 * time.Millisecond}
	if err := r.Run(t.Context(), &invoke.Scripted{Steps: steps}, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	if n := sink.keepAlives(); n != 0 {
		t.Errorf("keep-alives = %d, want 0 while producer is active", n)
	}
}

func TestInvokeErrorBecomesErrorEvent(t *testing.T) {
	inv := &failingInvoker{err: errors.New("backend unavailable")}
	sink := &memSink{}
	r := &Relay{}
	if err := r.Run(t.Context(), inv, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	got := sink.decoded(t)
	if len(got) != 1 || got[0].Type != event.TypeError {
		t.Fatalf("got %v, want one error event", got)
	}
	v, err := got[0].AsError()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(v.Message, "backend unavailable") {
		t.Errorf("message = %q", v.Message)
	}
}

func TestUpstreamFailureForwardedOnce(t *testing.T) {
	inv := &invoke.Scripted{
		Steps: []invoke.Step{{Event: event.NewInit()}, {Event: event.NewResponse("partial")}},
		Err:   errors.New("stream died"),
	}
	sink := &memSink{}
	r := &Relay{}
	if err := r.Run(t.Context(), inv, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	got := sink.decoded(t)
	var terminals int
	for _, ev := range got {
		if ev.IsTerminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("terminal events = %d, want 1", terminals)
	}
	if got[len(got)-1].Type != event.TypeError {
		t.Errorf("last event = %s, want error", got[len(got)-1].Type)
	}
}

func TestHookFailureDoesNotAbort(t *testing.T) {
	var order []string
	r := &Relay{
		Before: []Hook{
			{Name: "fails", Run: func(context.Context) error {
				order = append(order, "fails")
				return errors.New("storage down")
			}},
			{Name: "panics", Run: func(context.Context) error {
				order = append(order, "panics")
				panic("boom")
			}},
			{Name: "succeeds", Run: func(context.Context) error {
				order = append(order, "succeeds")
				return nil
			}},
		},
	}
	sink := &memSink{}
	if err := r.Run(t.Context(), &invoke.Scripted{}, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[2] != "succeeds" {
		t.Errorf("hook order = %v, want all three to run", order)
	}
	got := sink.decoded(t)
	if len(got) == 0 || got[len(got)-1].Type != event.TypeComplete {
		t.Errorf("stream did not complete after hook failures: %v", got)
	}
}

func TestCloseIdempotent(t *testing.T) {
	sink := &memSink{}
	r := &Relay{}
	if err := r.Run(t.Context(), &invoke.Scripted{}, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	before := len(sink.frames)
	r.Close()
	r.Close()
	if len(sink.frames) != before {
		t.Error("closing twice wrote additional frames")
	}
}

func TestRunIsSingleUse(t *testing.T) {
	sink := &memSink{}
	r := &Relay{}
	if err := r.Run(t.Context(), &invoke.Scripted{}, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(t.Context(), &invoke.Scripted{}, invoke.Request{Message: "hi"}, sink); err == nil {
		t.Fatal("second Run did not fail")
	}
}

func TestObserverSeesForwardedEvents(t *testing.T) {
	var seen []event.Type
	r := &Relay{Observer: func(ev event.Event) { seen = append(seen, ev.Type) }}
	sink := &memSink{}
	if err := r.Run(t.Context(), &invoke.Scripted{}, invoke.Request{Message: "hi"}, sink); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen[2] != event.TypeComplete {
		t.Errorf("observer saw %v", seen)
	}
}

type failingInvoker struct{ err error }

func (f *failingInvoker) Invoke(context.Context, invoke.Request) (*invoke.Stream, error) {
	return nil, f.err
}
