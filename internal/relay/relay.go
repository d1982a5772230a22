// Package relay forwards agent-invocation output to the client as SSE
// frames, keeping the connection alive across slow periods and running
// session bookkeeping hooks around the upstream call.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/invoke"
)

// DefaultKeepAlive is the idle interval after which a keep-alive frame is
// emitted. Intermediary proxies commonly cut connections idle for 30-60s.
const DefaultKeepAlive = 20 * time.Second

// State is the relay lifecycle state.
type State int

// Relay lifecycle states.
const (
	StatePending State = iota
	StateForwarding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateForwarding:
		return "forwarding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sink receives encoded frames. WriteFrame and Flush are called from the
// forwarding loop and the keep-alive timer; the Relay serializes the calls.
type Sink interface {
	WriteFrame(p []byte) error
	Flush()
}

// Relay drives one client request: it invokes the upstream collaborator,
// forwards its events as frames, and interleaves keep-alive frames while the
// producer is quiet. A Relay is single-use.
type Relay struct {
	// KeepAlive is the idle interval; DefaultKeepAlive when zero.
	KeepAlive time.Duration
	// Before hooks run, fault-isolated, before the upstream call.
	Before []Hook
	// After hooks run, fault-isolated, once forwarding has finished.
	After []Hook
	// Observer, when non-nil, sees every forwarded event. It must not block.
	Observer func(event.Event)

	mu           sync.Mutex
	state        State
	sink         Sink
	lastWrite    time.Time
	terminalSent bool
	closeOnce    sync.Once
	stopKA       chan struct{}
}

// State returns the current lifecycle state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run executes the relay for one request: before-hooks, upstream invocation,
// forwarding with keep-alives, then close and after-hooks. The returned error
// reports a client write failure; upstream errors are forwarded to the client
// and return nil.
func (r *Relay) Run(ctx context.Context, inv invoke.Invoker, req invoke.Request, w Sink) error {
	r.mu.Lock()
	if r.state != StatePending {
		r.mu.Unlock()
		return fmt.Errorf("relay: Run called in state %s", r.state)
	}
	r.sink = w
	r.stopKA = make(chan struct{})
	r.mu.Unlock()

	RunHooks(ctx, r.Before)
	defer RunHooks(ctx, r.After)
	defer r.Close()

	stream, err := inv.Invoke(ctx, req)
	if err != nil {
		// Upstream refused the call. The client still gets a well-formed
		// terminal frame.
		r.mu.Lock()
		r.state = StateForwarding
		r.mu.Unlock()
		return r.forward(event.NewError(err.Error()))
	}

	r.mu.Lock()
	r.state = StateForwarding
	r.lastWrite = time.Now()
	r.mu.Unlock()
	go r.keepAliveLoop(ctx)

	for ev := range stream.Events() {
		if err := r.forward(ev); err != nil {
			// Client is gone; the context cancellation unwinds the producer.
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return r.forward(event.NewError(err.Error()))
	}
	return nil
}

// forward encodes and writes one event, resetting the idle clock. Terminal
// frames are sent at most once.
func (r *Relay) forward(ev event.Event) error {
	frame, err := event.Encode(ev)
	if err != nil {
		slog.Warn("relay: dropping unencodable event", "type", ev.Type, "err", err)
		return nil
	}
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return nil
	}
	if ev.IsTerminal() {
		if r.terminalSent {
			r.mu.Unlock()
			return nil
		}
		r.terminalSent = true
	}
	werr := r.sink.WriteFrame(frame)
	if werr == nil {
		r.sink.Flush()
		r.lastWrite = time.Now()
	}
	r.mu.Unlock()
	if werr != nil {
		return fmt.Errorf("relay: write frame: %w", werr)
	}
	if r.Observer != nil {
		r.Observer(ev)
	}
	return nil
}

// keepAliveLoop emits a comment frame whenever no frame was written within
// the keep-alive interval. It exits when the relay closes or ctx is done.
func (r *Relay) keepAliveLoop(ctx context.Context) {
	interval := r.KeepAlive
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	t := time.NewTimer(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopKA:
			return
		case <-t.C:
		}
		r.mu.Lock()
		if r.state != StateForwarding {
			r.mu.Unlock()
			return
		}
		idle := time.Since(r.lastWrite)
		if idle >= interval {
			if err := r.sink.WriteFrame(event.KeepAliveFrame); err != nil {
				r.mu.Unlock()
				return
			}
			r.sink.Flush()
			r.lastWrite = time.Now()
			t.Reset(interval)
		} else {
			t.Reset(interval - idle)
		}
		r.mu.Unlock()
	}
}

// Close stops the keep-alive timer and transitions to closed. Idempotent:
// closing twice is harmless and never emits a second terminal frame.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.state = StateClosed
		if r.stopKA != nil {
			close(r.stopKA)
		}
		r.mu.Unlock()
	})
}
