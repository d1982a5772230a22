// In-flight stream registry: at most one chat stream per session.
package server

import (
	"context"
	"log/slog"
)

// streamEntry tracks one in-flight chat stream.
type streamEntry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// acquireSession registers a new stream for sessionID, superseding any prior
// in-flight stream: the prior stream is canceled and drained before the new
// context is handed out, so frames from two streams never interleave. The
// returned release must be called when the stream ends.
func (s *Server) acquireSession(parent context.Context, sessionID string) (context.Context, func()) {
	for {
		s.mu.Lock()
		prev := s.active[sessionID]
		if prev == nil {
			break
		}
		s.mu.Unlock()
		slog.Info("superseding in-flight stream", "sessionID", sessionID)
		prev.cancel()
		<-prev.done
	}
	ctx, cancel := context.WithCancel(parent)
	entry := &streamEntry{cancel: cancel, done: make(chan struct{})}
	s.active[sessionID] = entry
	s.mu.Unlock()

	release := func() {
		cancel()
		s.mu.Lock()
		if s.active[sessionID] == entry {
			delete(s.active, sessionID)
		}
		s.mu.Unlock()
		close(entry.done)
	}
	return ctx, release
}
