package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/store"
)

// LatencyTracker measures time-to-first-output and end-to-end duration for
// one turn and persists them once, in the background, through the session
// store. Persistence failure is logged and never surfaced.
type LatencyTracker struct {
	Store store.SessionStore
	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	metrics LatencyMetrics
}

func (l *LatencyTracker) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// StartTracking seeds the turn. It resets any prior measurements.
func (l *LatencyTracker) StartTracking(t0 time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metrics = LatencyMetrics{RequestStart: t0}
}

// RecordTTFT records time-to-first-token. Memoized: repeat calls return the
// first measurement.
func (l *LatencyTracker) RecordTTFT() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.metrics.TimeToFirstToken != nil {
		return *l.metrics.TimeToFirstToken
	}
	d := l.now().Sub(l.metrics.RequestStart)
	l.metrics.TimeToFirstToken = &d
	return d
}

// RecordE2E finalizes the turn at the given usage figures and kicks off
// background persistence. At most once per turn; later calls are no-ops.
func (l *LatencyTracker) RecordE2E(userID, sessionID string, usage *event.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.metrics.saved {
		return
	}
	l.metrics.saved = true
	d := l.now().Sub(l.metrics.RequestStart)
	l.metrics.EndToEndLatency = &d
	l.metrics.Usage = usage
	if l.Store == nil {
		return
	}
	patch := map[string]any{
		"latency": map[string]any{
			"endToEndMs": d.Milliseconds(),
		},
	}
	if l.metrics.TimeToFirstToken != nil {
		patch["latency"].(map[string]any)["timeToFirstTokenMs"] = l.metrics.TimeToFirstToken.Milliseconds()
	}
	if usage != nil {
		patch["usage"] = map[string]any{
			"inputTokens":  usage.InputTokens,
			"outputTokens": usage.OutputTokens,
			"totalTokens":  usage.TotalTokens,
		}
	}
	// Fire and forget. The turn must never wait on storage.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.Store.UpsertSession(ctx, userID, sessionID, patch); err != nil {
			slog.Warn("latency: persist failed", "sessionID", sessionID, "err", err)
		}
	}()
}

// Metrics returns a copy of the current measurements.
func (l *LatencyTracker) Metrics() LatencyMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metrics
}
