package relay

import (
	"context"
	"log/slog"
)

// Hook is a best-effort side effect run around the upstream call (session
// upsert, tool-preference persistence). Hooks are not part of the
// correctness contract: a failing hook is logged and the pipeline continues.
type Hook struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunHooks executes hooks in order through a fault-isolating pipeline. A
// panicking or failing hook never propagates into the streaming path.
func RunHooks(ctx context.Context, hooks []Hook) {
	for _, h := range hooks {
		runHook(ctx, h)
	}
}

func runHook(ctx context.Context, h Hook) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("hook panicked", "hook", h.Name, "panic", v)
		}
	}()
	if err := h.Run(ctx); err != nil {
		slog.Warn("hook failed", "hook", h.Name, "err", err)
	}
}
