// JSON response and error encoding shared by all handlers.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/server/dto"
)

// writeError writes a structured error response. Non-dto errors become 500s
// with a generic message so internals never leak to the client.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *dto.Error
	if !errors.As(err, &apiErr) {
		slog.Error("unhandled error", "err", err)
		apiErr = dto.InternalError("internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		slog.Warn("encode error response", "err", err)
	}
}

// writeJSONResponse writes out as JSON, or the error when err is non-nil.
func writeJSONResponse(w http.ResponseWriter, out any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		slog.Warn("encode response", "err", err)
	}
}
