// The chat stream endpoint: parses the request, resolves the session,
// supersedes any in-flight stream for it, and runs the relay over the
// response writer as SSE.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/maruel/ksid"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/invoke"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/relay"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/server/dto"
)

// maxAttachmentMemory bounds in-memory multipart parsing.
const maxAttachmentMemory = 32 << 20

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, apiErr := s.parseChatRequest(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, dto.InternalError("streaming not supported"))
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = defaultUserID
	}
	sessionID := r.Header.Get("X-Session-ID")
	isNew := sessionID == ""
	if isNew {
		sessionID = ksid.NewID().String()
	}

	// One stream per session: cancel and drain any prior in-flight stream so
	// two calls never interleave frames for the same session.
	ctx, release := s.acquireSession(r.Context(), sessionID)
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-ID", sessionID)
	if isNew {
		w.Header().Set("X-Session-Is-New", "true")
	} else {
		w.Header().Set("X-Session-Is-New", "false")
	}
	flusher.Flush()

	rly := &relay.Relay{
		KeepAlive: s.keepAlive,
		Before: []relay.Hook{
			{Name: "upsert-session", Run: func(ctx context.Context) error {
				meta := map[string]any{"lastMessageAt": time.Now().UTC().Format(time.RFC3339Nano)}
				if req.ModelID != "" {
					meta["modelId"] = req.ModelID
				}
				return s.store.UpsertSession(ctx, userID, sessionID, meta)
			}},
			{Name: "tool-preferences", Run: func(ctx context.Context) error {
				if req.EnabledTools == nil {
					return nil
				}
				return s.store.UpsertSession(ctx, userID, sessionID, map[string]any{
					"enabledTools": req.EnabledTools,
				})
			}},
		},
		After: []relay.Hook{
			// Uses the server context: the request context is already done
			// when the client disconnected mid-stream.
			{Name: "touch-session", Run: func(context.Context) error {
				return s.store.UpsertSession(s.ctx, userID, sessionID, map[string]any{
					"lastActiveAt": time.Now().UTC().Format(time.RFC3339Nano),
				})
			}},
		},
		Observer: s.observeEvent(userID, sessionID),
	}
	req.UserID = userID
	req.SessionID = sessionID
	if err := rly.Run(ctx, s.invoker, req, &sseSink{w: w, f: flusher}); err != nil {
		slog.Warn("chat stream ended with write failure", "sessionID", sessionID, "err", err)
	}
}

// observeEvent records every forwarded event in the history log and persists
// browser-session pointers so resumed clients can reattach the live view.
func (s *Server) observeEvent(userID, sessionID string) func(event.Event) {
	return func(ev event.Event) {
		if s.history != nil {
			if err := s.history.Append(s.ctx, userID, sessionID, ev); err != nil {
				slog.Warn("history append failed", "sessionID", sessionID, "err", err)
			}
		}
		if ev.Type != event.TypeMetadata {
			return
		}
		md, err := ev.AsMetadata()
		if err != nil || md.BrowserSession == nil {
			return
		}
		bs := *md.BrowserSession
		go func() {
			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			defer cancel()
			err := s.store.UpsertSession(ctx, userID, sessionID, map[string]any{
				"browserSession": map[string]any{
					"sessionId":  bs.SessionID,
					"resourceId": bs.ResourceID,
				},
			})
			if err != nil {
				slog.Warn("browser session persist failed", "sessionID", sessionID, "err", err)
			}
		}()
	}
}

// parseChatRequest accepts a JSON body or a multipart form (when attachments
// are present) carrying the same fields.
func (s *Server) parseChatRequest(r *http.Request) (invoke.Request, *dto.Error) {
	var req invoke.Request
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(ct, "multipart/"):
		if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
			return req, dto.BadRequest("invalid multipart form").Wrap(err)
		}
		req.Message = r.FormValue("message")
		req.ModelID = r.FormValue("model_id")
		if vals, ok := r.MultipartForm.Value["enabled_tools"]; ok {
			req.EnabledTools = vals
		}
		for _, fh := range r.MultipartForm.File["attachments"] {
			f, err := fh.Open()
			if err != nil {
				return req, dto.BadRequest("unreadable attachment: " + fh.Filename).Wrap(err)
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return req, dto.BadRequest("unreadable attachment: " + fh.Filename).Wrap(err)
			}
			req.Attachments = append(req.Attachments, invoke.Attachment{
				Name:      fh.Filename,
				MediaType: fh.Header.Get("Content-Type"),
				Data:      data,
			})
		}
	default:
		var body dto.ChatStreamReq
		d := json.NewDecoder(r.Body)
		d.DisallowUnknownFields()
		if err := d.Decode(&body); err != nil {
			return req, dto.BadRequest("invalid request body").Wrap(err)
		}
		req.Message = body.Message
		req.EnabledTools = body.EnabledTools
		req.ModelID = body.ModelID
	}
	if strings.TrimSpace(req.Message) == "" {
		return req, dto.BadRequest("message is required")
	}
	if err := s.registry.Validate(req.EnabledTools); err != nil {
		return req, dto.BadRequest(err.Error())
	}
	return req, nil
}

// sseSink adapts the HTTP response writer to the relay's frame sink.
type sseSink struct {
	w io.Writer
	f http.Flusher
}

func (s *sseSink) WriteFrame(p []byte) error {
	_, err := s.w.Write(p)
	return err
}

func (s *sseSink) Flush() { s.f.Flush() }
