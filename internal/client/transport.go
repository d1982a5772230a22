package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
)

// Attachment is a binary file sent alongside a message.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
}

// SendOptions carries the optional fields of a streaming call.
type SendOptions struct {
	EnabledTools []string
	ModelID      string
	Attachments  []Attachment
}

// Transport manages the streaming request lifecycle: it issues the call with
// the current session id, persists the id the server returns, reads the
// response frame by frame into the reducer, and supports cancellation. At
// most one call is in flight; a new call cancels and drains the prior one
// first so events from two calls never interleave.
type Transport struct {
	BaseURL string
	Client  *http.Client
	Reducer *Reducer
	Log     *slog.Logger

	mu        sync.Mutex
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

func (t *Transport) log() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}

func (t *Transport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

// SessionID returns the current session id, empty until the server assigns
// one.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Send submits a message and blocks until the stream ends or is canceled.
// Cancellation is not an error.
func (t *Transport) Send(ctx context.Context, message string, opts SendOptions) error {
	t.Cancel()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	defer close(done)
	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	sessionID := t.sessionID
	t.mu.Unlock()
	defer func() {
		cancel()
		t.mu.Lock()
		if t.done == done {
			t.cancel = nil
			t.done = nil
		}
		t.mu.Unlock()
	}()

	body, contentType, err := encodeBody(message, opts)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/api/v1/chat/stream", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	t.Reducer.BeginTurn(message)
	resp, err := t.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			t.Reducer.CancelTurn()
			return nil
		}
		t.Reducer.SetConnected(false)
		t.Reducer.Apply(event.NewError("connection failed: " + err.Error()))
		return fmt.Errorf("chat stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		t.Reducer.Apply(event.NewError(fmt.Sprintf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))))
		return fmt.Errorf("chat stream: %s", resp.Status)
	}
	t.Reducer.SetConnected(true)
	if id := resp.Header.Get("X-Session-ID"); id != "" {
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
		t.Reducer.SessionID = id
		if resp.Header.Get("X-Session-Is-New") == "true" {
			t.log().Info("new session", "sessionID", id)
		}
	}

	var dec event.Decoder
	buf := make([]byte, 16*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				t.Reducer.Apply(ev)
			}
		}
		if err == io.EOF {
			if ctx.Err() != nil {
				t.Reducer.CancelTurn()
				return nil
			}
			if t.Reducer.ActiveTurn() == nil {
				return nil
			}
			// The server ended the stream without a complete or error
			// frame; the turn must still finalize.
			t.Reducer.SetConnected(false)
			t.Reducer.Apply(event.NewError("stream ended without a terminal event"))
			return errors.New("chat stream: ended without a terminal event")
		}
		if err != nil {
			if ctx.Err() != nil {
				// User abort or supersession, ends the read loop quietly.
				t.Reducer.CancelTurn()
				return nil
			}
			t.Reducer.SetConnected(false)
			t.Reducer.Apply(event.NewError("connection lost: " + err.Error()))
			return fmt.Errorf("chat stream read: %w", err)
		}
	}
}

// Cancel aborts the in-flight call, if any, and waits for its read loop to
// finish so a subsequent Send never interleaves with it.
func (t *Transport) Cancel() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// LoadHistory fetches the stored event sequence for the current session and
// replays it through the reducer.
func (t *Transport) LoadHistory(ctx context.Context) error {
	sessionID := t.SessionID()
	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.BaseURL+"/api/v1/sessions/"+sessionID+"/history", nil)
	if err != nil {
		return err
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("load history: %s", resp.Status)
	}
	var out struct {
		Events []event.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, ev := range out.Events {
		t.Reducer.Apply(ev)
	}
	return nil
}

// encodeBody builds a JSON body, or a multipart form when attachments are
// present.
func encodeBody(message string, opts SendOptions) (io.Reader, string, error) {
	if len(opts.Attachments) == 0 {
		payload := map[string]any{"message": message}
		if len(opts.EnabledTools) > 0 {
			payload["enabled_tools"] = opts.EnabledTools
		}
		if opts.ModelID != "" {
			payload["model_id"] = opts.ModelID
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("message", message); err != nil {
		return nil, "", err
	}
	for _, tool := range opts.EnabledTools {
		if err := w.WriteField("enabled_tools", tool); err != nil {
			return nil, "", err
		}
	}
	if opts.ModelID != "" {
		if err := w.WriteField("model_id", opts.ModelID); err != nil {
			return nil, "", err
		}
	}
	for _, a := range opts.Attachments {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments"; filename=%q`, a.Name))
		if a.MediaType != "" {
			h.Set("Content-Type", a.MediaType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
