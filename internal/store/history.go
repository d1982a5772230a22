package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/event"
)

// HistoryLog records the event sequence of each session so a client can
// replay it on resumption. One newline-delimited JSON file per session.
type HistoryLog struct {
	root string
	mu   sync.Mutex
}

// NewHistoryLog creates the root directory if needed.
func NewHistoryLog(root string) (*HistoryLog, error) {
	if root == "" {
		return nil, errors.New("root directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create history root: %w", err)
	}
	return &HistoryLog{root: root}, nil
}

// Append adds one event to the session's log.
func (h *HistoryLog) Append(_ context.Context, userID, sessionID string, ev event.Event) error {
	p, err := h.path(userID, sessionID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(&ev)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Events returns the session's full event sequence in recorded order. A
// session with no history yields ErrNotFound.
func (h *HistoryLog) Events(_ context.Context, userID, sessionID string) ([]event.Event, error) {
	p, err := h.path(userID, sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()
	var out []event.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decode history line: %w", err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

func (h *HistoryLog) path(userID, sessionID string) (string, error) {
	for _, part := range []string{userID, sessionID} {
		if part == "" || strings.ContainsAny(part, "/\\") || strings.Contains(part, "..") {
			return "", fmt.Errorf("invalid session key %q", part)
		}
	}
	return filepath.Join(h.root, userID, sessionID+".ndjson"), nil
}
