package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore persists sessions as one JSON document per session under
// root/<userID>/<sessionID>.json. Suitable for local development; writes are
// atomic (temp file + rename).
type FileStore struct {
	root string
	mu   sync.Mutex
}

var _ SessionStore = (*FileStore)(nil)

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("root directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Close implements SessionStore.
func (s *FileStore) Close() error { return nil }

// GetSession implements SessionStore.
func (s *FileStore) GetSession(_ context.Context, userID, sessionID string) (*Session, error) {
	p, err := s.path(userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", p, err)
	}
	return &sess, nil
}

// UpsertSession implements SessionStore. Creates the record when absent and
// deep-merges metadata when present.
func (s *FileStore) UpsertSession(_ context.Context, userID, sessionID string, metadata map[string]any) error {
	p, err := s.path(userID, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	sess := Session{UserID: userID, SessionID: sessionID, CreatedAt: now}
	if data, err := os.ReadFile(p); err == nil {
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("decode session %s: %w", p, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read session: %w", err)
	}
	if len(metadata) > 0 {
		merged, err := MergeMetadata(sess.Metadata, metadata)
		if err != nil {
			return err
		}
		sess.Metadata = merged
	}
	sess.UpdatedAt = now
	return s.write(p, &sess)
}

// UpdateSession implements SessionStore. The session must exist.
func (s *FileStore) UpdateSession(_ context.Context, userID, sessionID string, patch map[string]any) error {
	p, err := s.path(userID, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return fmt.Errorf("decode session %s: %w", p, err)
	}
	merged, err := MergeMetadata(sess.Metadata, patch)
	if err != nil {
		return err
	}
	sess.Metadata = merged
	sess.UpdatedAt = time.Now().UTC()
	return s.write(p, &sess)
}

// write performs an atomic replace so readers never observe a torn document.
func (s *FileStore) write(p string, sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, p)
}

// path validates the key components so they cannot escape the store root.
func (s *FileStore) path(userID, sessionID string) (string, error) {
	for _, part := range []string{userID, sessionID} {
		if part == "" || strings.ContainsAny(part, "/\\") || strings.Contains(part, "..") {
			return "", fmt.Errorf("invalid session key %q", part)
		}
	}
	return filepath.Join(s.root, userID, sessionID+".json"), nil
}
