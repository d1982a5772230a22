// Package store defines the durable session-store collaborator contract and
// two interchangeable implementations: a local JSON file store and a SQLite
// store. The implementation is selected once at process start.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrNotFound reports a missing (userID, sessionID) pair.
var ErrNotFound = errors.New("session not found")

// Session is one durable session record. Metadata is a free-form JSON object
// (browser-session pointer, latency/usage figures, tool preferences).
type Session struct {
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// SessionStore is the durable session collaborator. UpdateSession deep-merges
// the patch into the stored metadata without clobbering unrelated keys.
type SessionStore interface {
	GetSession(ctx context.Context, userID, sessionID string) (*Session, error)
	UpsertSession(ctx context.Context, userID, sessionID string, metadata map[string]any) error
	UpdateSession(ctx context.Context, userID, sessionID string, patch map[string]any) error
	Close() error
}

// MergeMetadata deep-merges patch into the stored metadata document. Nested
// maps merge key-by-key; scalars and arrays replace. Unrelated keys survive.
func MergeMetadata(doc json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	if len(doc) == 0 || !gjson.ValidBytes(doc) {
		doc = json.RawMessage("{}")
	}
	return mergeInto(doc, "", patch)
}

func mergeInto(doc json.RawMessage, prefix string, patch map[string]any) (json.RawMessage, error) {
	// Deterministic order keeps file/sqlite stores byte-comparable in tests.
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var err error
	for _, k := range keys {
		path := escapeKey(k)
		if prefix != "" {
			path = prefix + "." + path
		}
		if sub, ok := patch[k].(map[string]any); ok {
			if len(sub) == 0 && !gjson.GetBytes(doc, path).IsObject() {
				if doc, err = sjson.SetRawBytes(doc, path, []byte("{}")); err != nil {
					return nil, fmt.Errorf("merge %s: %w", path, err)
				}
				continue
			}
			if doc, err = mergeInto(doc, path, sub); err != nil {
				return nil, err
			}
			continue
		}
		if doc, err = sjson.SetBytes(doc, path, patch[k]); err != nil {
			return nil, fmt.Errorf("merge %s: %w", path, err)
		}
	}
	return doc, nil
}

// escapeKey escapes sjson path metacharacters in a metadata key.
func escapeKey(k string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`, `\`, `\\`)
	return r.Replace(k)
}
