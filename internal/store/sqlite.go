package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps sessions in a single sqlite database. The pure-Go driver
// is not safe for concurrent writers, so the pool is capped at one connection.
type SQLiteStore struct {
	db *sql.DB
}

var _ SessionStore = (*SQLiteStore)(nil)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (user_id, session_id)
);
`

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sessionsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close implements SessionStore.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// GetSession implements SessionStore.
func (s *SQLiteStore) GetSession(ctx context.Context, userID, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at, metadata FROM sessions WHERE user_id = ? AND session_id = ?`,
		userID, sessionID)
	var createdAt, updatedAt, metadata string
	if err := row.Scan(&createdAt, &updatedAt, &metadata); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	sess := &Session{UserID: userID, SessionID: sessionID, Metadata: json.RawMessage(metadata)}
	var err error
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return sess, nil
}

// UpsertSession implements SessionStore.
func (s *SQLiteStore) UpsertSession(ctx context.Context, userID, sessionID string, metadata map[string]any) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var current string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM sessions WHERE user_id = ? AND session_id = ?`,
		userID, sessionID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		merged, err := MergeMetadata(nil, metadata)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO sessions (user_id, session_id, created_at, updated_at, metadata) VALUES (?, ?, ?, ?, ?)`,
			userID, sessionID, now, now, string(merged))
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("query session: %w", err)
	}
	merged, err := MergeMetadata(json.RawMessage(current), metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ?, metadata = ? WHERE user_id = ? AND session_id = ?`,
		now, string(merged), userID, sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// UpdateSession implements SessionStore. The session must exist.
func (s *SQLiteStore) UpdateSession(ctx context.Context, userID, sessionID string, patch map[string]any) error {
	var current string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM sessions WHERE user_id = ? AND session_id = ?`,
		userID, sessionID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query session: %w", err)
	}
	merged, err := MergeMetadata(json.RawMessage(current), patch)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ?, metadata = ? WHERE user_id = ? AND session_id = ?`,
		now, string(merged), userID, sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}
