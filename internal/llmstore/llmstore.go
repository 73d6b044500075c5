// Package llmstore persists language-model identifiers: assistant IDs
// keyed by assistant name and thread IDs keyed by conversation owner.
package llmstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS assistant (
    name TEXT PRIMARY KEY NOT NULL,
    assistant_id TEXT NOT NULL,
    created_at TEXT DEFAULT CURRENT_TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS thread (
    owner TEXT PRIMARY KEY NOT NULL,
    thread_id TEXT NOT NULL,
    created_at TEXT DEFAULT CURRENT_TIMESTAMP NOT NULL
);
`

// Store is a sqlite-backed lookup/upsert table for assistant and
// thread identifiers.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FindAssistant returns the stored assistant ID for name, or "" when
// none is stored.
func (s *Store) FindAssistant(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT assistant_id FROM assistant WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find assistant %q: %w", name, err)
	}
	return id, nil
}

// UpsertAssistant stores or replaces the assistant ID for name.
func (s *Store) UpsertAssistant(ctx context.Context, name, assistantID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assistant (name, assistant_id) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET assistant_id = excluded.assistant_id`,
		name, assistantID)
	if err != nil {
		return fmt.Errorf("upsert assistant %q: %w", name, err)
	}
	return nil
}

// FindThread returns the stored thread ID for owner, or "" when none
// is stored.
func (s *Store) FindThread(ctx context.Context, owner string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id FROM thread WHERE owner = ?`, owner).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find thread for %q: %w", owner, err)
	}
	return id, nil
}

// UpsertThread stores or replaces the thread ID for owner.
func (s *Store) UpsertThread(ctx context.Context, owner, threadID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thread (owner, thread_id) VALUES (?, ?)
		 ON CONFLICT(owner) DO UPDATE SET thread_id = excluded.thread_id`,
		owner, threadID)
	if err != nil {
		return fmt.Errorf("upsert thread for %q: %w", owner, err)
	}
	return nil
}
