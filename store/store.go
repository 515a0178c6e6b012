// Package store persists memories, conversations, preferences and the
// search-event log in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath with WAL and foreign keys
// enabled. ":memory:" works for tests.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// newID returns a time-ordered ULID. Lexicographic order over message and
// event ids is append order.
func (s *Store) newID() string {
	return ulid.Make().String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		content_type TEXT NOT NULL,
		content      TEXT NOT NULL,
		source_ref   TEXT,
		status       TEXT NOT NULL DEFAULT 'pending',
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(owner_id, status);

	CREATE TABLE IF NOT EXISTS chunks (
		id        TEXT PRIMARY KEY,
		memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		idx       INTEGER NOT NULL,
		text      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_memory ON chunks(memory_id, idx);

	CREATE TABLE IF NOT EXISTS user_preferences (
		owner_id        TEXT PRIMARY KEY,
		boost_topics    TEXT NOT NULL DEFAULT '[]',
		suppress_topics TEXT NOT NULL DEFAULT '[]',
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		title      TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_id, updated_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		cited_chunk_ids TEXT,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

	CREATE TABLE IF NOT EXISTS search_events (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		query      TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_search_events_owner ON search_events(owner_id, created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const timeLayout = time.RFC3339Nano

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(timeLayout, v)
	return t
}
