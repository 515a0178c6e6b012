package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mementohq/memento-go/core"
)

// InsertMemory persists a memory and its chunks in one transaction. The
// memory starts in the status carried on m (normally IngestPending) and is
// invisible to search until marked ready.
func (s *Store) InsertMemory(ctx context.Context, m core.Memory, chunks []core.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, owner_id, content_type, content, source_ref, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OwnerID, string(m.ContentType), m.Content, nullable(m.SourceRef),
		string(m.Status), m.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	for _, c := range chunks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, memory_id, idx, text) VALUES (?, ?, ?, ?)`,
			c.ID, c.MemoryID, c.Index, c.Text)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

// SetMemoryStatus transitions a memory's ingest status.
func (s *Store) SetMemoryStatus(ctx context.Context, memoryID string, status core.IngestStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET status = ? WHERE id = ?`, string(status), memoryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundf("memory %s", memoryID)
	}
	return nil
}

// GetMemory returns the owner's memory. A memory owned by someone else is
// reported as not found, never as a permission error.
func (s *Store) GetMemory(ctx context.Context, ownerID, memoryID string) (core.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, content_type, content, source_ref, status, created_at
		 FROM memories WHERE id = ? AND owner_id = ?`, memoryID, ownerID)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Memory{}, core.NotFoundf("memory %s", memoryID)
	}
	return m, err
}

// ListMemories returns the owner's memories, newest first.
func (s *Store) ListMemories(ctx context.Context, ownerID string, limit int) ([]core.Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, content_type, content, source_ref, status, created_at
		 FROM memories WHERE owner_id = ?
		 ORDER BY created_at DESC, id LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []core.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// DeleteMemory removes the memory and, via cascade, its chunks. Vector
// index cleanup is the engine's responsibility and happens first.
func (s *Store) DeleteMemory(ctx context.Context, ownerID, memoryID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE id = ? AND owner_id = ?`, memoryID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundf("memory %s", memoryID)
	}
	return nil
}

// ReadyMemoryIDs reports which of the given memory ids belong to the owner
// and are in ready status. Search uses it to drop chunks of failed or
// pending memories that may still linger in the vector index.
func (s *Store) ReadyMemoryIDs(ctx context.Context, ownerID string, ids []string) (map[string]struct{}, error) {
	ready := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return ready, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM memories WHERE owner_id = ? AND status = 'ready' AND id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ready[id] = struct{}{}
	}
	return ready, rows.Err()
}

// Chunks returns a memory's chunks in index order.
func (s *Store) Chunks(ctx context.Context, memoryID string) ([]core.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, memory_id, idx, text FROM chunks WHERE memory_id = ? ORDER BY idx`, memoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []core.Chunk
	for rows.Next() {
		var c core.Chunk
		if err := rows.Scan(&c.ID, &c.MemoryID, &c.Index, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (core.Memory, error) {
	var m core.Memory
	var contentType, status, createdAt string
	var sourceRef sql.NullString

	err := row.Scan(&m.ID, &m.OwnerID, &contentType, &m.Content, &sourceRef, &status, &createdAt)
	if err != nil {
		return m, err
	}
	m.ContentType = core.ContentType(contentType)
	m.Status = core.IngestStatus(status)
	m.CreatedAt = parseTime(createdAt)
	if sourceRef.Valid {
		m.SourceRef = sourceRef.String
	}
	return m, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
