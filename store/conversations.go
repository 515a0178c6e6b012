package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mementohq/memento-go/core"
)

// CreateConversation opens a new empty conversation for the owner.
func (s *Store) CreateConversation(ctx context.Context, ownerID, title string) (core.Conversation, error) {
	if ownerID == "" {
		return core.Conversation{}, core.Validationf("empty owner id")
	}
	conv := core.Conversation{
		ID:      s.newID(),
		OwnerID: ownerID,
		Title:   title,
	}
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.OwnerID, conv.Title, ts, ts)
	if err != nil {
		return core.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	conv.CreatedAt = parseTime(ts)
	conv.UpdatedAt = conv.CreatedAt
	return conv, nil
}

// GetConversation returns an owner's conversation. A conversation belonging
// to a different owner is reported as not found.
func (s *Store) GetConversation(ctx context.Context, ownerID, id string) (core.Conversation, error) {
	var conv core.Conversation
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, created_at, updated_at FROM conversations WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&conv.ID, &conv.OwnerID, &conv.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return conv, core.NotFoundf("conversation %s", id)
	}
	if err != nil {
		return conv, err
	}
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)
	return conv, nil
}

// ListConversations returns the owner's conversations, most recently
// active first.
func (s *Store) ListConversations(ctx context.Context, ownerID string) ([]core.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, created_at, updated_at FROM conversations
		 WHERE owner_id = ? ORDER BY updated_at DESC, id DESC`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []core.Conversation
	for rows.Next() {
		var conv core.Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		conv.CreatedAt = parseTime(createdAt)
		conv.UpdatedAt = parseTime(updatedAt)
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// SetConversationTitle updates a conversation's title without touching its
// activity timestamp.
func (s *Store) SetConversationTitle(ctx context.Context, ownerID, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE id = ? AND owner_id = ?`,
		title, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundf("conversation %s", id)
	}
	return nil
}

// AppendMessage appends a message to an owner's conversation and bumps the
// conversation's updated_at in the same transaction.
func (s *Store) AppendMessage(ctx context.Context, ownerID string, msg core.Message) (core.Message, error) {
	if msg.ConversationID == "" {
		return core.Message{}, core.Validationf("empty conversation id")
	}
	if msg.Role != core.RoleUser && msg.Role != core.RoleAssistant {
		return core.Message{}, core.Validationf("invalid role %q", msg.Role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Message{}, err
	}
	defer tx.Rollback()

	ts := now()
	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ? AND owner_id = ?`,
		ts, msg.ConversationID, ownerID)
	if err != nil {
		return core.Message{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Message{}, core.NotFoundf("conversation %s", msg.ConversationID)
	}

	msg.ID = s.newID()
	cited, _ := json.Marshal(msg.CitedChunkIDs)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, cited_chunk_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(cited), ts)
	if err != nil {
		return core.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Message{}, err
	}
	msg.CreatedAt = parseTime(ts)
	return msg, nil
}

// Messages returns a conversation's messages in append order.
func (s *Store) Messages(ctx context.Context, ownerID, conversationID string) ([]core.Message, error) {
	// Existence and ownership check first so an empty conversation is
	// distinguishable from a missing one.
	if _, err := s.GetConversation(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, cited_chunk_ids, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []core.Message
	for rows.Next() {
		var msg core.Message
		var role, cited, createdAt string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &cited, &createdAt); err != nil {
			return nil, err
		}
		msg.Role = core.Role(role)
		if cited != "" {
			if err := json.Unmarshal([]byte(cited), &msg.CitedChunkIDs); err != nil {
				return nil, fmt.Errorf("decode citations: %w", err)
			}
		}
		msg.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
