package server

import (
	"time"

	"github.com/mementohq/memento-go/core"
)

// Wire shapes for entities whose core structs carry no json tags.

type memoryView struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	SourceRef   string `json:"source_ref,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type conversationView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type messageView struct {
	ID            string   `json:"id"`
	Role          string   `json:"role"`
	Content       string   `json:"content"`
	CitedChunkIDs []string `json:"cited_chunk_ids,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

func memoryJSON(m core.Memory) memoryView {
	return memoryView{
		ID:          m.ID,
		ContentType: string(m.ContentType),
		Content:     m.Content,
		SourceRef:   m.SourceRef,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
}

func memoriesJSON(memories []core.Memory) []memoryView {
	out := make([]memoryView, len(memories))
	for i, m := range memories {
		out[i] = memoryJSON(m)
	}
	return out
}

func conversationJSON(c core.Conversation) conversationView {
	return conversationView{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func conversationsJSON(convs []core.Conversation) []conversationView {
	out := make([]conversationView, len(convs))
	for i, c := range convs {
		out[i] = conversationJSON(c)
	}
	return out
}

func messagesJSON(msgs []core.Message) []messageView {
	out := make([]messageView, len(msgs))
	for i, m := range msgs {
		out[i] = messageView{
			ID:            m.ID,
			Role:          string(m.Role),
			Content:       m.Content,
			CitedChunkIDs: m.CitedChunkIDs,
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}
