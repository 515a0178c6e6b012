package core

import "time"

// ContentType tags the modality a memory was ingested from. Extraction
// (OCR, PDF text, transcription) happens before ingestion; by the time
// content reaches this engine it is always normalized text.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypePDF   ContentType = "pdf"
	ContentTypeAudio ContentType = "audio"
)

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeImage, ContentTypePDF, ContentTypeAudio:
		return true
	}
	return false
}

// IngestStatus tracks per-memory ingestion progress. A memory is visible to
// search only once every chunk has been embedded and indexed.
type IngestStatus string

const (
	IngestPending IngestStatus = "pending"
	IngestReady   IngestStatus = "ready"
	IngestFailed  IngestStatus = "failed"
)

// Memory is one unit of ingested content. Immutable once created, except
// for deletion. Owned by exactly one user.
type Memory struct {
	ID          string
	OwnerID     string
	ContentType ContentType
	Content     string
	SourceRef   string // opaque reference to externally stored binary, may be empty
	Status      IngestStatus
	CreatedAt   time.Time
}

// Chunk is a bounded text span of a memory with its own embedding vector.
// Chunk order within a memory is contiguous starting at 0.
type Chunk struct {
	ID       string
	MemoryID string
	Index    int
	Text     string
}

// UserPreference holds a user's topic weights for ranking. Boost and
// suppress sets are disjoint: adding a topic to one side removes it from
// the other. Topics are stored case-normalized.
type UserPreference struct {
	OwnerID        string
	BoostTopics    []string
	SuppressTopics []string
	UpdatedAt      time.Time
}

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is an ordered sequence of messages owned by one user.
// UpdatedAt is bumped atomically with every appended message.
type Conversation struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one conversation turn. Immutable once persisted. Assistant
// messages record which chunks were cited.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CitedChunkIDs  []string
	CreatedAt      time.Time
}

// SearchEvent is one append-only record of a search query, kept for
// popularity aggregation. Never mutated.
type SearchEvent struct {
	ID        string
	OwnerID   string
	Query     string
	CreatedAt time.Time
}

// Candidate is one retrieval hit flowing from the vector index through
// ranking into context assembly.
type Candidate struct {
	ChunkID       string
	MemoryID      string
	ContentType   ContentType
	Text          string
	Similarity    float64
	AdjustedScore float64
	CreatedAt     time.Time // creation time of the owning memory, used for tie-breaks
}

// Source identifies a memory chunk cited in a generated answer.
type Source struct {
	MemoryID    string      `json:"memory_id"`
	ChunkID     string      `json:"chunk_id"`
	ContentType ContentType `json:"content_type"`
	Snippet     string      `json:"snippet"`
	Similarity  float64     `json:"similarity"`
}
