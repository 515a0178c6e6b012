// Package chromem backs the vector index with chromem-go, a pure Go
// embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/index"
)

// Store implements index.Index on chromem-go. Each owner gets a dedicated
// collection, so owner isolation holds at the storage level rather than as
// a query-time filter.
type Store struct {
	db          *chromemgo.DB
	collections map[string]*chromemgo.Collection
	mu          sync.RWMutex
}

// New creates an in-memory store.
func New() (*Store, error) {
	return &Store{
		db:          chromemgo.NewDB(),
		collections: make(map[string]*chromemgo.Collection),
	}, nil
}

// NewPersistent creates a store persisted under dir.
func NewPersistent(dir string) (*Store, error) {
	db, err := chromemgo.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open persistent db: %w", err)
	}
	s := &Store{
		db:          db,
		collections: make(map[string]*chromemgo.Collection),
	}
	for name, col := range db.ListCollections() {
		s.collections[ownerFromCollection(name)] = col
	}
	return s, nil
}

const collectionPrefix = "owner_"

func ownerFromCollection(name string) string {
	if len(name) > len(collectionPrefix) {
		return name[len(collectionPrefix):]
	}
	return name
}

func (s *Store) collection(ownerID string, create bool) (*chromemgo.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[ownerID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}
	if !create {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[ownerID]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection(collectionPrefix+ownerID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[ownerID] = col
	return col, nil
}

// Upsert adds or replaces one chunk entry. The document carries the full
// vector and metadata in a single AddDocument call, so queries never see a
// partially written chunk.
func (s *Store) Upsert(ctx context.Context, e index.Entry) error {
	if e.OwnerID == "" || e.ChunkID == "" || e.MemoryID == "" {
		return fmt.Errorf("upsert: missing identity fields")
	}
	col, err := s.collection(e.OwnerID, true)
	if err != nil {
		return err
	}

	doc := chromemgo.Document{
		ID:        e.ChunkID,
		Content:   e.Text,
		Embedding: e.Vector,
		Metadata: map[string]string{
			"memory_id":    e.MemoryID,
			"owner_id":     e.OwnerID,
			"content_type": string(e.ContentType),
			"created_at":   e.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// DeleteMemory removes all chunks of the memory from the owner's collection.
func (s *Store) DeleteMemory(ctx context.Context, ownerID, memoryID string) error {
	col, err := s.collection(ownerID, false)
	if err != nil || col == nil {
		return err
	}
	if err := col.Delete(ctx, map[string]string{"memory_id": memoryID}, nil); err != nil {
		return fmt.Errorf("delete memory %s: %w", memoryID, err)
	}
	return nil
}

// Query returns the owner's k most similar chunks, re-sorted with the
// deterministic tie-break.
func (s *Store) Query(ctx context.Context, ownerID string, vector []float32, k int, contentType *core.ContentType) ([]core.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("query: k must be positive, got %d", k)
	}
	col, err := s.collection(ownerID, false)
	if err != nil {
		return nil, err
	}
	if col == nil || col.Count() == 0 {
		return nil, nil
	}

	// chromem rejects nResults larger than the stored document count.
	n := k
	if count := col.Count(); n > count {
		n = count
	}

	where := map[string]string{"owner_id": ownerID}
	if contentType != nil {
		where["content_type"] = string(*contentType)
	}

	// A content-type filter can shrink the candidate set below n, which
	// chromem reports as an nResults error; retry with smaller limits.
	var results []chromemgo.Result
	for ; n >= 1; n-- {
		results, err = col.QueryEmbedding(ctx, vector, n, where, nil)
		if err == nil {
			break
		}
		if !isTooFewDocsError(err) {
			return nil, fmt.Errorf("query embedding: %w", err)
		}
		if n == 1 {
			return nil, nil
		}
	}

	candidates := make([]core.Candidate, 0, len(results))
	for _, r := range results {
		createdAt, err := time.Parse(time.RFC3339Nano, r.Metadata["created_at"])
		if err != nil {
			log.Printf("[INDEX] skipping %s: bad created_at %q", r.ID, r.Metadata["created_at"])
			continue
		}
		candidates = append(candidates, core.Candidate{
			ChunkID:     r.ID,
			MemoryID:    r.Metadata["memory_id"],
			ContentType: core.ContentType(r.Metadata["content_type"]),
			Text:        r.Content,
			Similarity:  clamp(float64(r.Similarity)),
			CreatedAt:   createdAt,
		})
	}

	index.SortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Close releases resources. chromem keeps state in process memory (or
// already flushed to disk for the persistent variant).
func (s *Store) Close() error {
	return nil
}

func isTooFewDocsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "nResults")
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
