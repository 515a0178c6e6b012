// Package index defines the vector index boundary: chunk vectors keyed by
// memory and chunk identity, queried by owner-scoped nearest neighbor.
package index

import (
	"context"
	"sort"
	"time"

	"github.com/mementohq/memento-go/core"
)

// Entry is one chunk vector with the metadata needed at query time.
type Entry struct {
	ChunkID     string
	MemoryID    string
	OwnerID     string
	ContentType core.ContentType
	Text        string
	Vector      []float32
	CreatedAt   time.Time
}

// Index stores chunk vectors and answers similarity queries. Results are
// always filtered to the requesting owner; cross-owner leakage is a
// correctness violation. Implementations must never expose a half-written
// entry: an entry becomes queryable in one atomic upsert.
type Index interface {
	// Upsert inserts or replaces one chunk entry.
	Upsert(ctx context.Context, entry Entry) error

	// DeleteMemory removes every chunk belonging to the memory.
	DeleteMemory(ctx context.Context, ownerID, memoryID string) error

	// Query returns up to k candidates for the owner ordered by cosine
	// similarity, most similar first. A nil contentType matches all types.
	// Fewer than k stored candidates returns all available, never padded.
	Query(ctx context.Context, ownerID string, vector []float32, k int, contentType *core.ContentType) ([]core.Candidate, error)

	// Close releases resources.
	Close() error
}

// SortCandidates orders candidates by similarity descending with the
// deterministic tie-break: newer memory first, then chunk id ascending.
func SortCandidates(candidates []core.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ChunkID < b.ChunkID
	})
}
