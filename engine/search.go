package engine

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/rank"
	"github.com/mementohq/memento-go/store"
)

// SearchRequest is one search call. A nil ContentType matches all types.
type SearchRequest struct {
	OwnerID     string            `json:"owner_id"`
	Query       string            `json:"query"`
	K           int               `json:"k,omitempty"`
	ContentType *core.ContentType `json:"content_type,omitempty"`
}

// SearchResult is one ranked hit.
type SearchResult struct {
	MemoryID      string           `json:"memory_id"`
	ChunkID       string           `json:"chunk_id"`
	ContentType   core.ContentType `json:"content_type"`
	Snippet       string           `json:"snippet"`
	Similarity    float64          `json:"similarity"`
	AdjustedScore float64          `json:"adjusted_score"`
}

const snippetLen = 200

// Search embeds the query, retrieves nearest chunks for the owner, applies
// preference-weighted ranking and records a search event. Preferences are
// read once at the start; concurrent preference edits do not affect an
// in-flight search.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if req.OwnerID == "" {
		return nil, core.Validationf("empty owner id")
	}
	if query == "" {
		return nil, core.Validationf("empty query")
	}
	if req.ContentType != nil && !req.ContentType.Valid() {
		return nil, core.Validationf("unknown content type %q", *req.ContentType)
	}
	k := req.K
	if k <= 0 {
		k = e.opts.SearchK
	}

	prefs, err := e.store.GetPreferences(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	vector, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	// Over-fetch so ranking can reorder past suppressed candidates.
	candidates, err := e.index.Query(ctx, req.OwnerID, vector, k*overFetchFactor, req.ContentType)
	if err != nil {
		return nil, err
	}
	candidates, err = e.readyCandidates(ctx, req.OwnerID, candidates)
	if err != nil {
		return nil, err
	}
	ranked := rank.Rank(candidates, prefs)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	// The event log is best effort; a logging failure never fails the
	// search itself.
	if err := e.store.RecordSearchEvent(ctx, req.OwnerID, query); err != nil {
		log.Printf("[ENGINE] recording search event: %v", err)
	}

	results := make([]SearchResult, len(ranked))
	for i, c := range ranked {
		results[i] = SearchResult{
			MemoryID:      c.MemoryID,
			ChunkID:       c.ChunkID,
			ContentType:   c.ContentType,
			Snippet:       snippet(c.Text),
			Similarity:    c.Similarity,
			AdjustedScore: c.AdjustedScore,
		}
	}
	return results, nil
}

// PopularSearches returns the owner's most repeated queries.
func (e *Engine) PopularSearches(ctx context.Context, ownerID string, limit int) ([]store.QueryCount, error) {
	return e.store.PopularSearches(ctx, ownerID, limit)
}

// Preferences returns the owner's current preference sets.
func (e *Engine) Preferences(ctx context.Context, ownerID string) (core.UserPreference, error) {
	return e.store.GetPreferences(ctx, ownerID)
}

// AddBoost adds a topic to the owner's boost set.
func (e *Engine) AddBoost(ctx context.Context, ownerID, topic string) error {
	return e.store.AddBoost(ctx, ownerID, topic)
}

// RemoveBoost removes a topic from the owner's boost set.
func (e *Engine) RemoveBoost(ctx context.Context, ownerID, topic string) error {
	return e.store.RemoveBoost(ctx, ownerID, topic)
}

// AddSuppress adds a topic to the owner's suppress set.
func (e *Engine) AddSuppress(ctx context.Context, ownerID, topic string) error {
	return e.store.AddSuppress(ctx, ownerID, topic)
}

// RemoveSuppress removes a topic from the owner's suppress set.
func (e *Engine) RemoveSuppress(ctx context.Context, ownerID, topic string) error {
	return e.store.RemoveSuppress(ctx, ownerID, topic)
}

// ResetPreferences clears both preference sets.
func (e *Engine) ResetPreferences(ctx context.Context, ownerID string) error {
	return e.store.ResetPreferences(ctx, ownerID)
}

// readyCandidates drops candidates whose memory is not in ready status.
// The index is scrubbed when an ingest fails, but a failed scrub must not
// leave those chunks searchable; the store's status is authoritative.
func (e *Engine) readyCandidates(ctx context.Context, ownerID string, candidates []core.Candidate) ([]core.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	ids := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.MemoryID]; ok {
			continue
		}
		seen[c.MemoryID] = struct{}{}
		ids = append(ids, c.MemoryID)
	}

	ready, err := e.store.ReadyMemoryIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if _, ok := ready[c.MemoryID]; ok {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	keep := snippetLen
	for keep > 0 && !utf8.RuneStart(text[keep]) {
		keep--
	}
	return text[:keep]
}
