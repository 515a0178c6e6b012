// Package engine orchestrates the memory pipeline: ingestion, deletion,
// search, and answer generation over the store, vector index, embedder and
// generator.
package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/mementohq/memento-go/chunker"
	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/embedding"
	"github.com/mementohq/memento-go/generate"
	"github.com/mementohq/memento-go/index"
	"github.com/mementohq/memento-go/prompt"
	"github.com/mementohq/memento-go/store"
)

// Options tunes the engine's policy constants. Zero values fall back to the
// defaults below.
type Options struct {
	// SearchK is the default result count for Search and the retrieval
	// depth for Ask.
	SearchK int

	// ContextBudget bounds the assembled context in bytes.
	ContextBudget int

	// HistoryWindow is how many trailing conversation messages are
	// replayed to the generator.
	HistoryWindow int

	// MaxRetries bounds retries of model-unavailable failures.
	MaxRetries uint64

	// EmbedTimeout bounds each embedding call.
	EmbedTimeout time.Duration

	// Chunk overrides the chunker defaults.
	Chunk chunker.Options
}

const (
	defaultSearchK       = 10
	defaultHistoryWindow = 6
	defaultMaxRetries    = 3
	defaultEmbedTimeout  = 30 * time.Second
	retryInitialInterval = 200 * time.Millisecond

	// overFetchFactor widens the index query so that ranking has spare
	// candidates to promote past suppressed ones.
	overFetchFactor = 3
)

func (o Options) withDefaults() Options {
	if o.SearchK <= 0 {
		o.SearchK = defaultSearchK
	}
	if o.ContextBudget <= 0 {
		o.ContextBudget = prompt.DefaultBudget
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = defaultHistoryWindow
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = defaultEmbedTimeout
	}
	if o.Chunk.MaxSize <= 0 {
		o.Chunk = chunker.DefaultOptions()
	}
	return o
}

// Engine wires the pipeline components together. Safe for concurrent use.
type Engine struct {
	store     *store.Store
	index     index.Index
	embedder  embedding.Embedder
	generator generate.Generator
	opts      Options
}

// New creates an engine over the given components.
func New(st *store.Store, idx index.Index, emb embedding.Embedder, gen generate.Generator, opts Options) *Engine {
	return &Engine{
		store:     st,
		index:     idx,
		embedder:  emb,
		generator: gen,
		opts:      opts.withDefaults(),
	}
}

// Store exposes the persistence layer for read-only surfaces (listing
// conversations, popular searches).
func (e *Engine) Store() *store.Store {
	return e.store
}

// IngestRequest is one unit of content to ingest. Content must already be
// normalized text; modality extraction happens upstream.
type IngestRequest struct {
	OwnerID     string           `json:"owner_id"`
	ContentType core.ContentType `json:"content_type"`
	Content     string           `json:"content"`
	SourceRef   string           `json:"source_ref,omitempty"`
}

// Ingest chunks, embeds and indexes one memory. The memory becomes visible
// to search only after every chunk is indexed; on any failure after the
// initial insert the memory is marked failed and its index entries removed.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (core.Memory, error) {
	if req.OwnerID == "" {
		return core.Memory{}, core.Validationf("empty owner id")
	}
	if strings.TrimSpace(req.Content) == "" {
		return core.Memory{}, core.Validationf("empty content")
	}
	if !req.ContentType.Valid() {
		return core.Memory{}, core.Validationf("unknown content type %q", req.ContentType)
	}

	m := core.Memory{
		ID:          uuid.NewString(),
		OwnerID:     req.OwnerID,
		ContentType: req.ContentType,
		Content:     req.Content,
		SourceRef:   req.SourceRef,
		Status:      core.IngestPending,
		CreatedAt:   time.Now().UTC(),
	}

	pieces := chunker.Split(req.Content, e.opts.Chunk)
	chunks := make([]core.Chunk, len(pieces))
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		chunks[i] = core.Chunk{
			ID:       uuid.NewString(),
			MemoryID: m.ID,
			Index:    p.Index,
			Text:     p.Text,
		}
		texts[i] = p.Text
	}

	if err := e.store.InsertMemory(ctx, m, chunks); err != nil {
		return core.Memory{}, err
	}

	vectors, err := e.embedBatch(ctx, texts)
	if err != nil {
		e.failIngest(ctx, m)
		return core.Memory{}, err
	}

	for i, c := range chunks {
		entry := index.Entry{
			ChunkID:     c.ID,
			MemoryID:    m.ID,
			OwnerID:     m.OwnerID,
			ContentType: m.ContentType,
			Text:        c.Text,
			Vector:      vectors[i],
			CreatedAt:   m.CreatedAt,
		}
		if err := e.index.Upsert(ctx, entry); err != nil {
			e.failIngest(ctx, m)
			return core.Memory{}, err
		}
	}

	if err := e.store.SetMemoryStatus(ctx, m.ID, core.IngestReady); err != nil {
		e.failIngest(ctx, m)
		return core.Memory{}, err
	}
	m.Status = core.IngestReady
	log.Printf("[ENGINE] ingested memory %s (%d chunks) for %s", m.ID, len(chunks), m.OwnerID)
	return m, nil
}

// failIngest marks the memory failed and scrubs any index entries so a
// half-embedded memory is never searchable. Runs on a detached context so
// cleanup still happens when the caller's context is already dead.
func (e *Engine) failIngest(ctx context.Context, m core.Memory) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.index.DeleteMemory(cctx, m.OwnerID, m.ID); err != nil {
		log.Printf("[ENGINE] cleanup of memory %s index entries failed: %v", m.ID, err)
	}
	if err := e.store.SetMemoryStatus(cctx, m.ID, core.IngestFailed); err != nil {
		log.Printf("[ENGINE] marking memory %s failed: %v", m.ID, err)
	}
}

// DeleteMemory removes a memory, its chunks and its index entries. Index
// entries go first so a chunk never outlives its metadata in search.
func (e *Engine) DeleteMemory(ctx context.Context, ownerID, memoryID string) error {
	if _, err := e.store.GetMemory(ctx, ownerID, memoryID); err != nil {
		return err
	}
	if err := e.index.DeleteMemory(ctx, ownerID, memoryID); err != nil {
		return err
	}
	return e.store.DeleteMemory(ctx, ownerID, memoryID)
}

// GetMemory returns one of the owner's memories.
func (e *Engine) GetMemory(ctx context.Context, ownerID, memoryID string) (core.Memory, error) {
	return e.store.GetMemory(ctx, ownerID, memoryID)
}

// ListMemories returns the owner's memories, newest first.
func (e *Engine) ListMemories(ctx context.Context, ownerID string, limit int) ([]core.Memory, error) {
	return e.store.ListMemories(ctx, ownerID, limit)
}

// retry runs op with bounded exponential backoff. Only model-unavailable
// failures are retried; everything else aborts immediately.
func (e *Engine) retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, e.opts.MaxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, core.ErrModelUnavailable) {
			log.Printf("[ENGINE] model unavailable, retrying: %v", err)
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

func (e *Engine) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := e.retry(ctx, func() error {
		ectx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
		defer cancel()
		v, err := e.embedder.EmbedBatch(ectx, texts)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	return vectors, err
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var vector []float32
	err := e.retry(ctx, func() error {
		ectx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
		defer cancel()
		v, err := e.embedder.Embed(ectx, query)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	return vector, err
}
