package embedding_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/mementohq/memento-go/embedding"
	"github.com/mementohq/memento-go/embedding/mock"
)

// countingEmbedder tracks provider calls around the mock embedder.
type countingEmbedder struct {
	inner embedding.Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func TestCacheSkipsProviderOnHit(t *testing.T) {
	ctx := context.Background()
	counting := &countingEmbedder{inner: mock.New(64)}

	cache, err := embedding.NewCache(counting, "test-model", 100)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	first, err := cache.Embed(ctx, "remember the milk")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	cache.Wait()

	second, err := cache.Embed(ctx, "remember the milk")
	if err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}

	if got := counting.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestCacheBatchForwardsOnlyMisses(t *testing.T) {
	ctx := context.Background()
	counting := &countingEmbedder{inner: mock.New(64)}

	cache, err := embedding.NewCache(counting, "test-model", 100)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if _, err := cache.Embed(ctx, "alpha"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	cache.Wait()
	counting.calls.Store(0)

	vectors, err := cache.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 64 {
			t.Errorf("vector %d has dimension %d, want 64", i, len(v))
		}
	}
	// One provider batch for beta+gamma; alpha served from cache.
	if got := counting.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}

	// Order preservation: alpha's vector must equal a direct embed.
	direct, _ := mock.New(64).Embed(ctx, "alpha")
	for i := range direct {
		if vectors[0][i] != direct[i] {
			t.Fatalf("batch result out of order at component %d", i)
		}
	}
}
