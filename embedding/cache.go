package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"

	"github.com/dgraph-io/ristretto"
)

const vectorCost = 4 // bytes per float32, used as ristretto cost unit

// Cache wraps an Embedder with a ristretto-backed LRU so repeated embeds of
// identical text (re-ingested notes, repeated queries) skip the provider.
type Cache struct {
	inner Embedder
	model string
	cache *ristretto.Cache
}

// NewCache wraps inner with a cache of roughly maxEntries vectors. The model
// name is part of the key so switching models never serves stale vectors.
func NewCache(inner Embedder, model string, maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	maxCost := maxEntries * int64(inner.Dimensions()) * vectorCost

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Cache{inner: inner, model: model, cache: c}, nil
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.model + ":" + hex.EncodeToString(sum[:])
}

// Embed returns the cached vector when present, otherwise embeds and caches.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if v, ok := c.cache.Get(key); ok {
		return v.([]float32), nil
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vector, int64(len(vector))*vectorCost)
	return vector, nil
}

// EmbedBatch serves cached entries and forwards only the misses to the
// inner embedder in a single batch call.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(c.key(text)); ok {
			vectors[i] = v.([]float32)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}
	log.Printf("[EMBED] cache: %d hits, %d misses", len(texts)-len(missTexts), len(missTexts))

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		vectors[i] = fresh[j]
		c.cache.Set(c.key(missTexts[j]), fresh[j], int64(len(fresh[j]))*vectorCost)
	}

	return vectors, nil
}

// Dimensions returns the inner embedder's vector size.
func (c *Cache) Dimensions() int {
	return c.inner.Dimensions()
}

// Wait blocks until buffered cache writes are applied. Test helper.
func (c *Cache) Wait() {
	c.cache.Wait()
}
