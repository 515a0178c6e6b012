// Package embedding converts text to fixed-dimensionality vectors.
//
// The inference call itself is a black box behind the Embedder interface.
// Implementations:
//   - embedding/openai: OpenAI-compatible HTTP API (batched)
//   - embedding/onnx:   local all-MiniLM-L6-v2 via ONNX Runtime (build tag "onnx")
//   - embedding/mock:   deterministic hash-based vectors for tests
package embedding

import "context"

// Embedder converts text to vector embeddings. Every vector returned by one
// Embedder has the same dimensionality, and identical input yields an
// identical vector.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts in one provider call where the
	// backend supports it. Output is order-preserving: vector i embeds
	// texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// BatchSerial implements EmbedBatch as a loop over Embed, for backends
// without a native batch endpoint.
func BatchSerial(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}
