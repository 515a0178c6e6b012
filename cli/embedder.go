//go:build !onnx

package cli

import (
	"fmt"
	"time"

	"github.com/mementohq/memento-go/config"
	"github.com/mementohq/memento-go/embedding"
	"github.com/mementohq/memento-go/embedding/mock"
	"github.com/mementohq/memento-go/embedding/openai"
)

func buildEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "openai":
		return openai.New(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKey:    config.APIKey(cfg.Embedder.OpenAI.APIKeyEnv),
			Model:     cfg.Embedder.OpenAI.Model,
			Dimension: cfg.Embedder.OpenAI.Dimension,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		}), nil
	case "mock":
		return mock.New(cfg.Embedder.ONNX.Dimensions), nil
	case "onnx":
		return nil, fmt.Errorf("onnx embedder requires building with -tags onnx")
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}
