// Package cli implements the memento command line interface.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mementohq/memento-go/chunker"
	"github.com/mementohq/memento-go/config"
	"github.com/mementohq/memento-go/embedding"
	"github.com/mementohq/memento-go/engine"
	"github.com/mementohq/memento-go/generate/claude"
	"github.com/mementohq/memento-go/index"
	"github.com/mementohq/memento-go/index/chromem"
	"github.com/mementohq/memento-go/store"
)

var (
	configPath string
	ownerFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memento",
	Short: "Personal memory engine with retrieval-augmented answers",
	Long: "Memento ingests your notes, documents and transcripts, indexes them per user,\n" +
		"and answers questions about them with source-cited, streamed responses.",
}

func init() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: ./memento.yaml)")
	RootCmd.PersistentFlags().StringVarP(&ownerFlag, "owner", "o", "", "Owner id for the operation")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

func requireOwner() string {
	if ownerFlag == "" {
		exitErr("missing owner", fmt.Errorf("pass --owner or -o"))
	}
	return ownerFlag
}

// buildEngine assembles the full pipeline from config. The returned cleanup
// closes the store and index.
func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	var idx index.Index
	if cfg.Storage.IndexDir != "" {
		idx, err = chromem.NewPersistent(cfg.Storage.IndexDir)
	} else {
		idx, err = chromem.New()
	}
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("open index: %w", err)
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		st.Close()
		idx.Close()
		return nil, nil, err
	}
	if cfg.Embedder.CacheEntries > 0 {
		emb, err = embedding.NewCache(emb, cfg.Embedder.Type, cfg.Embedder.CacheEntries)
		if err != nil {
			st.Close()
			idx.Close()
			return nil, nil, fmt.Errorf("embedding cache: %w", err)
		}
	}

	client := anthropic.NewClient(option.WithAPIKey(config.APIKey(cfg.Generator.APIKeyEnv)))
	gen := claude.New(&client, cfg.Generator.Model, cfg.Generator.MaxTokens)

	e := engine.New(st, idx, emb, gen, engine.Options{
		SearchK:       cfg.Engine.SearchK,
		ContextBudget: cfg.Engine.ContextBudget,
		HistoryWindow: cfg.Engine.HistoryWindow,
		MaxRetries:    uint64(cfg.Engine.MaxRetries),
		EmbedTimeout:  time.Duration(cfg.Engine.EmbedTimeoutSecs) * time.Second,
		Chunk: chunker.Options{
			MaxSize: cfg.Engine.ChunkMaxSize,
			Overlap: cfg.Engine.ChunkOverlap,
		},
	})
	cleanup := func() {
		st.Close()
		idx.Close()
	}
	return e, cleanup, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
