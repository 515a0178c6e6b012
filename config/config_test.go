package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedder.Type != "openai" {
		t.Errorf("embedder type = %q, want openai", cfg.Embedder.Type)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
}

func TestLoadAppliesDefaultsToPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := []byte("embedder:\n  type: mock\nstorage:\n  db_path: /tmp/test.db\n")
	if err := os.WriteFile(path, partial, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedder.Type != "mock" {
		t.Errorf("embedder type = %q, want mock", cfg.Embedder.Type)
	}
	if cfg.Storage.DBPath != "/tmp/test.db" {
		t.Errorf("db_path = %q", cfg.Storage.DBPath)
	}
	if cfg.Generator.MaxTokens != 4096 {
		t.Errorf("max_tokens default not applied: %d", cfg.Generator.MaxTokens)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Engine.SearchK = 25
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Engine.SearchK != 25 {
		t.Errorf("search_k = %d, want 25", got.Engine.SearchK)
	}
}
