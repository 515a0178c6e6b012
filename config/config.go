// Package config loads the application configuration from YAML with
// sensible defaults and environment overrides for secrets.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EmbedderConfig selects and configures the embedder implementation.
type EmbedderConfig struct {
	// Type is "openai", "onnx" or "mock".
	Type   string               `yaml:"type"`
	OpenAI OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	ONNX   ONNXEmbedderConfig   `yaml:"onnx,omitempty"`

	// CacheEntries bounds the embedding cache; 0 disables it.
	CacheEntries int64 `yaml:"cache_entries"`
}

// OpenAIEmbedderConfig configures the OpenAI-compatible HTTP embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ONNXEmbedderConfig configures the local ONNX embedder (build tag "onnx").
type ONNXEmbedderConfig struct {
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`
	Dimensions    int    `yaml:"dimensions"`
}

// GeneratorConfig configures the answer generator.
type GeneratorConfig struct {
	// APIKeyEnv names the environment variable carrying the Anthropic key.
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// EngineConfig tunes the pipeline policy constants.
type EngineConfig struct {
	SearchK          int `yaml:"search_k"`
	ContextBudget    int `yaml:"context_budget"`
	HistoryWindow    int `yaml:"history_window"`
	MaxRetries       int `yaml:"max_retries"`
	ChunkMaxSize     int `yaml:"chunk_max_size"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	EmbedTimeoutSecs int `yaml:"embed_timeout_secs"`
}

// StorageConfig locates the durable state.
type StorageConfig struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// IndexDir persists the vector index; empty keeps it in memory.
	IndexDir string `yaml:"index_dir"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration.
type Config struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./memento.yaml, then ~/.config/memento/config.yaml,
// falling back to defaults when neither exists.
func LoadDefault() (*Config, string, error) {
	cwdPath := "memento.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	return Default(), "", nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// APIKey resolves the environment variable named by env.
func APIKey(env string) string {
	return os.Getenv(env)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "memento", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.OpenAI.BaseURL == "" {
		cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedder.OpenAI.APIKeyEnv == "" {
		cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.OpenAI.Model == "" {
		cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.OpenAI.Dimension == 0 {
		cfg.Embedder.OpenAI.Dimension = 1536
	}
	if cfg.Embedder.OpenAI.BatchSize == 0 {
		cfg.Embedder.OpenAI.BatchSize = 64
	}
	if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
		cfg.Embedder.OpenAI.TimeoutSecs = 30
	}
	if cfg.Embedder.ONNX.Dimensions == 0 {
		cfg.Embedder.ONNX.Dimensions = 384
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 4096
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "memento.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}
