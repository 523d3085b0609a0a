// Package config loads the application configuration from YAML, with
// environment variables (optionally from a .env file) supplying secrets.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderConfig configures the OpenAI-backed embedding and completion models.
type ProviderConfig struct {
	APIKeyEnv       string `yaml:"api_key_env"`
	EmbeddingModel  string `yaml:"embedding_model"`
	CompletionModel string `yaml:"completion_model"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	TargetSize int `yaml:"target_size"`
	Overlap    int `yaml:"overlap"`
}

// StorageConfig locates the on-disk stores.
type StorageConfig struct {
	RecordDB  string `yaml:"record_db"`
	IndexDB   string `yaml:"index_db"`
	Documents string `yaml:"documents_dir"`
}

// QueryConfig sets retrieval defaults.
type QueryConfig struct {
	TopK          int     `yaml:"top_k"`
	Temperature   float32 `yaml:"temperature"`
	IncludeGlobal bool    `yaml:"include_global"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Provider ProviderConfig `yaml:"provider"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Storage  StorageConfig  `yaml:"storage"`
	Query    QueryConfig    `yaml:"query"`
	LogLevel string         `yaml:"log_level"`
}

// Load reads a config from the given path. A missing file yields defaults.
func Load(path string) (*AppConfig, error) {
	// Secrets come from the environment; a local .env is a convenience.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./lexrag.yaml first, then ~/.config/lexrag/config.yaml,
// falling back to defaults when neither exists.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "lexrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err == nil {
		if _, statErr := os.Stat(userPath); statErr == nil {
			cfg, loadErr := Load(userPath)
			return cfg, userPath, loadErr
		}
	}
	cfg, err := Load(cwdPath) // missing file path: returns defaults
	return cfg, "", err
}

// APIKey resolves the provider API key from the configured environment
// variable.
func (c *AppConfig) APIKey() string {
	return os.Getenv(c.Provider.APIKeyEnv)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lexrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Provider.EmbeddingModel == "" {
		cfg.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Provider.CompletionModel == "" {
		cfg.Provider.CompletionModel = "gpt-4o-mini"
	}
	if cfg.Chunker.TargetSize == 0 {
		cfg.Chunker.TargetSize = 750
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 150
	}
	if cfg.Storage.RecordDB == "" {
		cfg.Storage.RecordDB = "lexrag.db"
	}
	if cfg.Storage.IndexDB == "" {
		cfg.Storage.IndexDB = "lexrag-index.db"
	}
	if cfg.Storage.Documents == "" {
		cfg.Storage.Documents = "documents"
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	if cfg.Query.Temperature == 0 {
		cfg.Query.Temperature = 0.3
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
