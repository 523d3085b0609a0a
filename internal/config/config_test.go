package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("APIKeyEnv = %q, want OPENAI_API_KEY", cfg.Provider.APIKeyEnv)
	}
	if cfg.Chunker.TargetSize != 750 || cfg.Chunker.Overlap != 150 {
		t.Errorf("chunker defaults = %d/%d, want 750/150", cfg.Chunker.TargetSize, cfg.Chunker.Overlap)
	}
	if cfg.Query.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.Query.TopK)
	}
}

func TestLoadAppliesOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `provider:
  completion_model: gpt-4o
chunker:
  target_size: 500
query:
  top_k: 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.CompletionModel != "gpt-4o" {
		t.Errorf("CompletionModel = %q, want gpt-4o", cfg.Provider.CompletionModel)
	}
	if cfg.Chunker.TargetSize != 500 {
		t.Errorf("TargetSize = %d, want 500", cfg.Chunker.TargetSize)
	}
	if cfg.Chunker.Overlap != 150 {
		t.Errorf("Overlap default = %d, want 150", cfg.Chunker.Overlap)
	}
	if cfg.Query.TopK != 8 {
		t.Errorf("TopK = %d, want 8", cfg.Query.TopK)
	}
	if cfg.Provider.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel default missing: %q", cfg.Provider.EmbeddingModel)
	}
}
