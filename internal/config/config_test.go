package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.DataDir != ".finsight" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if len(cfg.Metrics) == 0 {
		t.Error("default metrics are empty")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".finsight.yml")
	yaml := `provider: ollama
model: llama3
embedding_provider: ollama
embedding_model: nomic-embed-text
top_k: 8
server:
  port: 9999
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != ProviderOllama || cfg.Model != "llama3" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.TopK != 8 {
		t.Errorf("TopK = %d", cfg.TopK)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	// Fields absent from the file keep their defaults.
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want default 3", cfg.MaxAttempts)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".finsight.yml")
	if err := os.WriteFile(path, []byte("model: gpt-4o-mini\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("FINSIGHT_MODEL", "gpt-4o")
	t.Setenv("FINSIGHT_DATA_DIR", "/tmp/override")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("Model = %q, want env override", cfg.Model)
	}
	if cfg.DataDir != "/tmp/override" {
		t.Errorf("DataDir = %q, want env override", cfg.DataDir)
	}
}

func TestLoadEnvNestedKey(t *testing.T) {
	t.Setenv("FINSIGHT_SERVER__PORT", "7777")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override", cfg.Server.Port)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".finsight.yml")

	cfg := DefaultConfig()
	cfg.Model = "gpt-4o"
	cfg.Metrics = []string{"Total Revenue"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Model != "gpt-4o" {
		t.Errorf("Model = %q", loaded.Model)
	}
	if len(loaded.Metrics) != 1 || loaded.Metrics[0] != "Total Revenue" {
		t.Errorf("Metrics = %v", loaded.Metrics)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"missing provider", func(c *Config) { c.Provider = "" }, true},
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }, true},
		{"missing model", func(c *Config) { c.Model = "" }, true},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, true},
		{"missing data dir", func(c *Config) { c.DataDir = "" }, true},
		{"zero top_k", func(c *Config) { c.TopK = 0 }, true},
		{"temperature out of range", func(c *Config) { c.Temperature = 3.5 }, true},
		{"empty embedding provider falls back", func(c *Config) { c.EmbeddingProvider = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	if got := APIKeyEnvVar(ProviderOpenAI); got != "OPENAI_API_KEY" {
		t.Errorf("openai = %q", got)
	}
	if got := APIKeyEnvVar(ProviderOllama); got != "" {
		t.Errorf("ollama = %q, want empty", got)
	}
}
