package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("default port = %d", cfg.Port)
	}
	if cfg.Model.Provider != "openai" || cfg.Embed.Provider != "openai" {
		t.Fatalf("unexpected default providers: %q, %q", cfg.Model.Provider, cfg.Embed.Provider)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
port: 9000
dsn: postgres://localhost/companion
allow_origins:
  - https://app.example.com
model:
  provider: ollama
  name: llama3
recall:
  top_k: 4
  min_score: 0.25
summary:
  cadence: 6
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PORT", "9100")
	t.Setenv("ALLOW_ORIGIN", "https://a.example.com, https://b.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Environment wins over file.
	if cfg.Port != 9100 {
		t.Fatalf("port = %d, want env override 9100", cfg.Port)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[0] != "https://a.example.com" {
		t.Fatalf("origins = %v", cfg.AllowOrigins)
	}
	// File wins over defaults.
	if cfg.DSN != "postgres://localhost/companion" {
		t.Fatalf("dsn = %q", cfg.DSN)
	}
	if cfg.Model.Provider != "ollama" || cfg.Model.Name != "llama3" {
		t.Fatalf("model = %+v", cfg.Model)
	}
	if cfg.Recall.TopK != 4 || cfg.Recall.MinScore != 0.25 {
		t.Fatalf("recall = %+v", cfg.Recall)
	}
	if cfg.Summary.Cadence != 6 {
		t.Fatalf("summary = %+v", cfg.Summary)
	}
}
