// Package config loads service configuration from an optional YAML file
// with environment variable overrides. Environment wins over file, file
// wins over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Port the HTTP server listens on.
	Port int `yaml:"port"`

	// DSN selects the store backend by URL scheme: postgres:// or
	// postgresql:// for Postgres, mongodb:// for MongoDB. Empty keeps
	// everything in process memory.
	DSN string `yaml:"dsn"`

	// SchemaPath optionally overrides the built-in Postgres schema.
	SchemaPath string `yaml:"schema_path"`

	// AllowOrigins lists origins permitted for cross-site requests.
	AllowOrigins []string `yaml:"allow_origins"`

	// CookieSecure marks the identity cookie Secure.
	CookieSecure bool `yaml:"cookie_secure"`

	// RatePerMinute caps requests per client. Zero disables limiting.
	RatePerMinute int `yaml:"rate_per_minute"`

	Model ModelConfig `yaml:"model"`
	Embed EmbedConfig `yaml:"embed"`

	Recall  RecallConfig  `yaml:"recall"`
	Summary SummaryConfig `yaml:"summary"`

	// Persona overrides the default system persona when set.
	Persona string `yaml:"persona"`
}

type ModelConfig struct {
	// Provider is one of openai, ollama, anthropic, gemini, dummy.
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Name     string `yaml:"name"`

	// Headers are sent with every provider request, useful for gateway
	// attribution headers such as HTTP-Referer and X-Title.
	Headers map[string]string `yaml:"headers"`
}

type EmbedConfig struct {
	// Provider is one of openai, ollama, gemini, dummy.
	Provider string            `yaml:"provider"`
	BaseURL  string            `yaml:"base_url"`
	APIKey   string            `yaml:"api_key"`
	Name     string            `yaml:"name"`
	Headers  map[string]string `yaml:"headers"`
}

type RecallConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
	ScanCap  int     `yaml:"scan_cap"`
}

type SummaryConfig struct {
	Cadence int `yaml:"cadence"`
	Window  int `yaml:"window"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Port:          8080,
		RatePerMinute: 60,
		Model: ModelConfig{
			Provider: "openai",
			Name:     "gpt-4o-mini",
		},
		Embed: EmbedConfig{
			Provider: "openai",
			Name:     "text-embedding-3-small",
		},
	}
}

// Load reads path when it is non-empty and the file exists, then applies
// environment overrides. A missing explicit path is an error; an empty
// path just means defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("DSN"); v != "" {
		c.DSN = v
	}
	if v := os.Getenv("ALLOW_ORIGIN"); v != "" {
		c.AllowOrigins = splitOrigins(v)
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		c.CookieSecure = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RatePerMinute = n
		}
	}

	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		c.Model.Provider = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Model.BaseURL = v
		if c.Embed.BaseURL == "" {
			c.Embed.BaseURL = v
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Model.APIKey == "" {
			c.Model.APIKey = v
		}
		if c.Embed.APIKey == "" {
			c.Embed.APIKey = v
		}
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("EMBED_PROVIDER"); v != "" {
		c.Embed.Provider = v
	}
	if v := os.Getenv("OPENAI_EMBED_MODEL"); v != "" {
		c.Embed.Name = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && strings.EqualFold(c.Model.Provider, "anthropic") {
		c.Model.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if strings.EqualFold(c.Model.Provider, "gemini") {
			c.Model.APIKey = v
		}
		if strings.EqualFold(c.Embed.Provider, "gemini") {
			c.Embed.APIKey = v
		}
	}
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
