// Package config loads server configuration from a YAML file with
// environment-variable overrides. Unset fields keep their defaults, so
// a minimal file (or none at all) yields a working local setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted after the file is read
const (
	EnvConfigPath = "GORETRIEVE_CONFIG"
	EnvDBPath     = "GORETRIEVE_DB_PATH"
)

// Config is the full server configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Learner    LearnerConfig    `yaml:"learner"`
}

// DatabaseConfig locates the snapshot database
type DatabaseConfig struct {
	// Path to the SQLite snapshot database file. Empty selects
	// ~/.goretrieve/snapshots.db.
	Path string `yaml:"path"`
}

// EmbeddingConfig selects the query-embedding provider
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // jina, openai, local; empty auto-detects
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	CacheSize int    `yaml:"cache_size"`
}

// GenerationConfig selects the text-generation endpoint used for
// classification, enhancement, and reranking. Disabled, the pipeline
// runs rules-only and skips the generator-backed stages.
type GenerationConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// RetrievalConfig tunes the pipeline
type RetrievalConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	StrategyLimit  int    `yaml:"strategy_limit"`
	CacheSize      int    `yaml:"cache_size"`
	BiasMode       string `yaml:"bias_mode"` // alternating or bookends
	SelfCheck      bool   `yaml:"self_check"`
	RerankEnabled  bool   `yaml:"rerank_enabled"`
	RerankTopN     int    `yaml:"rerank_top_n"`
}

// LearnerConfig tunes adaptive weight learning
type LearnerConfig struct {
	Enabled              bool `yaml:"enabled"`
	QueueSize            int  `yaml:"queue_size"`
	FlushIntervalSeconds int  `yaml:"flush_interval_seconds"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
		},
		Retrieval: RetrievalConfig{
			TimeoutSeconds: 30,
			StrategyLimit:  20,
			CacheSize:      128,
			BiasMode:       "alternating",
			SelfCheck:      true,
			RerankTopN:     10,
		},
		Learner: LearnerConfig{
			Enabled:              true,
			QueueSize:            256,
			FlushIntervalSeconds: 60,
		},
	}
}

// Load reads configuration from path, layered defaults first, then the
// file, then environment overrides. An empty path checks
// GORETRIEVE_CONFIG and falls back to defaults when neither names a
// file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
}

func (c *Config) validate() error {
	if c.Retrieval.TimeoutSeconds <= 0 {
		return fmt.Errorf("retrieval.timeout_seconds must be positive, got %d", c.Retrieval.TimeoutSeconds)
	}
	switch c.Retrieval.BiasMode {
	case "alternating", "bookends":
	default:
		return fmt.Errorf("retrieval.bias_mode must be alternating or bookends, got %q", c.Retrieval.BiasMode)
	}
	return nil
}

// DatabasePath resolves the snapshot database location, expanding the
// home-directory default when unset.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".goretrieve", "snapshots.db"), nil
}
