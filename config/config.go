// Package config loads the tempblock configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/larose/tempblock/codec/tempblock"
)

const FileName = "tempblock.yaml"

type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Serve   ServeConfig   `yaml:"serve"`
	Logging LoggingConfig `yaml:"logging"`
}

type IndexConfig struct {
	Directory         string `yaml:"directory"`
	TermIndexInterval int    `yaml:"term_index_interval"`
	// BatchSize is the number of documents flushed per segment.
	BatchSize int `yaml:"batch_size"`
}

type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Workers  int      `yaml:"workers"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Directory:         "index",
			TermIndexInterval: tempblock.DefaultTermIndexInterval,
			BatchSize:         10000,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.jsonl"},
			Workers:  4,
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// LoadFromDir loads tempblock.yaml from dir.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TEMPBLOCK_INDEX_DIRECTORY"); v != "" {
		c.Index.Directory = v
	}
	if v := os.Getenv("TEMPBLOCK_TERM_INDEX_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TEMPBLOCK_TERM_INDEX_INTERVAL: %w", err)
		}
		c.Index.TermIndexInterval = n
	}
	if v := os.Getenv("TEMPBLOCK_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TEMPBLOCK_BATCH_SIZE: %w", err)
		}
		c.Index.BatchSize = n
	}
	if v := os.Getenv("TEMPBLOCK_INGEST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TEMPBLOCK_INGEST_WORKERS: %w", err)
		}
		c.Ingest.Workers = n
	}
	if v := os.Getenv("TEMPBLOCK_SERVE_ADDR"); v != "" {
		c.Serve.Addr = v
	}
	if v := os.Getenv("TEMPBLOCK_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("TEMPBLOCK_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Index.Directory == "" {
		return fmt.Errorf("index.directory must not be empty")
	}
	if c.Index.TermIndexInterval < 1 {
		return fmt.Errorf("index.term_index_interval must be >= 1, got %d", c.Index.TermIndexInterval)
	}
	if c.Index.BatchSize < 1 {
		return fmt.Errorf("index.batch_size must be >= 1, got %d", c.Index.BatchSize)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be >= 1, got %d", c.Ingest.Workers)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
