// Package config provides configuration loading and management for codeclass.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/codeclass/internal/hgnn"
)

// Config represents the complete codeclass configuration
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Encode  EncodeConfig  `yaml:"encode"`
	Vocab   VocabConfig   `yaml:"vocab"`
	Cache   CacheConfig   `yaml:"cache"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ModelConfig configures the network architecture used by "model init"
type ModelConfig struct {
	EmbedSize int `yaml:"embed_size"`
	DimSize   int `yaml:"dim_size"`
	NumLayers int `yaml:"num_layers"`
	EdgeHeads int `yaml:"edge_heads"`
	NodeHeads int `yaml:"node_heads"`
	PoolHeads int `yaml:"pool_heads"`
	// Hidden lists the widths of the classifier's hidden layers
	Hidden  []int   `yaml:"hidden"`
	Dropout float64 `yaml:"dropout"`
	// HeadsInEdgeUpdate lets head incidences take part in the edge update
	HeadsInEdgeUpdate bool `yaml:"heads_in_edge_update"`
	// Seed makes parameter initialization reproducible
	Seed uint64 `yaml:"seed"`
}

// EncodeConfig bounds the work done per source file
type EncodeConfig struct {
	// MaxFileSize skips files larger than this many bytes (0 = unlimited)
	MaxFileSize int64 `yaml:"max_file_size"`
	// MaxDepth fails files whose syntax tree is deeper than this (0 = unlimited)
	MaxDepth int `yaml:"max_depth"`
	// MaxNodes fails files whose graph has more nodes than this (0 = unlimited)
	MaxNodes int `yaml:"max_nodes"`
	// Workers is the number of files encoded concurrently (0 = number of CPUs)
	Workers int `yaml:"workers"`
	// Timeout is the time allowed for parsing and encoding one file. Go
	// parsing is not interrupted; encoding stops at the deadline
	Timeout time.Duration `yaml:"timeout"`
	// Languages restricts discovery to these languages (empty = all)
	Languages []string `yaml:"languages"`
}

// VocabConfig configures vocabulary building
type VocabConfig struct {
	// MinFreq drops features seen fewer times than this
	MinFreq int `yaml:"min_freq"`
}

// CacheConfig configures the encoded-graph cache
type CacheConfig struct {
	// Path is the SQLite database file (empty = no cache)
	Path string `yaml:"path"`
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	// Textfile is written in Prometheus text format on exit (empty = disabled)
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	arch := hgnn.DefaultConfig()
	return &Config{
		Model: ModelConfig{
			EmbedSize: arch.EmbedSize,
			DimSize:   arch.DimSize,
			NumLayers: arch.NumLayers,
			EdgeHeads: arch.EdgeHeads,
			NodeHeads: arch.NodeHeads,
			PoolHeads: arch.PoolHeads,
			Hidden:    arch.Hidden,
			Dropout:   arch.Dropout,
		},
		Encode: EncodeConfig{
			MaxFileSize: 1 << 20,
			MaxDepth:    1000,
			MaxNodes:    1_000_000,
			Timeout:     30 * time.Second,
		},
		Vocab: VocabConfig{
			MinFreq: 1,
		},
	}
}

// Architecture returns the model section as an hgnn config without
// vocabulary sizes.
func (m ModelConfig) Architecture() hgnn.Config {
	return hgnn.Config{
		EmbedSize:         m.EmbedSize,
		DimSize:           m.DimSize,
		NumLayers:         m.NumLayers,
		EdgeHeads:         m.EdgeHeads,
		NodeHeads:         m.NodeHeads,
		PoolHeads:         m.PoolHeads,
		Hidden:            m.Hidden,
		Dropout:           m.Dropout,
		HeadsInEdgeUpdate: m.HeadsInEdgeUpdate,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Placeholder vocabulary sizes let hgnn check the architecture alone.
	arch := c.Model.Architecture()
	arch.FeatureSizes = []int{1}
	arch.EdgeVocabSize = 1
	arch.NumLabels = 1
	if err := arch.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}

	if c.Encode.MaxFileSize < 0 {
		return fmt.Errorf("encode.max_file_size must not be negative")
	}
	if c.Encode.MaxDepth < 0 || c.Encode.MaxNodes < 0 {
		return fmt.Errorf("encode.max_depth and encode.max_nodes must not be negative")
	}
	if c.Encode.Workers < 0 {
		return fmt.Errorf("encode.workers must not be negative")
	}
	if c.Encode.Timeout <= 0 {
		return fmt.Errorf("encode.timeout must be positive")
	}
	if c.Vocab.MinFreq < 1 {
		return fmt.Errorf("vocab.min_freq must be at least 1")
	}
	return nil
}

// Load returns the defaults when path is empty, otherwise the file at path
// layered over the defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
