package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codeclass/internal/hgnn"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 128, cfg.Model.EmbedSize)
	assert.Equal(t, 128, cfg.Model.DimSize)
	assert.Equal(t, 4, cfg.Model.NumLayers)
	assert.Equal(t, []int{1024}, cfg.Model.Hidden)
	assert.Equal(t, 0.2, cfg.Model.Dropout)
	assert.Equal(t, int64(1<<20), cfg.Encode.MaxFileSize)
	assert.Equal(t, 30*time.Second, cfg.Encode.Timeout)
	assert.Equal(t, 1, cfg.Vocab.MinFreq)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "heads do not divide dim",
			modify:  func(c *Config) { c.Model.EdgeHeads = 7 },
			wantErr: true,
		},
		{
			name:    "no layers",
			modify:  func(c *Config) { c.Model.NumLayers = 0 },
			wantErr: true,
		},
		{
			name:    "dropout too high",
			modify:  func(c *Config) { c.Model.Dropout = 1.5 },
			wantErr: true,
		},
		{
			name:    "negative workers",
			modify:  func(c *Config) { c.Encode.Workers = -1 },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Encode.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "min freq zero",
			modify:  func(c *Config) { c.Vocab.MinFreq = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateWrapsArchitectureErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.PoolHeads = 3
	assert.True(t, errors.Is(cfg.Validate(), hgnn.ErrConfig))
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
model:
  dim_size: 64
  node_heads: 4
  hidden: [256, 128]
  seed: 7
encode:
  timeout: 5s
  workers: 2
cache:
  path: graphs.db
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Model.DimSize)
	assert.Equal(t, 4, cfg.Model.NodeHeads)
	assert.Equal(t, []int{256, 128}, cfg.Model.Hidden)
	assert.Equal(t, uint64(7), cfg.Model.Seed)
	assert.Equal(t, 5*time.Second, cfg.Encode.Timeout)
	assert.Equal(t, 2, cfg.Encode.Workers)
	assert.Equal(t, "graphs.db", cfg.Cache.Path)
	// Unset values keep their defaults.
	assert.Equal(t, 128, cfg.Model.EmbedSize)
	assert.Equal(t, 8, cfg.Model.EdgeHeads)
	assert.Equal(t, 1, cfg.Vocab.MinFreq)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("model:\n  dim_size: 100\n"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Metrics.Textfile = "codeclass.prom"
	cfg.Encode.Languages = []string{"python", "c"}
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestArchitecture(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.HeadsInEdgeUpdate = true
	arch := cfg.Model.Architecture()

	assert.Equal(t, 128, arch.DimSize)
	assert.True(t, arch.HeadsInEdgeUpdate)
	assert.Empty(t, arch.FeatureSizes)
}
