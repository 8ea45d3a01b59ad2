// Package hgnn implements the heterogeneous directed hypergraph attention
// network: per-type node embeddings, stacked two-pass hypergraph attention
// convolutions, attention pooling per graph and a feed-forward classifier.
package hgnn

import (
	"errors"
	"fmt"

	"github.com/phobologic/codeclass/internal/vocab"
)

// ErrConfig reports an invalid architecture.
var ErrConfig = errors.New("invalid model config")

// Config is the architecture of a Model. The vocabulary-derived sizes are
// filled by ConfigFromVocab.
type Config struct {
	// FeatureSizes holds the feature vocabulary size of each node type,
	// indexed by type id.
	FeatureSizes  []int `msgpack:"feature_sizes"`
	EdgeVocabSize int   `msgpack:"edge_vocab_size"`
	NumLabels     int   `msgpack:"num_labels"`

	EmbedSize int `msgpack:"embed_size"`
	DimSize   int `msgpack:"dim_size"`
	NumLayers int `msgpack:"num_layers"`
	EdgeHeads int `msgpack:"edge_heads"`
	NodeHeads int `msgpack:"node_heads"`
	PoolHeads int `msgpack:"pool_heads"`

	Hidden  []int   `msgpack:"hidden"`
	Dropout float64 `msgpack:"dropout"`

	// HeadsInEdgeUpdate lets head incidences contribute to the edge update
	// pass alongside tails.
	HeadsInEdgeUpdate bool `msgpack:"heads_in_edge_update"`
}

// DefaultConfig returns the default architecture without vocabulary sizes.
func DefaultConfig() Config {
	return Config{
		EmbedSize: 128,
		DimSize:   128,
		NumLayers: 4,
		EdgeHeads: 8,
		NodeHeads: 8,
		PoolHeads: 8,
		Hidden:    []int{1024},
		Dropout:   0.2,
	}
}

// ConfigFromVocab returns arch with the vocabulary-derived sizes of v.
func ConfigFromVocab(v *vocab.Vocab, arch Config) Config {
	arch.FeatureSizes = v.FeatureSizes()
	arch.EdgeVocabSize = v.NumEdgeTypes()
	arch.NumLabels = v.NumLabels()
	return arch
}

// NumTypes returns the number of node types.
func (c Config) NumTypes() int { return len(c.FeatureSizes) }

// Validate checks sizes and head divisibility.
func (c Config) Validate() error {
	if len(c.FeatureSizes) == 0 {
		return fmt.Errorf("%w: no node types", ErrConfig)
	}
	for t, n := range c.FeatureSizes {
		if n <= 0 {
			return fmt.Errorf("%w: node type %d has feature vocabulary size %d", ErrConfig, t, n)
		}
	}
	positive := []struct {
		name string
		v    int
	}{
		{"edge_vocab_size", c.EdgeVocabSize},
		{"num_labels", c.NumLabels},
		{"embed_size", c.EmbedSize},
		{"dim_size", c.DimSize},
		{"num_layers", c.NumLayers},
		{"edge_heads", c.EdgeHeads},
		{"node_heads", c.NodeHeads},
		{"pool_heads", c.PoolHeads},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrConfig, p.name, p.v)
		}
	}
	for _, h := range []struct {
		name string
		v    int
	}{{"edge_heads", c.EdgeHeads}, {"node_heads", c.NodeHeads}, {"pool_heads", c.PoolHeads}} {
		if c.DimSize%h.v != 0 {
			return fmt.Errorf("%w: dim_size %d is not divisible by %s %d", ErrConfig, c.DimSize, h.name, h.v)
		}
	}
	for i, h := range c.Hidden {
		if h <= 0 {
			return fmt.Errorf("%w: hidden layer %d has size %d", ErrConfig, i, h)
		}
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("%w: dropout %v outside [0,1)", ErrConfig, c.Dropout)
	}
	return nil
}

// mlpSizes returns the classifier layer widths.
func (c Config) mlpSizes() []int {
	sizes := append([]int{c.DimSize}, c.Hidden...)
	return append(sizes, c.NumLabels)
}
