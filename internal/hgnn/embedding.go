package hgnn

import (
	"fmt"
	"math/rand/v2"

	"github.com/phobologic/codeclass/internal/nn"
)

// HeteroEmbedding looks each node up in the table of its own type and
// projects the result into the shared hidden dimension with a per-type
// linear map. Feature ids of different types index different tables.
type HeteroEmbedding struct {
	Tables     []*nn.Embedding
	Projection *nn.HeteroLinear
}

func newHeteroEmbedding(cfg Config, rng *rand.Rand) *HeteroEmbedding {
	h := &HeteroEmbedding{
		Tables:     make([]*nn.Embedding, cfg.NumTypes()),
		Projection: nn.NewHeteroLinear(cfg.EmbedSize, cfg.DimSize, cfg.NumTypes(), rng),
	}
	for t, n := range cfg.FeatureSizes {
		h.Tables[t] = nn.NewEmbedding(n, cfg.EmbedSize, true, rng)
	}
	return h
}

// Forward returns one DimSize vector per node.
func (h *HeteroEmbedding) Forward(features, types []int) *nn.Tensor {
	groups := make([][]int, len(h.Tables))
	for i, t := range types {
		groups[t] = append(groups[t], i)
	}

	embedSize := h.Projection.Blocks[0].In()
	x := nn.New(len(features), embedSize)
	for t, rows := range groups {
		if len(rows) == 0 {
			continue
		}
		ids := make([]int, len(rows))
		for j, r := range rows {
			ids[j] = features[r]
		}
		looked := h.Tables[t].Lookup(ids)
		for j, r := range rows {
			copy(x.Row(r), looked.Row(j))
		}
	}
	return h.Projection.Forward(x, types)
}

func (h *HeteroEmbedding) params() []nn.Param {
	var ps []nn.Param
	for t, e := range h.Tables {
		ps = append(ps, e.Params(fmt.Sprintf("embedding.%d", t))...)
	}
	return append(ps, h.Projection.Params("hetero_linear")...)
}
