package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Linear computes x W^T + b.
type Linear struct {
	Weight *Tensor // out x in
	Bias   *Tensor // 1 x out, nil when the layer has no bias
}

// NewLinear returns a Xavier-uniform initialized layer with a zero bias.
func NewLinear(in, out int, bias bool, rng *rand.Rand) *Linear {
	l := &Linear{Weight: XavierUniform(out, in, rng)}
	if bias {
		l.Bias = New(1, out)
	}
	return l
}

// In returns the input width.
func (l *Linear) In() int { return l.Weight.Cols }

// Out returns the output width.
func (l *Linear) Out() int { return l.Weight.Rows }

// Forward applies the layer to every row of x.
func (l *Linear) Forward(x *Tensor) *Tensor {
	y := MatMulT(x, l.Weight)
	if l.Bias != nil {
		for i := 0; i < y.Rows; i++ {
			floats.Add(y.Row(i), l.Bias.Data)
		}
	}
	return y
}

// Params lists the layer's tensors under prefix.
func (l *Linear) Params(prefix string) []Param {
	ps := []Param{{Name: prefix + ".weight", Value: l.Weight}}
	if l.Bias != nil {
		ps = append(ps, Param{Name: prefix + ".bias", Value: l.Bias})
	}
	return ps
}

// HeteroLinear holds one Linear block per discriminant value and applies to
// each row the block its discriminant selects.
type HeteroLinear struct {
	Blocks []*Linear
}

// NewHeteroLinear returns n independent in -> out blocks with biases.
func NewHeteroLinear(in, out, n int, rng *rand.Rand) *HeteroLinear {
	h := &HeteroLinear{Blocks: make([]*Linear, n)}
	for i := range h.Blocks {
		h.Blocks[i] = NewLinear(in, out, true, rng)
	}
	return h
}

// Forward gathers the rows of every discriminant value, runs them through
// that value's block in one product, and scatters the results back.
func (h *HeteroLinear) Forward(x *Tensor, kinds []int) *Tensor {
	if len(kinds) != x.Rows {
		panic(fmt.Sprintf("nn: %d discriminants for %d rows", len(kinds), x.Rows))
	}
	groups := make([][]int, len(h.Blocks))
	for i, k := range kinds {
		groups[k] = append(groups[k], i)
	}
	out := New(x.Rows, h.Blocks[0].Out())
	for k, rows := range groups {
		if len(rows) == 0 {
			continue
		}
		y := h.Blocks[k].Forward(Gather(x, rows))
		for j, r := range rows {
			copy(out.Row(r), y.Row(j))
		}
	}
	return out
}

// Params lists every block's tensors as prefix.<k>.
func (h *HeteroLinear) Params(prefix string) []Param {
	var ps []Param
	for k, b := range h.Blocks {
		ps = append(ps, b.Params(fmt.Sprintf("%s.%d", prefix, k))...)
	}
	return ps
}

// Embedding is a lookup table of row vectors.
type Embedding struct {
	Weight *Tensor // num x dim
}

// NewEmbedding returns a table drawn from N(0, 1). With padding set, row 0
// is zero.
func NewEmbedding(num, dim int, padding bool, rng *rand.Rand) *Embedding {
	w := New(num, dim)
	for i := range w.Data {
		w.Data[i] = rng.NormFloat64()
	}
	if padding && num > 0 {
		clear(w.Row(0))
	}
	return &Embedding{Weight: w}
}

// Len returns the number of rows in the table.
func (e *Embedding) Len() int { return e.Weight.Rows }

// Lookup returns the rows for ids.
func (e *Embedding) Lookup(ids []int) *Tensor {
	return Gather(e.Weight, ids)
}

// Params lists the table under prefix.
func (e *Embedding) Params(prefix string) []Param {
	return []Param{{Name: prefix + ".weight", Value: e.Weight}}
}

// XavierUniform returns a rows x cols tensor drawn from U(-a, a) with
// a = sqrt(6 / (rows + cols)).
func XavierUniform(rows, cols int, rng *rand.Rand) *Tensor {
	t := New(rows, cols)
	if rows+cols == 0 {
		return t
	}
	a := math.Sqrt(6 / float64(rows+cols))
	for i := range t.Data {
		t.Data[i] = (2*rng.Float64() - 1) * a
	}
	return t
}
