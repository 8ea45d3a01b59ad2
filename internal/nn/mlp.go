package nn

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// ELU applies x if x > 0, else exp(x) - 1, elementwise.
func ELU(x *Tensor) *Tensor {
	out := New(x.Rows, x.Cols)
	for i, v := range x.Data {
		if v > 0 {
			out.Data[i] = v
		} else {
			out.Data[i] = math.Expm1(v)
		}
	}
	return out
}

// Dropout zeroes each value with probability p and scales survivors by
// 1/(1-p). A nil rng or p <= 0 returns x unchanged.
func Dropout(x *Tensor, p float64, rng *rand.Rand) *Tensor {
	if rng == nil || p <= 0 {
		return x
	}
	out := New(x.Rows, x.Cols)
	if p >= 1 {
		return out
	}
	keep := 1 / (1 - p)
	for i, v := range x.Data {
		if rng.Float64() >= p {
			out.Data[i] = v * keep
		}
	}
	return out
}

// MLP is a feed-forward stack. Every layer but the last is followed by
// batch normalization, ELU and dropout.
type MLP struct {
	Layers  []*Linear
	Norms   []*BatchNorm
	Dropout float64
}

// NewMLP builds layers sizes[0] -> sizes[1] -> ... -> sizes[len-1].
func NewMLP(sizes []int, dropout float64, rng *rand.Rand) *MLP {
	if len(sizes) < 2 {
		panic(fmt.Sprintf("nn: mlp needs at least two sizes, got %v", sizes))
	}
	m := &MLP{Dropout: dropout}
	for i := 0; i+1 < len(sizes); i++ {
		m.Layers = append(m.Layers, NewLinear(sizes[i], sizes[i+1], true, rng))
		if i+2 < len(sizes) {
			m.Norms = append(m.Norms, NewBatchNorm(sizes[i+1]))
		}
	}
	return m
}

// Forward runs x through the stack. Dropout is applied only when rng is set.
func (m *MLP) Forward(x *Tensor, rng *rand.Rand) *Tensor {
	last := len(m.Layers) - 1
	for i, l := range m.Layers {
		x = l.Forward(x)
		if i == last {
			break
		}
		x = m.Norms[i].Forward(x)
		x = ELU(x)
		x = Dropout(x, m.Dropout, rng)
	}
	return x
}

// Params lists the stack's tensors as prefix.lins.<i> and prefix.norms.<i>.
func (m *MLP) Params(prefix string) []Param {
	var ps []Param
	for i, l := range m.Layers {
		ps = append(ps, l.Params(fmt.Sprintf("%s.lins.%d", prefix, i))...)
	}
	for i, n := range m.Norms {
		ps = append(ps, n.Params(fmt.Sprintf("%s.norms.%d", prefix, i))...)
	}
	return ps
}
