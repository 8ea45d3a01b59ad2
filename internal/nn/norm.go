package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Eps is added to variances before taking square roots.
const Eps = 1e-5

// GraphNorm normalizes node vectors with statistics taken per input graph:
//
//	y = w * (x - alpha*mean_g) / sqrt(var_g + eps) + b
//
// where var_g is the mean of the squared shifted values over graph g.
type GraphNorm struct {
	Weight    *Tensor // 1 x dim
	Bias      *Tensor // 1 x dim
	MeanScale *Tensor // 1 x dim
}

// NewGraphNorm returns the identity-initialized normalization (w=1, b=0, alpha=1).
func NewGraphNorm(dim int) *GraphNorm {
	return &GraphNorm{
		Weight:    filled(dim, 1),
		Bias:      New(1, dim),
		MeanScale: filled(dim, 1),
	}
}

// Forward normalizes x. membership maps each row to its graph in [0, numGraphs).
func (g *GraphNorm) Forward(x *Tensor, membership []int, numGraphs int) *Tensor {
	counts := make([]float64, numGraphs)
	for _, m := range membership {
		counts[m]++
	}

	mean := ScatterAdd(x, membership, numGraphs)
	divideRows(mean, counts)

	out := New(x.Rows, x.Cols)
	for i := 0; i < x.Rows; i++ {
		xi, mi, oi := x.Row(i), mean.Row(membership[i]), out.Row(i)
		for j := range oi {
			oi[j] = xi[j] - g.MeanScale.Data[j]*mi[j]
		}
	}

	sq := New(out.Rows, out.Cols)
	for i, v := range out.Data {
		sq.Data[i] = v * v
	}
	variance := ScatterAdd(sq, membership, numGraphs)
	divideRows(variance, counts)

	for i := 0; i < out.Rows; i++ {
		oi, vi := out.Row(i), variance.Row(membership[i])
		for j := range oi {
			oi[j] = g.Weight.Data[j]*oi[j]/math.Sqrt(vi[j]+Eps) + g.Bias.Data[j]
		}
	}
	return out
}

// Params lists the normalization tensors under prefix.
func (g *GraphNorm) Params(prefix string) []Param {
	return []Param{
		{Name: prefix + ".weight", Value: g.Weight},
		{Name: prefix + ".bias", Value: g.Bias},
		{Name: prefix + ".mean_scale", Value: g.MeanScale},
	}
}

// BatchNorm is a feature-wise normalization evaluated with its running
// statistics.
type BatchNorm struct {
	Weight      *Tensor // 1 x dim
	Bias        *Tensor // 1 x dim
	RunningMean *Tensor // 1 x dim
	RunningVar  *Tensor // 1 x dim
}

// NewBatchNorm returns gamma=1, beta=0 with running mean 0 and variance 1.
func NewBatchNorm(dim int) *BatchNorm {
	return &BatchNorm{
		Weight:      filled(dim, 1),
		Bias:        New(1, dim),
		RunningMean: New(1, dim),
		RunningVar:  filled(dim, 1),
	}
}

// Forward normalizes every row of x.
func (b *BatchNorm) Forward(x *Tensor) *Tensor {
	out := New(x.Rows, x.Cols)
	for i := 0; i < x.Rows; i++ {
		xi, oi := x.Row(i), out.Row(i)
		for j := range oi {
			oi[j] = (xi[j]-b.RunningMean.Data[j])/math.Sqrt(b.RunningVar.Data[j]+Eps)*b.Weight.Data[j] + b.Bias.Data[j]
		}
	}
	return out
}

// Params lists the normalization tensors under prefix.
func (b *BatchNorm) Params(prefix string) []Param {
	return []Param{
		{Name: prefix + ".weight", Value: b.Weight},
		{Name: prefix + ".bias", Value: b.Bias},
		{Name: prefix + ".running_mean", Value: b.RunningMean},
		{Name: prefix + ".running_var", Value: b.RunningVar},
	}
}

func filled(dim int, v float64) *Tensor {
	t := New(1, dim)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// divideRows divides row g of t by counts[g]; empty groups are left at zero.
func divideRows(t *Tensor, counts []float64) {
	for g, c := range counts {
		if c > 0 {
			floats.Scale(1/c, t.Row(g))
		}
	}
}
