// Package nn provides the small set of dense layers and scatter primitives
// the hypergraph network is assembled from.
//
// Tensors are row-major float64 matrices. Matrix products go through gonum;
// grouped reductions (scatter-add, grouped softmax) are plain loops over a
// destination index. Functions assume their index arguments are in range;
// callers validate ids before a forward pass.
package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a row-major Rows x Cols matrix.
type Tensor struct {
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

// New returns a zeroed rows x cols tensor.
func New(rows, cols int) *Tensor {
	return &Tensor{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// FromRows copies rows into a tensor. All rows must have the same length.
func FromRows(rows [][]float64) *Tensor {
	if len(rows) == 0 {
		return New(0, 0)
	}
	t := New(len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != t.Cols {
			panic(fmt.Sprintf("nn: row %d has %d columns, want %d", i, len(r), t.Cols))
		}
		copy(t.Row(i), r)
	}
	return t
}

// Row returns row i as a slice aliasing the tensor's storage.
func (t *Tensor) Row(i int) []float64 {
	return t.Data[i*t.Cols : (i+1)*t.Cols]
}

// Clone returns a deep copy of t.
func (t *Tensor) Clone() *Tensor {
	c := New(t.Rows, t.Cols)
	copy(c.Data, t.Data)
	return c
}

// SameShape reports whether t and o have equal dimensions.
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.Rows == o.Rows && t.Cols == o.Cols
}

// Shape formats the dimensions for error messages.
func (t *Tensor) Shape() string {
	return fmt.Sprintf("%dx%d", t.Rows, t.Cols)
}

// Check reports whether the data length matches the dimensions.
func (t *Tensor) Check() error {
	if t.Rows < 0 || t.Cols < 0 || len(t.Data) != t.Rows*t.Cols {
		return fmt.Errorf("tensor %s holds %d values", t.Shape(), len(t.Data))
	}
	return nil
}

// Gather returns the rows of t selected by idx, in idx order.
func Gather(t *Tensor, idx []int) *Tensor {
	out := New(len(idx), t.Cols)
	for i, r := range idx {
		copy(out.Row(i), t.Row(r))
	}
	return out
}

// Add returns a + b elementwise.
func Add(a, b *Tensor) *Tensor {
	if !a.SameShape(b) {
		panic(fmt.Sprintf("nn: add %s and %s", a.Shape(), b.Shape()))
	}
	out := New(a.Rows, a.Cols)
	floats.AddTo(out.Data, a.Data, b.Data)
	return out
}

// Scale multiplies t by s in place and returns it.
func (t *Tensor) Scale(s float64) *Tensor {
	floats.Scale(s, t.Data)
	return t
}

// MatMulT returns x times the transpose of w: (n x in) * (out x in)^T.
func MatMulT(x, w *Tensor) *Tensor {
	if x.Cols != w.Cols {
		panic(fmt.Sprintf("nn: matmul %s by %s transposed", x.Shape(), w.Shape()))
	}
	out := New(x.Rows, w.Rows)
	if x.Rows == 0 || w.Rows == 0 || x.Cols == 0 {
		return out
	}
	xd := mat.NewDense(x.Rows, x.Cols, x.Data)
	wd := mat.NewDense(w.Rows, w.Cols, w.Data)
	mat.NewDense(out.Rows, out.Cols, out.Data).Mul(xd, wd.T())
	return out
}

// Param names a learnable tensor for persistence.
type Param struct {
	Name  string
	Value *Tensor
}
