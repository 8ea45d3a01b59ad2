package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// softmaxFloor keeps grouped softmax denominators away from zero.
const softmaxFloor = 1e-16

// ScatterAdd sums the rows of src into n destination rows: out[index[i]] += src[i].
func ScatterAdd(src *Tensor, index []int, n int) *Tensor {
	if len(index) != src.Rows {
		panic(fmt.Sprintf("nn: scatter %d rows with %d indices", src.Rows, len(index)))
	}
	out := New(n, src.Cols)
	for i, d := range index {
		floats.Add(out.Row(d), src.Row(i))
	}
	return out
}

// GroupSoftmax normalizes every column of scores over the rows that share a
// group id, so the weights of one group sum to 1 per column. The group max is
// subtracted before exponentiating.
func GroupSoftmax(scores *Tensor, group []int, n int) *Tensor {
	if len(group) != scores.Rows {
		panic(fmt.Sprintf("nn: softmax over %d rows with %d group ids", scores.Rows, len(group)))
	}
	cols := scores.Cols

	peak := New(n, cols)
	for i := range peak.Data {
		peak.Data[i] = math.Inf(-1)
	}
	for i, g := range group {
		mg, si := peak.Row(g), scores.Row(i)
		for j := range si {
			mg[j] = math.Max(mg[j], si[j])
		}
	}

	out := New(scores.Rows, cols)
	sum := New(n, cols)
	for i, g := range group {
		oi, si, mg := out.Row(i), scores.Row(i), peak.Row(g)
		for j := range oi {
			oi[j] = math.Exp(si[j] - mg[j])
		}
		floats.Add(sum.Row(g), oi)
	}
	for i, g := range group {
		oi, sg := out.Row(i), sum.Row(g)
		for j := range oi {
			oi[j] /= sg[j] + softmaxFloor
		}
	}
	return out
}

// HeadScores splits q and k into heads equal slices per row and returns the
// per-head dot products as a rows x heads tensor. A single-row q is
// broadcast against every row of k.
func HeadScores(q, k *Tensor, heads int) *Tensor {
	if q.Cols != k.Cols || q.Cols%heads != 0 || (q.Rows != k.Rows && q.Rows != 1) {
		panic(fmt.Sprintf("nn: head scores of %s and %s with %d heads", q.Shape(), k.Shape(), heads))
	}
	size := q.Cols / heads
	out := New(k.Rows, heads)
	for i := 0; i < k.Rows; i++ {
		qi := q.Row(0)
		if q.Rows > 1 {
			qi = q.Row(i)
		}
		ki, oi := k.Row(i), out.Row(i)
		for h := range oi {
			oi[h] = floats.Dot(qi[h*size:(h+1)*size], ki[h*size:(h+1)*size])
		}
	}
	return out
}

// WeightHeads scales head h of row i of v by w[i][h].
func WeightHeads(v, w *Tensor) *Tensor {
	if v.Rows != w.Rows || v.Cols%w.Cols != 0 {
		panic(fmt.Sprintf("nn: weight %s by %s", v.Shape(), w.Shape()))
	}
	size := v.Cols / w.Cols
	out := v.Clone()
	for i := 0; i < out.Rows; i++ {
		oi, wi := out.Row(i), w.Row(i)
		for h, s := range wi {
			floats.Scale(s, oi[h*size:(h+1)*size])
		}
	}
	return out
}

// Softmax normalizes each row of logits independently.
func Softmax(logits *Tensor) *Tensor {
	out := logits.Clone()
	for i := 0; i < out.Rows; i++ {
		row := out.Row(i)
		if len(row) == 0 {
			continue
		}
		m := floats.Max(row)
		for j, v := range row {
			row[j] = math.Exp(v - m)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return out
}

// Argmax returns the column of the largest value in each row.
func Argmax(t *Tensor) []int {
	out := make([]int, t.Rows)
	for i := range out {
		if t.Cols > 0 {
			out[i] = floats.MaxIdx(t.Row(i))
		}
	}
	return out
}
