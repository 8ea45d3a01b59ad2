// Package ranking orders and selects classifier predictions.
package ranking

import (
	"sort"
	"strings"

	"github.com/phobologic/codeclass/internal/model"
)

// TopK returns the k most probable labels of one probability row, highest
// first. Ties keep label id order. If k is <= 0 or >= len(probs), every
// label is returned.
func TopK(probs []float64, labels []string, k int) []model.Candidate {
	ids := make([]int, len(probs))
	for i := range ids {
		ids[i] = i
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return probs[ids[a]] > probs[ids[b]]
	})

	if k <= 0 || k > len(ids) {
		k = len(ids)
	}
	out := make([]model.Candidate, k)
	for i, id := range ids[:k] {
		out[i] = model.Candidate{Label: labels[id], Prob: probs[id]}
	}
	return out
}

// Accuracy counts the predictions with a known label and how many of those
// were classified correctly.
func Accuracy(preds []model.Prediction) (correct, labelled int) {
	for i := range preds {
		if preds[i].Label == "" {
			continue
		}
		labelled++
		if preds[i].Correct() {
			correct++
		}
	}
	return correct, labelled
}

// FilterByLabel returns the predictions whose top candidate contains substr
// (case-insensitive).
func FilterByLabel(preds []model.Prediction, substr string) []model.Prediction {
	lower := strings.ToLower(substr)
	var out []model.Prediction
	for i := range preds {
		if strings.Contains(strings.ToLower(preds[i].Top().Label), lower) {
			out = append(out, preds[i])
		}
	}
	return out
}

// SelectConfident returns the predictions whose top probability is at
// least minProb, keeping their order.
func SelectConfident(preds []model.Prediction, minProb float64) []model.Prediction {
	if minProb <= 0 {
		return preds
	}
	var out []model.Prediction
	for i := range preds {
		if preds[i].Top().Prob >= minProb {
			out = append(out, preds[i])
		}
	}
	return out
}
