package vocab

import (
	"sort"

	"github.com/phobologic/codeclass/internal/model"
)

// counter counts tokens and remembers the order they were first seen in.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(tokens ...string) {
	for _, tok := range tokens {
		if _, ok := c.counts[tok]; !ok {
			c.order = append(c.order, tok)
		}
		c.counts[tok]++
	}
}

// mostCommon returns the tokens seen at least minFreq times, most frequent
// first. Ties keep first-seen order.
func (c *counter) mostCommon(minFreq int) []string {
	out := make([]string, 0, len(c.order))
	for _, tok := range c.order {
		if c.counts[tok] >= minFreq {
			out = append(out, tok)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return c.counts[out[i]] > c.counts[out[j]]
	})
	return out
}

// Build counts the tokens of graphs and assigns ids by descending frequency.
// Features rarer than minFreq are left out and will map to <unk>; node
// types, edge types and labels are always kept. The edge type entry ends
// with an <unk> id for field names first seen at prediction time. Graphs
// with an empty label do not contribute to the label entry.
func Build(graphs []*model.Graph, minFreq int) *Vocab {
	if minFreq < 1 {
		minFreq = 1
	}

	types := newCounter()
	edges := newCounter()
	labels := newCounter()
	features := make(map[string]*counter)

	for _, g := range graphs {
		for i, typ := range g.NodeTypes {
			c, ok := features[typ]
			if !ok {
				c = newCounter()
				features[typ] = c
			}
			c.add(g.NodeFeatures[i])
		}
		types.add(g.NodeTypes...)
		edges.add(g.EdgeTypes...)
		if g.Label != "" {
			labels.add(g.Label)
		}
	}

	v := &Vocab{entries: make(map[string]*Entry, len(features)+3)}
	v.entries[Types] = fill(newEntry(false), types.mostCommon(1))
	v.entries[EdgeTypes] = fill(newEntry(false), append(edges.mostCommon(1), UnkToken))
	v.entries[Labels] = fill(newEntry(false), labels.mostCommon(1))
	for typ, c := range features {
		v.entries[typ] = fill(newEntry(true), c.mostCommon(minFreq))
	}
	return v
}

func fill(e *Entry, words []string) *Entry {
	for _, w := range words {
		e.add(w)
	}
	return e
}
