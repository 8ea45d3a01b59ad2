package model

// Batch concatenates several id-encoded graphs into one disjoint graph.
// Node and edge ids of each member are offset by the number of nodes and
// edges that precede it, and Membership maps every node to its graph.
type Batch struct {
	Features  []int
	Types     []int
	EdgeTypes []int

	EdgeIDs []int
	NodeIDs []int
	Roles   []Role

	Membership []int
	Labels     []int
	NumGraphs  int
}

// NumNodes returns the total number of nodes in the batch.
func (b *Batch) NumNodes() int { return len(b.Types) }

// NumEdges returns the total number of hyperedges in the batch.
func (b *Batch) NumEdges() int { return len(b.EdgeTypes) }

// Collate renumbers and concatenates graphs into a single Batch.
func Collate(graphs ...*Tensors) *Batch {
	var nodes, edges, incs int
	for _, t := range graphs {
		nodes += t.NumNodes()
		edges += t.NumEdges()
		incs += len(t.EdgeIDs)
	}

	b := &Batch{
		Features:   make([]int, 0, nodes),
		Types:      make([]int, 0, nodes),
		EdgeTypes:  make([]int, 0, edges),
		EdgeIDs:    make([]int, 0, incs),
		NodeIDs:    make([]int, 0, incs),
		Roles:      make([]Role, 0, incs),
		Membership: make([]int, 0, nodes),
		Labels:     make([]int, 0, len(graphs)),
		NumGraphs:  len(graphs),
	}

	var nodeOffset, edgeOffset int
	for g, t := range graphs {
		b.Features = append(b.Features, t.Features...)
		b.Types = append(b.Types, t.Types...)
		b.EdgeTypes = append(b.EdgeTypes, t.EdgeTypes...)
		for i := range t.EdgeIDs {
			b.EdgeIDs = append(b.EdgeIDs, t.EdgeIDs[i]+edgeOffset)
			b.NodeIDs = append(b.NodeIDs, t.NodeIDs[i]+nodeOffset)
		}
		b.Roles = append(b.Roles, t.Roles...)
		for range t.NumNodes() {
			b.Membership = append(b.Membership, g)
		}
		b.Labels = append(b.Labels, t.Label)

		nodeOffset += t.NumNodes()
		edgeOffset += t.NumEdges()
	}
	return b
}

// Validate checks array lengths, id ranges, membership, and that no
// hyperedge spans two member graphs.
func (b *Batch) Validate() error {
	if len(b.Features) != len(b.Types) {
		return shapeErrorf("%d node types but %d node features", len(b.Types), len(b.Features))
	}
	if len(b.Membership) != b.NumNodes() {
		return shapeErrorf("membership has %d entries for %d nodes", len(b.Membership), b.NumNodes())
	}
	if b.NumGraphs <= 0 {
		return shapeErrorf("batch has no graphs")
	}
	for n, g := range b.Membership {
		if g < 0 || g >= b.NumGraphs {
			return shapeErrorf("node %d: graph id %d out of range [0,%d)", n, g, b.NumGraphs)
		}
	}
	if err := checkIncidence(b.NumNodes(), b.NumEdges(), b.EdgeIDs, b.NodeIDs, b.Roles); err != nil {
		return err
	}

	owner := make([]int, b.NumEdges())
	for e := range owner {
		owner[e] = -1
	}
	for i, e := range b.EdgeIDs {
		g := b.Membership[b.NodeIDs[i]]
		if owner[e] == -1 {
			owner[e] = g
			continue
		}
		if owner[e] != g {
			return shapeErrorf("edge %d connects nodes of graphs %d and %d", e, owner[e], g)
		}
	}
	return nil
}
