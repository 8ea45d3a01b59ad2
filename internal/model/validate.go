package model

import (
	"errors"
	"fmt"
)

// ErrShape reports malformed graph or tensor data: inconsistent array lengths,
// dangling ids, or hyperedges without exactly one head and at least one tail.
var ErrShape = errors.New("shape violation")

func shapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}

// Validate checks the structural invariants of an encoded graph.
func (g *Graph) Validate() error {
	if len(g.NodeTypes) != len(g.NodeFeatures) {
		return shapeErrorf("%d node types but %d node features", len(g.NodeTypes), len(g.NodeFeatures))
	}
	if len(g.NodeTypes) == 0 {
		return shapeErrorf("graph has no nodes")
	}
	if g.NodeTypes[0] != TypeAST {
		return shapeErrorf("root node has type %q, want %q", g.NodeTypes[0], TypeAST)
	}
	return checkIncidence(g.NumNodes(), g.NumEdges(), g.EdgeIDs, g.NodeIDs, g.Roles)
}

// Validate checks the structural invariants of an id-encoded graph.
func (t *Tensors) Validate() error {
	if len(t.Types) != len(t.Features) {
		return shapeErrorf("%d node types but %d node features", len(t.Types), len(t.Features))
	}
	return checkIncidence(t.NumNodes(), t.NumEdges(), t.EdgeIDs, t.NodeIDs, t.Roles)
}

// checkIncidence verifies the parallel incidence arrays against the node and
// edge counts. Every edge must have exactly one head and at least one tail.
func checkIncidence(numNodes, numEdges int, edgeIDs, nodeIDs []int, roles []Role) error {
	if len(edgeIDs) != len(nodeIDs) || len(edgeIDs) != len(roles) {
		return shapeErrorf("incidence arrays differ in length: edge_id=%d node_id=%d role=%d",
			len(edgeIDs), len(nodeIDs), len(roles))
	}

	heads := make([]int, numEdges)
	tails := make([]int, numEdges)
	for i := range edgeIDs {
		e, n := edgeIDs[i], nodeIDs[i]
		if e < 0 || e >= numEdges {
			return shapeErrorf("incidence %d: edge id %d out of range [0,%d)", i, e, numEdges)
		}
		if n < 0 || n >= numNodes {
			return shapeErrorf("incidence %d: node id %d out of range [0,%d)", i, n, numNodes)
		}
		switch roles[i] {
		case Head:
			heads[e]++
		case Tail:
			tails[e]++
		default:
			return shapeErrorf("incidence %d: invalid role %d", i, roles[i])
		}
	}

	for e := 0; e < numEdges; e++ {
		if heads[e] != 1 {
			return shapeErrorf("edge %d has %d head incidences, want 1", e, heads[e])
		}
		if tails[e] == 0 {
			return shapeErrorf("edge %d has no tail incidence", e)
		}
	}
	return nil
}
