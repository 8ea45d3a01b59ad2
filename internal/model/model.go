// Package model defines core data structures for codeclass.
package model

import "strconv"

// Node type tags.
const (
	TypeAST   = "ast"
	TypeIdent = "ident"
)

// Role is the part a node plays in one incidence of a hyperedge.
type Role uint8

const (
	Head Role = 0
	Tail Role = 1
)

func (r Role) String() string {
	switch r {
	case Head:
		return "head"
	case Tail:
		return "tail"
	}
	return "invalid"
}

// MarshalJSON encodes the role as its integer value, keeping role lists
// JSON arrays of numbers.
func (r Role) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(r), 10), nil
}

// Graph is the typed directed hypergraph of a single source file.
//
// NodeTypes and NodeFeatures are indexed by node id, EdgeTypes by edge id.
// The incidence table is stored as three parallel arrays.
type Graph struct {
	File  string `json:"file,omitempty" msgpack:"file"`
	Label string `json:"label,omitempty" msgpack:"label"`

	NodeTypes    []string `json:"node_types" msgpack:"node_types"`
	NodeFeatures []string `json:"node_features" msgpack:"node_features"`
	EdgeTypes    []string `json:"edge_types" msgpack:"edge_types"`

	EdgeIDs []int  `json:"edge_id" msgpack:"edge_id"`
	NodeIDs []int  `json:"node_id" msgpack:"node_id"`
	Roles   []Role `json:"role" msgpack:"role"`
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.NodeTypes) }

// NumEdges returns the number of hyperedges in the graph.
func (g *Graph) NumEdges() int { return len(g.EdgeTypes) }

// NumIncidences returns the number of incidence records.
func (g *Graph) NumIncidences() int { return len(g.EdgeIDs) }

// Incidence is a single (edge, node, role) record.
type Incidence struct {
	Edge int
	Node int
	Role Role
}

// Incidence returns the i-th incidence record.
func (g *Graph) Incidence(i int) Incidence {
	return Incidence{Edge: g.EdgeIDs[i], Node: g.NodeIDs[i], Role: g.Roles[i]}
}

// Tensors is a Graph with every token replaced by its vocabulary id.
type Tensors struct {
	Features  []int
	Types     []int
	EdgeTypes []int

	EdgeIDs []int
	NodeIDs []int
	Roles   []Role

	// Label is the label id, or -1 when the graph is unlabelled.
	Label int
}

// NumNodes returns the number of nodes.
func (t *Tensors) NumNodes() int { return len(t.Types) }

// NumEdges returns the number of hyperedges.
func (t *Tensors) NumEdges() int { return len(t.EdgeTypes) }
