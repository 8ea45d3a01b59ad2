package hgnn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/phobologic/codeclass/internal/nn"
)

// Conv is one hypergraph attention layer.
//
// Pass A builds a hyperedge representation: every participating incidence
// projects its node through the role-selected HeadTail block into keys and
// values, the edge's type vector supplies the query, and attention is
// normalized over the incidences of each edge. EdgeLinear re-projects the
// type vector and is added on top.
//
// Pass B sends the new hyperedge vectors back to every incident node: the
// edge is projected through the role-selected ToHeadTail block into keys and
// values, the node supplies the query, and attention is normalized over the
// incidences of each node.
//
// The node update is ELU(GraphNorm(U1(x) + U2(messages))).
type Conv struct {
	EdgeHeads         int
	NodeHeads         int
	HeadsInEdgeUpdate bool

	Q1, K1, V1 *nn.Linear
	EdgeLinear *nn.Linear
	HeadTail   *nn.HeteroLinear

	ToHeadTail *nn.HeteroLinear
	Q2, K2, V2 *nn.Linear

	U1, U2 *nn.Linear
	Norm   *nn.GraphNorm
}

func newConv(cfg Config, rng *rand.Rand) *Conv {
	d := cfg.DimSize
	return &Conv{
		EdgeHeads:         cfg.EdgeHeads,
		NodeHeads:         cfg.NodeHeads,
		HeadsInEdgeUpdate: cfg.HeadsInEdgeUpdate,

		Q1:         nn.NewLinear(d, d, false, rng),
		K1:         nn.NewLinear(d, d, false, rng),
		V1:         nn.NewLinear(d, d, false, rng),
		EdgeLinear: nn.NewLinear(d, d, true, rng),
		HeadTail:   nn.NewHeteroLinear(d, d, 2, rng),

		ToHeadTail: nn.NewHeteroLinear(d, d, 2, rng),
		Q2:         nn.NewLinear(d, d, false, rng),
		K2:         nn.NewLinear(d, d, false, rng),
		V2:         nn.NewLinear(d, d, false, rng),

		U1:   nn.NewLinear(d, d, true, rng),
		U2:   nn.NewLinear(d, d, true, rng),
		Norm: nn.NewGraphNorm(d),
	}
}

// Forward returns the updated node vectors.
func (c *Conv) Forward(x, edgeAttr *nn.Tensor, g *structure) *nn.Tensor {
	hyper := c.edgeUpdate(x, edgeAttr, g)
	agg := c.nodeMessages(x, hyper, g)
	out := nn.Add(c.U1.Forward(x), c.U2.Forward(agg))
	return nn.ELU(c.Norm.Forward(out, g.membership, g.numGraphs))
}

func (c *Conv) edgeUpdate(x, edgeAttr *nn.Tensor, g *structure) *nn.Tensor {
	edges, nodes, roles := g.tailEdges, g.tailNodes, g.tailRoles
	if c.HeadsInEdgeUpdate {
		edges, nodes, roles = g.edgeIDs, g.nodeIDs, g.roles
	}

	m := c.HeadTail.Forward(nn.Gather(x, nodes), roles)
	q := nn.Gather(c.Q1.Forward(edgeAttr), edges)
	k := c.K1.Forward(m)
	v := c.V1.Forward(m)

	scores := nn.HeadScores(q, k, c.EdgeHeads).Scale(scale(x.Cols, c.EdgeHeads))
	attn := nn.GroupSoftmax(scores, edges, edgeAttr.Rows)
	hyper := nn.ScatterAdd(nn.WeightHeads(v, attn), edges, edgeAttr.Rows)
	return nn.Add(hyper, c.EdgeLinear.Forward(edgeAttr))
}

func (c *Conv) nodeMessages(x, hyper *nn.Tensor, g *structure) *nn.Tensor {
	m := c.ToHeadTail.Forward(nn.Gather(hyper, g.edgeIDs), g.roles)
	q := nn.Gather(c.Q2.Forward(x), g.nodeIDs)
	k := c.K2.Forward(m)
	v := c.V2.Forward(m)

	scores := nn.HeadScores(q, k, c.NodeHeads).Scale(scale(x.Cols, c.NodeHeads))
	attn := nn.GroupSoftmax(scores, g.nodeIDs, x.Rows)
	return nn.ScatterAdd(nn.WeightHeads(v, attn), g.nodeIDs, x.Rows)
}

// scale is 1/sqrt(head size).
func scale(dim, heads int) float64 {
	return 1 / math.Sqrt(float64(dim/heads))
}

func (c *Conv) params(prefix string) []nn.Param {
	var ps []nn.Param
	for _, l := range []struct {
		name string
		lin  *nn.Linear
	}{
		{"q1", c.Q1}, {"k1", c.K1}, {"v1", c.V1}, {"edge_linear", c.EdgeLinear},
		{"q2", c.Q2}, {"k2", c.K2}, {"v2", c.V2}, {"u1", c.U1}, {"u2", c.U2},
	} {
		ps = append(ps, l.lin.Params(fmt.Sprintf("%s.%s", prefix, l.name))...)
	}
	ps = append(ps, c.HeadTail.Params(prefix+".head_tail")...)
	ps = append(ps, c.ToHeadTail.Params(prefix+".to_head_tail")...)
	return append(ps, c.Norm.Params(prefix+".norm")...)
}
