package hgnn

import (
	"fmt"
	"math/rand/v2"

	"github.com/phobologic/codeclass/internal/model"
	"github.com/phobologic/codeclass/internal/nn"
)

// Model is the full classifier. It holds only parameters; Forward has no
// side effects and may be called from several goroutines at once.
type Model struct {
	cfg Config

	embedding     *HeteroEmbedding
	edgeEmbedding *nn.Embedding
	convs         []*Conv
	poolQuery     *nn.Tensor // 1 x DimSize
	mlp           *nn.MLP
}

// New returns a freshly initialized model. The same seed always yields the
// same parameters.
func New(cfg Config, seed uint64) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	m := &Model{
		cfg:           cfg,
		embedding:     newHeteroEmbedding(cfg, rng),
		edgeEmbedding: nn.NewEmbedding(cfg.EdgeVocabSize, cfg.DimSize, false, rng),
		convs:         make([]*Conv, cfg.NumLayers),
	}
	for i := range m.convs {
		m.convs[i] = newConv(cfg, rng)
	}
	m.poolQuery = nn.XavierUniform(1, cfg.DimSize, rng)
	m.mlp = nn.NewMLP(cfg.mlpSizes(), cfg.Dropout, rng)
	return m, nil
}

// Config returns the model's architecture.
func (m *Model) Config() Config { return m.cfg }

// ForwardOptions adjusts a forward pass.
type ForwardOptions struct {
	// Rand enables classifier dropout. Nil gives the deterministic
	// inference pass.
	Rand *rand.Rand
}

// Forward returns the class logits of every graph in b as a
// NumGraphs x NumLabels tensor.
func (m *Model) Forward(b *model.Batch) (*nn.Tensor, error) {
	return m.ForwardWith(b, ForwardOptions{})
}

// ForwardWith is Forward with options.
func (m *Model) ForwardWith(b *model.Batch, opts ForwardOptions) (*nn.Tensor, error) {
	if err := m.check(b); err != nil {
		return nil, err
	}
	g := newStructure(b)

	x := m.embedding.Forward(b.Features, b.Types)
	edgeAttr := m.edgeEmbedding.Lookup(b.EdgeTypes)
	for _, conv := range m.convs {
		x = conv.Forward(x, edgeAttr, g)
	}

	pooled := m.pool(x, g)
	return m.mlp.Forward(pooled, opts.Rand), nil
}

// pool computes one vector per graph: the query scores every node per head,
// scores are normalized among the nodes of each graph, and the weighted node
// vectors are summed.
func (m *Model) pool(x *nn.Tensor, g *structure) *nn.Tensor {
	scores := nn.HeadScores(m.poolQuery, x, m.cfg.PoolHeads)
	attn := nn.GroupSoftmax(scores, g.membership, g.numGraphs)
	return nn.ScatterAdd(nn.WeightHeads(x, attn), g.membership, g.numGraphs)
}

// check rejects batches whose ids fall outside the model's vocabularies.
func (m *Model) check(b *model.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	for i, t := range b.Types {
		if t < 0 || t >= m.cfg.NumTypes() {
			return fmt.Errorf("%w: node %d: type id %d out of range [0,%d)", model.ErrShape, i, t, m.cfg.NumTypes())
		}
		if f := b.Features[i]; f < 0 || f >= m.cfg.FeatureSizes[t] {
			return fmt.Errorf("%w: node %d: feature id %d out of range [0,%d) for type %d",
				model.ErrShape, i, f, m.cfg.FeatureSizes[t], t)
		}
	}
	for e, et := range b.EdgeTypes {
		if et < 0 || et >= m.cfg.EdgeVocabSize {
			return fmt.Errorf("%w: edge %d: type id %d out of range [0,%d)", model.ErrShape, e, et, m.cfg.EdgeVocabSize)
		}
	}
	return nil
}

// params lists every learnable tensor in a fixed order.
func (m *Model) params() []nn.Param {
	ps := m.embedding.params()
	ps = append(ps, m.edgeEmbedding.Params("edge_embedding")...)
	for i, c := range m.convs {
		ps = append(ps, c.params(fmt.Sprintf("convs.%d", i))...)
	}
	ps = append(ps, nn.Param{Name: "pool.query", Value: m.poolQuery})
	return append(ps, m.mlp.Params("mlp")...)
}

// Softmax turns logits into per-graph class probabilities, normalizing each
// row independently.
func Softmax(logits *nn.Tensor) *nn.Tensor {
	return nn.Softmax(logits)
}

// structure is the incidence table of a batch in the form the layers use.
type structure struct {
	edgeIDs []int
	nodeIDs []int
	roles   []int

	tailEdges []int
	tailNodes []int
	tailRoles []int

	membership []int
	numGraphs  int
}

func newStructure(b *model.Batch) *structure {
	s := &structure{
		edgeIDs:    b.EdgeIDs,
		nodeIDs:    b.NodeIDs,
		roles:      make([]int, len(b.Roles)),
		membership: b.Membership,
		numGraphs:  b.NumGraphs,
	}
	for i, r := range b.Roles {
		s.roles[i] = int(r)
		if r == model.Tail {
			s.tailEdges = append(s.tailEdges, b.EdgeIDs[i])
			s.tailNodes = append(s.tailNodes, b.NodeIDs[i])
			s.tailRoles = append(s.tailRoles, int(r))
		}
	}
	return s
}
