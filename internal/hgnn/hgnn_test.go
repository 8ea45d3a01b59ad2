package hgnn

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phobologic/codeclass/internal/model"
	"github.com/phobologic/codeclass/internal/nn"
	"github.com/phobologic/codeclass/internal/vocab"
)

func testConfig() Config {
	return Config{
		FeatureSizes:  []int{6, 6},
		EdgeVocabSize: 4,
		NumLabels:     3,
		EmbedSize:     8,
		DimSize:       8,
		NumLayers:     2,
		EdgeHeads:     2,
		NodeHeads:     4,
		PoolHeads:     2,
		Hidden:        []int{16},
		Dropout:       0.2,
	}
}

func assignTensors() *model.Tensors {
	return &model.Tensors{
		Features:  []int{3, 2, 2, 4, 3},
		Types:     []int{0, 0, 1, 0, 1},
		EdgeTypes: []int{2, 0, 1, 1},
		EdgeIDs:   []int{0, 0, 1, 1, 2, 2, 3, 3},
		NodeIDs:   []int{0, 1, 1, 2, 0, 3, 3, 4},
		Roles:     []model.Role{0, 1, 0, 1, 0, 1, 0, 1},
		Label:     0,
	}
}

func listTensors() *model.Tensors {
	// One edge with three tails.
	return &model.Tensors{
		Features:  []int{5, 2, 3, 4},
		Types:     []int{0, 1, 1, 1},
		EdgeTypes: []int{3},
		EdgeIDs:   []int{0, 0, 0, 0},
		NodeIDs:   []int{0, 1, 2, 3},
		Roles:     []model.Role{0, 1, 1, 1},
		Label:     2,
	}
}

func rootOnly() *model.Tensors {
	return &model.Tensors{Features: []int{1}, Types: []int{0}, Label: -1}
}

func newTestModel(t *testing.T, cfg Config) *Model {
	t.Helper()
	m, err := New(cfg, 42)
	require.NoError(t, err)
	return m
}

func TestForwardShapeAndSoftmax(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, testConfig())
	logits, err := m.Forward(model.Collate(assignTensors()))
	require.NoError(t, err)
	require.Equal(t, 1, logits.Rows)
	require.Equal(t, 3, logits.Cols)

	probs := Softmax(logits)
	var sum float64
	for _, p := range probs.Row(0) {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1, sum, 1e-5)
}

func TestBatchMatchesIndividualGraphs(t *testing.T) {
	t.Parallel()

	for _, headsInEdge := range []bool{false, true} {
		cfg := testConfig()
		cfg.HeadsInEdgeUpdate = headsInEdge
		m := newTestModel(t, cfg)

		graphs := []*model.Tensors{assignTensors(), rootOnly(), listTensors(), assignTensors()}
		batched, err := m.Forward(model.Collate(graphs...))
		require.NoError(t, err)
		require.Equal(t, len(graphs), batched.Rows)

		for i, g := range graphs {
			single, err := m.Forward(model.Collate(g))
			require.NoError(t, err)
			assert.InDeltaSlice(t, single.Row(0), batched.Row(i), 1e-9, "graph %d heads=%v", i, headsInEdge)
		}
	}
}

func TestForwardDeterministic(t *testing.T) {
	t.Parallel()

	b := model.Collate(assignTensors(), listTensors())
	a, err := newTestModel(t, testConfig()).Forward(b)
	require.NoError(t, err)
	c, err := newTestModel(t, testConfig()).Forward(b)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestHeadsInEdgeUpdateChangesResult(t *testing.T) {
	t.Parallel()

	b := model.Collate(assignTensors())
	tails, err := newTestModel(t, testConfig()).Forward(b)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.HeadsInEdgeUpdate = true
	all, err := newTestModel(t, cfg).Forward(b)
	require.NoError(t, err)

	assert.NotEqual(t, tails.Data, all.Data)
}

func TestDropoutOnlyWithRand(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Dropout = 0.5
	cfg.Hidden = []int{64}
	m := newTestModel(t, cfg)
	b := model.Collate(assignTensors())

	plain, err := m.Forward(b)
	require.NoError(t, err)
	again, err := m.ForwardWith(b, ForwardOptions{})
	require.NoError(t, err)
	assert.Equal(t, plain, again)

	noisy, err := m.ForwardWith(b, ForwardOptions{Rand: rand.New(rand.NewPCG(1, 2))})
	require.NoError(t, err)
	assert.NotEqual(t, plain.Data, noisy.Data)
}

func TestForwardRejectsOutOfRangeIDs(t *testing.T) {
	t.Parallel()

	badFeature := assignTensors()
	badFeature.Features[2] = 6

	badType := assignTensors()
	badType.Types[1] = 2

	badEdge := assignTensors()
	badEdge.EdgeTypes[0] = 4

	dangling := assignTensors()
	dangling.NodeIDs[3] = 9

	m := newTestModel(t, testConfig())
	for name, g := range map[string]*model.Tensors{
		"feature":  badFeature,
		"type":     badType,
		"edge":     badEdge,
		"dangling": dangling,
	} {
		_, err := m.Forward(model.Collate(g))
		assert.ErrorIs(t, err, model.ErrShape, name)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no types", func(c *Config) { c.FeatureSizes = nil }},
		{"empty type", func(c *Config) { c.FeatureSizes[1] = 0 }},
		{"no labels", func(c *Config) { c.NumLabels = 0 }},
		{"no layers", func(c *Config) { c.NumLayers = 0 }},
		{"edge heads", func(c *Config) { c.EdgeHeads = 3 }},
		{"node heads", func(c *Config) { c.NodeHeads = 5 }},
		{"pool heads", func(c *Config) { c.PoolHeads = 16 }},
		{"hidden", func(c *Config) { c.Hidden = []int{8, 0} }},
		{"dropout", func(c *Config) { c.Dropout = 1 }},
	}

	require.NoError(t, testConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfig)
			_, err := New(cfg, 1)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestConfigFromVocab(t *testing.T) {
	t.Parallel()

	g := &model.Graph{
		Label:        "sort",
		NodeTypes:    []string{"ast", "ident"},
		NodeFeatures: []string{"Name", "x"},
		EdgeTypes:    []string{"id"},
		EdgeIDs:      []int{0, 0},
		NodeIDs:      []int{0, 1},
		Roles:        []model.Role{model.Head, model.Tail},
	}
	v := vocab.Build([]*model.Graph{g}, 1)

	cfg := ConfigFromVocab(v, DefaultConfig())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{3, 3}, cfg.FeatureSizes)
	assert.Equal(t, 2, cfg.EdgeVocabSize)
	assert.Equal(t, 1, cfg.NumLabels)
	assert.Equal(t, 128, cfg.DimSize)

	tensors, err := v.Encode(g)
	require.NoError(t, err)
	m, err := New(cfg, 7)
	require.NoError(t, err)
	logits, err := m.Forward(model.Collate(tensors))
	require.NoError(t, err)
	assert.Equal(t, 1, logits.Cols)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.HeadsInEdgeUpdate = true
	m := newTestModel(t, cfg)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Config(), loaded.Config())

	b := model.Collate(assignTensors(), listTensors())
	want, err := m.Forward(b)
	require.NoError(t, err)
	got, err := loaded.Forward(b)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsBadBlobs(t *testing.T) {
	t.Parallel()

	encode := func(t *testing.T, mutate func(*blob)) *bytes.Buffer {
		t.Helper()
		m := newTestModel(t, testConfig())
		b := blob{Version: blobVersion, Config: m.cfg, Params: map[string]*nn.Tensor{}}
		for _, p := range m.params() {
			b.Params[p.Name] = p.Value
		}
		mutate(&b)
		var buf bytes.Buffer
		require.NoError(t, msgpack.NewEncoder(&buf).Encode(&b))
		return &buf
	}

	tests := []struct {
		name    string
		mutate  func(*blob)
		wantErr error
	}{
		{"version", func(b *blob) { b.Version = 99 }, ErrVersion},
		{"config", func(b *blob) { b.Config.DimSize = 7 }, ErrConfig},
		{"missing", func(b *blob) { delete(b.Params, "pool.query") }, model.ErrShape},
		{"shape", func(b *blob) { b.Params["pool.query"] = nn.New(1, 4) }, model.ErrShape},
		{"extra", func(b *blob) { b.Params["bogus"] = nn.New(1, 1) }, model.ErrShape},
		{"short data", func(b *blob) {
			b.Params["edge_embedding.weight"] = &nn.Tensor{Rows: 4, Cols: 8, Data: make([]float64, 3)}
		}, model.ErrShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(encode(t, tt.mutate))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParamNamesUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, p := range newTestModel(t, testConfig()).params() {
		assert.False(t, seen[p.Name], p.Name)
		seen[p.Name] = true
	}
	assert.True(t, seen["convs.1.to_head_tail.1.weight"])
	assert.True(t, seen["embedding.1.weight"])
}
