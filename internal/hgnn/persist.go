package hgnn

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/phobologic/codeclass/internal/model"
	"github.com/phobologic/codeclass/internal/nn"
)

// blobVersion is bumped whenever parameter names or layouts change.
const blobVersion = 1

// ErrVersion is returned when loading a blob written by an incompatible version.
var ErrVersion = errors.New("unsupported model version")

type blob struct {
	Version int                   `msgpack:"version"`
	Config  Config                `msgpack:"config"`
	Params  map[string]*nn.Tensor `msgpack:"params"`
}

// Save writes the architecture and every parameter to w.
func (m *Model) Save(w io.Writer) error {
	b := blob{Version: blobVersion, Config: m.cfg, Params: make(map[string]*nn.Tensor)}
	for _, p := range m.params() {
		b.Params[p.Name] = p.Value
	}
	enc := msgpack.NewEncoder(w)
	// Sorted keys make equal models encode to equal bytes.
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&b); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return nil
}

// Load reads a model written by Save. Every expected parameter must be
// present with its expected shape, and no others may appear.
func Load(r io.Reader) (*Model, error) {
	var b blob
	if err := msgpack.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, b.Version)
	}

	m, err := New(b.Config, 0)
	if err != nil {
		return nil, err
	}

	params := m.params()
	for _, p := range params {
		t, ok := b.Params[p.Name]
		if !ok || t == nil {
			return nil, fmt.Errorf("%w: missing parameter %q", model.ErrShape, p.Name)
		}
		if err := t.Check(); err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", model.ErrShape, p.Name, err)
		}
		if !t.SameShape(p.Value) {
			return nil, fmt.Errorf("%w: parameter %q is %s, want %s", model.ErrShape, p.Name, t.Shape(), p.Value.Shape())
		}
		copy(p.Value.Data, t.Data)
	}
	if len(b.Params) != len(params) {
		return nil, fmt.Errorf("%w: blob has %d parameters, want %d", model.ErrShape, len(b.Params), len(params))
	}
	return m, nil
}

// SaveFile writes the model to path.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model: %w", err)
	}
	defer f.Close()
	return Load(f)
}
