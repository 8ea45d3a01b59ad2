// Package vocab maps the tokens of encoded graphs to dense integer ids.
//
// A Vocab holds one Entry per node type (the feature vocabulary of that
// type) plus the "types", "edge_types" and "labels" entries. Node-type
// feature entries reserve id 0 for <pad> and id 1 for <unk>. Built edge type
// entries carry <unk> after the last real edge type; "types" and "labels"
// reserve nothing. A Vocab is immutable once built or loaded and is safe for
// concurrent use.
package vocab

import (
	"errors"
	"fmt"
	"slices"

	"github.com/phobologic/codeclass/internal/model"
)

// Reserved tokens of node-type feature entries.
const (
	PadToken = "<pad>"
	UnkToken = "<unk>"
	PadID    = 0
	UnkID    = 1
)

// Names of the non-feature entries.
const (
	Types     = "types"
	EdgeTypes = "edge_types"
	Labels    = "labels"
)

var (
	// ErrUnseenType is returned for a node type with no feature entry. The
	// vocabulary and the model disagree, so the file cannot be encoded.
	ErrUnseenType = errors.New("unseen node type")
	// ErrUnseenEdgeType is returned for an edge type that is neither known
	// nor mappable to <unk>, which only happens with persisted vocabularies
	// whose edge type entry lacks one.
	ErrUnseenEdgeType = errors.New("unseen edge type")
	// ErrUnseenLabel is returned for a label absent from the vocabulary.
	ErrUnseenLabel = errors.New("unseen label")
	// ErrMalformed is returned by Load for persisted vocabularies whose ids
	// are not dense or whose node types lack a feature entry.
	ErrMalformed = errors.New("malformed vocabulary")
)

// Entry is a bidirectional token/id table with ids 0..Len()-1.
type Entry struct {
	ids   map[string]int
	words []string
}

func newEntry(reserved bool) *Entry {
	e := &Entry{ids: make(map[string]int)}
	if reserved {
		e.add(PadToken)
		e.add(UnkToken)
	}
	return e
}

func (e *Entry) add(word string) int {
	if id, ok := e.ids[word]; ok {
		return id
	}
	id := len(e.words)
	e.ids[word] = id
	e.words = append(e.words, word)
	return id
}

// ID returns the id of word.
func (e *Entry) ID(word string) (int, bool) {
	id, ok := e.ids[word]
	return id, ok
}

// Word returns the token with the given id.
func (e *Entry) Word(id int) (string, bool) {
	if id < 0 || id >= len(e.words) {
		return "", false
	}
	return e.words[id], true
}

// Len returns the number of ids in the entry, reserved ones included.
func (e *Entry) Len() int { return len(e.words) }

// Words returns the tokens in id order.
func (e *Entry) Words() []string { return slices.Clone(e.words) }

// Vocab is the frozen set of entries built from a corpus.
type Vocab struct {
	entries map[string]*Entry
}

// Entry returns the named entry, or nil.
func (v *Vocab) Entry(name string) *Entry { return v.entries[name] }

// NodeTypes returns the node type names in id order.
func (v *Vocab) NodeTypes() []string { return v.entries[Types].Words() }

// FeatureSizes returns the feature vocabulary size of every node type,
// indexed by type id.
func (v *Vocab) FeatureSizes() []int {
	types := v.entries[Types].words
	sizes := make([]int, len(types))
	for i, t := range types {
		sizes[i] = v.entries[t].Len()
	}
	return sizes
}

// NumEdgeTypes returns the size of the edge type entry.
func (v *Vocab) NumEdgeTypes() int { return v.entries[EdgeTypes].Len() }

// NumLabels returns the number of known labels.
func (v *Vocab) NumLabels() int { return v.entries[Labels].Len() }

// TypeID returns the id of a node type.
func (v *Vocab) TypeID(typ string) (int, error) {
	id, ok := v.entries[Types].ID(typ)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnseenType, typ)
	}
	return id, nil
}

// FeatureID returns the id of feature within the entry of its node type.
// Unknown features map to UnkID.
func (v *Vocab) FeatureID(typ, feature string) (int, error) {
	e, ok := v.entries[typ]
	if !ok || !v.hasType(typ) {
		return 0, fmt.Errorf("%w: %q", ErrUnseenType, typ)
	}
	if id, ok := e.ID(feature); ok {
		return id, nil
	}
	return UnkID, nil
}

// EdgeTypeID returns the id of an edge type. Unknown edge types map to the
// <unk> id when the entry carries one.
func (v *Vocab) EdgeTypeID(edgeType string) (int, error) {
	e := v.entries[EdgeTypes]
	if id, ok := e.ID(edgeType); ok {
		return id, nil
	}
	if id, ok := e.ID(UnkToken); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnseenEdgeType, edgeType)
}

// LabelID returns the id of a label.
func (v *Vocab) LabelID(label string) (int, error) {
	id, ok := v.entries[Labels].ID(label)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnseenLabel, label)
	}
	return id, nil
}

// Label returns the label with the given id.
func (v *Vocab) Label(id int) (string, error) {
	w, ok := v.entries[Labels].Word(id)
	if !ok {
		return "", fmt.Errorf("%w: id %d", ErrUnseenLabel, id)
	}
	return w, nil
}

func (v *Vocab) hasType(typ string) bool {
	_, ok := v.entries[Types].ID(typ)
	return ok
}

// Encode replaces every token of g by its id. A graph without a label gets
// label id -1.
func (v *Vocab) Encode(g *model.Graph) (*model.Tensors, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", g.File, err)
	}

	t := &model.Tensors{
		Features:  make([]int, g.NumNodes()),
		Types:     make([]int, g.NumNodes()),
		EdgeTypes: make([]int, g.NumEdges()),
		EdgeIDs:   slices.Clone(g.EdgeIDs),
		NodeIDs:   slices.Clone(g.NodeIDs),
		Roles:     slices.Clone(g.Roles),
		Label:     -1,
	}

	var err error
	for i, typ := range g.NodeTypes {
		if t.Types[i], err = v.TypeID(typ); err != nil {
			return nil, fmt.Errorf("encoding %s: node %d: %w", g.File, i, err)
		}
		if t.Features[i], err = v.FeatureID(typ, g.NodeFeatures[i]); err != nil {
			return nil, fmt.Errorf("encoding %s: node %d: %w", g.File, i, err)
		}
	}
	for i, et := range g.EdgeTypes {
		if t.EdgeTypes[i], err = v.EdgeTypeID(et); err != nil {
			return nil, fmt.Errorf("encoding %s: edge %d: %w", g.File, i, err)
		}
	}
	if g.Label != "" {
		if t.Label, err = v.LabelID(g.Label); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", g.File, err)
		}
	}
	return t, nil
}
