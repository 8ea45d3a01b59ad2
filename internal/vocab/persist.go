package vocab

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// MarshalJSON encodes the vocabulary as {entry name: {token: id}}.
func (v *Vocab) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]int, len(v.entries))
	for name, e := range v.entries {
		out[name] = e.ids
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and checks a persisted vocabulary.
func (v *Vocab) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	entries := make(map[string]*Entry, len(raw))
	for name, ids := range raw {
		e, err := entryFromIDs(ids)
		if err != nil {
			return fmt.Errorf("%w: entry %q: %v", ErrMalformed, name, err)
		}
		entries[name] = e
	}

	for _, name := range []string{Types, EdgeTypes, Labels} {
		if entries[name] == nil {
			return fmt.Errorf("%w: missing entry %q", ErrMalformed, name)
		}
	}
	for _, typ := range entries[Types].words {
		e := entries[typ]
		if e == nil {
			return fmt.Errorf("%w: node type %q has no feature entry", ErrMalformed, typ)
		}
		if pad, _ := e.Word(PadID); pad != PadToken {
			return fmt.Errorf("%w: entry %q: id %d is not %s", ErrMalformed, typ, PadID, PadToken)
		}
		if unk, _ := e.Word(UnkID); unk != UnkToken {
			return fmt.Errorf("%w: entry %q: id %d is not %s", ErrMalformed, typ, UnkID, UnkToken)
		}
	}

	v.entries = entries
	return nil
}

// entryFromIDs rebuilds an Entry, requiring ids to be exactly 0..len-1.
func entryFromIDs(ids map[string]int) (*Entry, error) {
	words := make([]string, len(ids))
	seen := make([]bool, len(ids))
	for w, id := range ids {
		if id < 0 || id >= len(ids) {
			return nil, fmt.Errorf("id %d of %q out of range [0,%d)", id, w, len(ids))
		}
		if seen[id] {
			return nil, fmt.Errorf("id %d assigned twice", id)
		}
		seen[id] = true
		words[id] = w
	}
	e := &Entry{ids: make(map[string]int, len(ids)), words: words}
	for w, id := range ids {
		e.ids[w] = id
	}
	return e, nil
}

// Write writes the vocabulary as indented JSON.
func (v *Vocab) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Read decodes a vocabulary written by Write.
func Read(r io.Reader) (*Vocab, error) {
	v := &Vocab{}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return nil, fmt.Errorf("decoding vocabulary: %w", err)
	}
	return v, nil
}

// Save writes the vocabulary to path.
func (v *Vocab) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating vocabulary file: %w", err)
	}
	if err := v.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing vocabulary: %w", err)
	}
	return f.Close()
}

// Load reads a vocabulary from path.
func Load(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary: %w", err)
	}
	defer f.Close()
	return Read(f)
}
