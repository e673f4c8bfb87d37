package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Input Serialization API
// =============================================================================

// ParseInput decodes JSON bytes into an [Input].
func ParseInput(data []byte) (Input, error) {
	return readInputFrom(bytes.NewReader(data))
}

// ReadInput decodes a JSON graph document from an io.Reader.
func ReadInput(r io.Reader) (Input, error) {
	return readInputFrom(r)
}

// ReadInputFile reads and decodes a JSON graph document from a file.
func ReadInputFile(path string) (Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return Input{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readInputFrom(f)
}

// Decode reads a JSON graph document and builds a [Store] from it.
// The returned store has no derived attributes; call
// [Store.ComputeDerived] before rendering.
func Decode(r io.Reader) (*Store, error) {
	in, err := readInputFrom(r)
	if err != nil {
		return nil, err
	}
	return LoadInput(in)
}

// MarshalInput encodes an [Input] as indented JSON.
func MarshalInput(in Input) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// =============================================================================
// Snapshot Serialization API
// =============================================================================

// WriteSnapshot writes the store's current state as indented JSON.
func WriteSnapshot(s *Store, w io.Writer) error {
	return writeJSON(w, s.Snapshot())
}

// WriteSnapshotFile writes the store's current state to a JSON file.
func WriteSnapshotFile(s *Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteSnapshot(s, f)
}

// Input returns the store's structure as an [Input], with current positions
// and derived sizes filled in. Decoding the result rebuilds an equivalent
// store.
func (s *Store) Input() Input {
	snap := s.Snapshot()
	in := Input{
		Nodes: make([]NodeInput, len(snap.Nodes)),
		Edges: make([]EdgeInput, len(snap.Edges)),
	}
	for i, n := range snap.Nodes {
		in.Nodes[i] = NodeInput{ID: n.ID, Label: n.Label, Status: n.Status, Size: n.Size, X: n.X, Y: n.Y}
	}
	for i, e := range snap.Edges {
		in.Edges[i] = EdgeInput{Source: e.Source, Target: e.Target}
		if e.Weight != 1 {
			w := e.Weight
			in.Edges[i].Weight = &w
		}
	}
	return in
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readInputFrom(r io.Reader) (Input, error) {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return Input{}, fmt.Errorf("decode: %w", err)
	}
	return in, nil
}
