package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
)

func nodes(ids ...string) []NodeInput {
	out := make([]NodeInput, len(ids))
	for i, id := range ids {
		out[i] = NodeInput{ID: id, Label: id + ".example"}
	}
	return out
}

func edges(pairs ...string) []EdgeInput {
	var out []EdgeInput
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, EdgeInput{Source: pairs[i], Target: pairs[i+1]})
	}
	return out
}

func mustLoad(t *testing.T, n []NodeInput, e []EdgeInput) *Store {
	t.Helper()
	s, err := Load(n, e)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []NodeInput
		edges     []EdgeInput
		wantNodes int
		wantEdges int
		wantErr   error
	}{
		{name: "Empty", wantNodes: 0, wantEdges: 0},
		{name: "Chain", nodes: nodes("a", "b", "c"), edges: edges("a", "b", "b", "c"), wantNodes: 3, wantEdges: 2},
		{name: "SelfLoop", nodes: nodes("a"), edges: edges("a", "a"), wantNodes: 1, wantEdges: 1},
		{name: "BothDirections", nodes: nodes("a", "b"), edges: edges("a", "b", "b", "a"), wantNodes: 2, wantEdges: 2},
		{name: "EmptyID", nodes: []NodeInput{{ID: ""}}, wantErr: ErrInvalidNodeID},
		{name: "DuplicateNode", nodes: nodes("a", "a"), wantErr: ErrDuplicateNodeID},
		{name: "DuplicateEdge", nodes: nodes("a", "b"), edges: edges("a", "b", "a", "b"), wantErr: ErrDuplicateEdge},
		{name: "UnknownTarget", nodes: nodes("a"), edges: edges("a", "z"), wantErr: ErrUnknownNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(tt.nodes, tt.edges)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
				}
				if s != nil {
					t.Error("Load() returned a store alongside an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if s.Len() != tt.wantNodes {
				t.Errorf("Len() = %d, want %d", s.Len(), tt.wantNodes)
			}
			if s.EdgeLen() != tt.wantEdges {
				t.Errorf("EdgeLen() = %d, want %d", s.EdgeLen(), tt.wantEdges)
			}
		})
	}
}

func TestLoadIntegrityError(t *testing.T) {
	_, err := Load(nodes("a", "b"), edges("a", "b", "ghost", "a"))

	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %T, want *IntegrityError", err)
	}
	if ie.Index != 1 || ie.Missing != "ghost" {
		t.Errorf("IntegrityError = %+v, want index 1 missing ghost", ie)
	}
	if !apperrors.Is(err, apperrors.ErrCodeIntegrity) {
		t.Error("IntegrityError does not carry ErrCodeIntegrity")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("Error() = %q, want mention of ghost", err.Error())
	}
}

func TestLoadPreservesOrder(t *testing.T) {
	s := mustLoad(t, nodes("c", "a", "b"), nil)
	if got := s.IDs(); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("IDs() = %v, want [c a b]", got)
	}
}

func TestNeighbors(t *testing.T) {
	s := mustLoad(t, nodes("a", "b", "c", "d"), edges("a", "b", "c", "a", "b", "a", "a", "a"))

	tests := []struct {
		id   string
		want []string
	}{
		{"a", []string{"b", "c"}},
		{"b", []string{"a"}},
		{"c", []string{"a"}},
		{"d", []string{}},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := s.Neighbors(tt.id)
			if tt.want == nil {
				if got != nil {
					t.Errorf("Neighbors(%q) = %v, want nil", tt.id, got)
				}
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Neighbors(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestDegrees(t *testing.T) {
	s := mustLoad(t, nodes("hub", "x", "y", "z"), edges("x", "hub", "y", "hub", "z", "hub", "hub", "x"))

	if got := s.InDegree("hub"); got != 3 {
		t.Errorf("InDegree(hub) = %d, want 3", got)
	}
	if got := s.OutDegree("hub"); got != 1 {
		t.Errorf("OutDegree(hub) = %d, want 1", got)
	}
	if got := s.InDegree("nope"); got != 0 {
		t.Errorf("InDegree(nope) = %d, want 0", got)
	}
	i, _ := s.IndexOf("hub")
	if got := s.DegreeAt(i); got != 4 {
		t.Errorf("DegreeAt(hub) = %d, want 4", got)
	}
	if !s.HasEdge("hub", "x") || s.HasEdge("x", "y") {
		t.Error("HasEdge returned wrong result")
	}
}

func TestComputeDerived(t *testing.T) {
	in := []NodeInput{
		{ID: "a", Status: "Relevant"},
		{ID: "b", Status: "Not Relevant"},
		{ID: "c", Status: "Irrelevant"},
		{ID: "d", Status: ""},
	}
	s := mustLoad(t, in, edges("b", "a", "c", "a", "d", "a"))
	s.ComputeDerived(DefaultStyle())

	a, _ := s.Node("a")
	if math.Abs(a.Size-1.3) > 1e-9 {
		t.Errorf("size(a) = %v, want 1.3", a.Size)
	}
	if a.Color != DefaultRelevantColor || a.OriginalColor != DefaultRelevantColor {
		t.Errorf("color(a) = %q/%q, want relevant color", a.Color, a.OriginalColor)
	}

	// Substring match is case-sensitive: "Not Relevant" contains "Relevant".
	b, _ := s.Node("b")
	if b.Color != DefaultRelevantColor {
		t.Errorf("color(b) = %q, want %q", b.Color, DefaultRelevantColor)
	}
	c, _ := s.Node("c")
	if c.Color != DefaultOtherColor {
		t.Errorf("color(c) = %q, want %q", c.Color, DefaultOtherColor)
	}
	if c.Size != DefaultBaseSize {
		t.Errorf("size(c) = %v, want %v", c.Size, DefaultBaseSize)
	}

	for _, e := range s.Edges() {
		if e.Color != DefaultEdgeColor || e.OriginalColor != DefaultEdgeColor || e.Size != DefaultEdgeSize {
			t.Errorf("edge %s→%s = %+v, want default edge style", e.Source, e.Target, e)
		}
	}
}

func TestNodeSize(t *testing.T) {
	st := DefaultStyle()
	tests := []struct {
		in   int
		want float64
	}{
		{0, 1},
		{10, 2},
		{500, 51},
		{1000, 51},
	}
	for _, tt := range tests {
		if got := st.NodeSize(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NodeSize(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}

	prev := st.NodeSize(0)
	for d := 1; d < 1000; d++ {
		cur := st.NodeSize(d)
		if cur < prev {
			t.Fatalf("NodeSize not monotone at %d: %v < %v", d, cur, prev)
		}
		prev = cur
	}
}

func TestRandomizePositions(t *testing.T) {
	ids := make([]string, 200)
	for i := range ids {
		ids[i] = string(rune('a'+i%26)) + strings.Repeat("x", i/26)
	}
	s := mustLoad(t, nodes(ids...), nil)
	s.ComputeDerived(DefaultStyle())
	s.SetColor(ids[0], "#000000")

	s.RandomizePositions(DefaultSpreadWidth, DefaultSpreadHeight, rand.New(rand.NewPCG(1, 2)))

	for i := range s.Len() {
		x, y := s.PositionAt(i)
		if math.Abs(x) > DefaultSpreadWidth/2 || math.Abs(y) > DefaultSpreadHeight/2 {
			t.Fatalf("node %d at (%v, %v) outside spread", i, x, y)
		}
	}
	n, _ := s.Node(ids[0])
	if n.Color != "#000000" {
		t.Errorf("RandomizePositions changed color to %q", n.Color)
	}
}

func TestSetPositionIgnoresNonFinite(t *testing.T) {
	s := mustLoad(t, nodes("a"), nil)
	s.SetPosition("a", 1, 2)
	s.SetPosition("a", math.NaN(), 5)
	s.SetPosition("a", 3, math.Inf(1))

	x, y, ok := s.Position("a")
	if !ok || x != 1 || y != 2 {
		t.Errorf("Position(a) = (%v, %v, %v), want (1, 2, true)", x, y, ok)
	}
}

func TestPaintRestore(t *testing.T) {
	s := mustLoad(t, nodes("a", "b"), edges("a", "b"))
	s.ComputeDerived(DefaultStyle())

	s.Paint(func(p *Painter) {
		p.SetColor("a", "#ffffff")
		p.SetHighlighted("a", true)
		p.SetEdgeColorAt(0, "#ffffff")
	})
	if n, _ := s.Node("a"); !n.Highlighted || n.Color != "#ffffff" {
		t.Fatalf("after paint: %+v", n)
	}

	s.Paint(func(p *Painter) { p.Restore() })
	for _, n := range s.Nodes() {
		if n.Color != n.OriginalColor || n.Highlighted {
			t.Errorf("node %s not restored: %+v", n.ID, n)
		}
	}
	if e, _ := s.Edge("a", "b"); e.Color != e.OriginalColor {
		t.Errorf("edge not restored: %+v", e)
	}
}

func TestRelevant(t *testing.T) {
	in := []NodeInput{{ID: "a", Status: "Relevant"}, {ID: "b", Status: "Other"}, {ID: "c", Status: "Relevant (manual)"}}
	s := mustLoad(t, in, nil)
	if got := s.Relevant("Relevant"); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("Relevant() = %v, want [a c]", got)
	}
	if got := s.Relevant(""); got != nil {
		t.Errorf("Relevant(\"\") = %v, want nil", got)
	}
}

func TestValidate(t *testing.T) {
	s := mustLoad(t, nodes("a", "b"), edges("a", "b"))
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestSnapshotConcurrent(t *testing.T) {
	s := mustLoad(t, nodes("a", "b", "c"), edges("a", "b", "b", "c"))
	s.ComputeDerived(DefaultStyle())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			s.SetPositionAt(i%3, float64(i), float64(-i))
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			s.Paint(func(p *Painter) {
				p.SetColor("a", "#ffffff")
				p.SetColor("b", "#ffffff")
			})
			s.Paint(func(p *Painter) { p.Restore() })
		}
	}()

	for range 200 {
		snap := s.Snapshot()
		// a and b change together inside one Paint.
		if (snap.Nodes[0].Color == "#ffffff") != (snap.Nodes[1].Color == "#ffffff") {
			t.Fatal("snapshot observed a partial paint")
		}
	}
	wg.Wait()
}

func TestDecode(t *testing.T) {
	doc := `{"nodes":[{"id":"1","label":"a.com","status":"Relevant"},{"id":"2","label":"b.com"}],
	         "edges":[{"source":"1","target":"2","weight":2.5}]}`

	s, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Len() != 2 || s.EdgeLen() != 1 {
		t.Fatalf("Decode = %d nodes, %d edges", s.Len(), s.EdgeLen())
	}
	if got := s.Links()[0].Weight; got != 2.5 {
		t.Errorf("weight = %v, want 2.5", got)
	}

	if _, err := Decode(strings.NewReader("{not json")); err == nil {
		t.Error("Decode accepted malformed JSON")
	}
}

func TestInputRoundTrip(t *testing.T) {
	s := mustLoad(t, nodes("a", "b"), edges("a", "b"))
	s.SetPosition("a", 1.5, -2)

	data, err := MarshalInput(s.Input())
	if err != nil {
		t.Fatalf("MarshalInput: %v", err)
	}
	in, err := ParseInput(data)
	if err != nil {
		t.Fatalf("ParseInput: %v", err)
	}
	back, err := LoadInput(in)
	if err != nil {
		t.Fatalf("LoadInput: %v", err)
	}
	if x, y, _ := back.Position("a"); x != 1.5 || y != -2 {
		t.Errorf("position = (%v, %v), want (1.5, -2)", x, y)
	}
	if !back.HasEdge("a", "b") {
		t.Error("edge lost in round trip")
	}
}

func TestWriteSnapshotFile(t *testing.T) {
	s := mustLoad(t, nodes("a"), nil)
	s.ComputeDerived(DefaultStyle())
	path := filepath.Join(t.TempDir(), "snap.json")

	if err := WriteSnapshotFile(s, path); err != nil {
		t.Fatalf("WriteSnapshotFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var snap Snapshot
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Nodes) != 1 || snap.Nodes[0].Color != DefaultOtherColor {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestReadInputFileMissing(t *testing.T) {
	if _, err := ReadInputFile(filepath.Join(t.TempDir(), "nope.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}
