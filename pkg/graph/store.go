package graph

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
)

var (
	// ErrInvalidNodeID is returned by [Load] when a node id is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Load] when two nodes share an id.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrDuplicateEdge is returned by [Load] when the same ordered
	// (source, target) pair appears twice.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrUnknownNode is wrapped by [IntegrityError].
	ErrUnknownNode = errors.New("unknown node")
)

// IntegrityError reports an edge that references a node id missing from the
// node list. Load fails atomically when it is returned.
type IntegrityError struct {
	Index   int    // Position of the offending edge in the input
	Source  string // Edge source id
	Target  string // Edge target id
	Missing string // The id that could not be resolved
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("edge %d (%s → %s): unknown node %q", e.Index, e.Source, e.Target, e.Missing)
}

// Unwrap returns ErrUnknownNode.
func (e *IntegrityError) Unwrap() error { return ErrUnknownNode }

// Code returns the structured error code for API responses.
func (e *IntegrityError) Code() apperrors.Code { return apperrors.ErrCodeIntegrity }

type node struct {
	id     string
	label  string
	status string

	// Positions are float64 bit patterns. The layout goroutine writes them
	// while renderers read them; no lock is taken and readers may see x and y
	// from different iterations.
	x, y atomic.Uint64

	// Guarded by Store.mu.
	size          float64
	color         string
	originalColor string
	highlighted   bool
}

type edge struct {
	source, target int
	weight         float64

	// Guarded by Store.mu.
	size          float64
	color         string
	originalColor string
}

// Store owns the nodes and edges of one loaded graph. It is the single source
// of truth read by renderers and written by the layout engine (positions) and
// the interaction controller (colors, highlight flags).
//
// Structure is immutable after [Load]: nodes and edges are never added or
// removed. A reload builds a new Store.
type Store struct {
	mu sync.RWMutex // visual attributes

	nodes []*node
	index map[string]int
	edges []*edge
	pairs map[[2]int]int

	in        [][]int // node -> incoming edge indices
	out       [][]int // node -> outgoing edge indices
	neighbors [][]int // node -> distinct adjacent node indices, undirected
}

// Load builds a Store from nodes and edges. Node order is preserved and
// defines the iteration order of every enumeration method.
//
// Returns ErrInvalidNodeID, ErrDuplicateNodeID, ErrDuplicateEdge or an
// *IntegrityError; on error no Store is returned.
func Load(nodes []NodeInput, edges []EdgeInput) (*Store, error) {
	s := &Store{
		nodes: make([]*node, 0, len(nodes)),
		index: make(map[string]int, len(nodes)),
		edges: make([]*edge, 0, len(edges)),
		pairs: make(map[[2]int]int, len(edges)),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, ErrInvalidNodeID
		}
		if _, exists := s.index[n.ID]; exists {
			return nil, fmt.Errorf("node %s: %w", n.ID, ErrDuplicateNodeID)
		}
		nd := &node{id: n.ID, label: n.Label, status: n.Status, size: n.Size}
		nd.x.Store(math.Float64bits(finiteOr(n.X, 0)))
		nd.y.Store(math.Float64bits(finiteOr(n.Y, 0)))
		s.index[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, nd)
	}

	s.in = make([][]int, len(s.nodes))
	s.out = make([][]int, len(s.nodes))
	s.neighbors = make([][]int, len(s.nodes))

	for i, e := range edges {
		src, ok := s.index[e.Source]
		if !ok {
			return nil, &IntegrityError{Index: i, Source: e.Source, Target: e.Target, Missing: e.Source}
		}
		dst, ok := s.index[e.Target]
		if !ok {
			return nil, &IntegrityError{Index: i, Source: e.Source, Target: e.Target, Missing: e.Target}
		}
		key := [2]int{src, dst}
		if _, dup := s.pairs[key]; dup {
			return nil, fmt.Errorf("edge %s → %s: %w", e.Source, e.Target, ErrDuplicateEdge)
		}
		w := 1.0
		if e.Weight != nil {
			w = *e.Weight
		}
		s.pairs[key] = len(s.edges)
		s.in[dst] = append(s.in[dst], len(s.edges))
		s.out[src] = append(s.out[src], len(s.edges))
		s.edges = append(s.edges, &edge{source: src, target: dst, weight: w})
		if src != dst {
			s.link(src, dst)
			s.link(dst, src)
		}
	}
	return s, nil
}

// LoadInput is a convenience wrapper around [Load] for decoded input.
func LoadInput(in Input) (*Store, error) {
	return Load(in.Nodes, in.Edges)
}

func (s *Store) link(a, b int) {
	if !slices.Contains(s.neighbors[a], b) {
		s.neighbors[a] = append(s.neighbors[a], b)
	}
}

// =============================================================================
// Derived Attributes
// =============================================================================

// ComputeDerived sets every node's size from its in-degree and its color from
// its status, storing the color as OriginalColor too. Every edge gets the
// style's edge color and size. Highlight flags are cleared.
func (s *Store) ComputeDerived(st Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.nodes {
		n.size = st.NodeSize(len(s.in[i]))
		c := st.OtherColor
		if st.RelevantMarker != "" && strings.Contains(n.status, st.RelevantMarker) {
			c = st.RelevantColor
		}
		n.color, n.originalColor = c, c
		n.highlighted = false
	}
	for _, e := range s.edges {
		e.size = st.EdgeSize
		e.color, e.originalColor = st.EdgeColor, st.EdgeColor
	}
}

// RandomizePositions places every node uniformly at random in
// [-width/2, width/2] × [-height/2, height/2]. Colors and sizes are left
// untouched. A nil rng uses the global source.
func (s *Store) RandomizePositions(width, height float64, rng *rand.Rand) {
	next := rand.Float64
	if rng != nil {
		next = rng.Float64
	}
	for _, n := range s.nodes {
		n.x.Store(math.Float64bits((next() - 0.5) * width))
		n.y.Store(math.Float64bits((next() - 0.5) * height))
	}
}

// =============================================================================
// Structure
// =============================================================================

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// EdgeLen returns the number of edges.
func (s *Store) EdgeLen() int { return len(s.edges) }

// IndexOf returns the position of id in [Store.Nodes] order.
func (s *Store) IndexOf(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Has reports whether a node with the given id exists.
func (s *Store) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IDAt returns the id of the i-th node.
func (s *Store) IDAt(i int) string { return s.nodes[i].id }

// LabelAt returns the id and label of the i-th node.
func (s *Store) LabelAt(i int) (id, label string) {
	n := s.nodes[i]
	return n.id, n.label
}

// IDs returns all node ids in insertion order.
func (s *Store) IDs() []string {
	ids := make([]string, len(s.nodes))
	for i, n := range s.nodes {
		ids[i] = n.id
	}
	return ids
}

// Neighbors returns the ids adjacent to id regardless of edge direction.
// Each neighbor appears once, in order of first appearance in the edge list.
// Returns nil for unknown ids.
func (s *Store) Neighbors(id string) []string {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	out := make([]string, len(s.neighbors[i]))
	for k, j := range s.neighbors[i] {
		out[k] = s.nodes[j].id
	}
	return out
}

// NeighborIndices returns the adjacent node indices of the i-th node.
// The returned slice must not be modified.
func (s *Store) NeighborIndices(i int) []int { return s.neighbors[i] }

// InDegree returns the number of edges targeting id; 0 for unknown ids.
func (s *Store) InDegree(id string) int {
	if i, ok := s.index[id]; ok {
		return len(s.in[i])
	}
	return 0
}

// OutDegree returns the number of edges leaving id; 0 for unknown ids.
func (s *Store) OutDegree(id string) int {
	if i, ok := s.index[id]; ok {
		return len(s.out[i])
	}
	return 0
}

// Degree returns the number of edges incident to id in either direction.
func (s *Store) Degree(id string) int {
	if i, ok := s.index[id]; ok {
		return s.DegreeAt(i)
	}
	return 0
}

// DegreeAt returns the total number of edges incident to the i-th node.
func (s *Store) DegreeAt(i int) int { return len(s.in[i]) + len(s.out[i]) }

// OutDegreeAt returns the number of edges leaving the i-th node.
func (s *Store) OutDegreeAt(i int) int { return len(s.out[i]) }

// HasEdge reports whether the directed edge source → target exists.
func (s *Store) HasEdge(source, target string) bool {
	src, ok1 := s.index[source]
	dst, ok2 := s.index[target]
	if !ok1 || !ok2 {
		return false
	}
	_, ok := s.pairs[[2]int{src, dst}]
	return ok
}

// Links returns every edge as a pair of node indices, in edge order.
func (s *Store) Links() []Link {
	out := make([]Link, len(s.edges))
	for i, e := range s.edges {
		out[i] = Link{Source: e.source, Target: e.target, Weight: e.weight}
	}
	return out
}

// Validate re-checks referential integrity: every edge endpoint must resolve
// to a node. Returns an *IntegrityError naming the first violation.
func (s *Store) Validate() error {
	for i, e := range s.edges {
		if e.source < 0 || e.source >= len(s.nodes) {
			return &IntegrityError{Index: i, Missing: fmt.Sprint(e.source)}
		}
		if e.target < 0 || e.target >= len(s.nodes) {
			return &IntegrityError{Index: i, Source: s.nodes[e.source].id, Missing: fmt.Sprint(e.target)}
		}
		if s.index[s.nodes[e.source].id] != e.source || s.index[s.nodes[e.target].id] != e.target {
			return &IntegrityError{Index: i, Source: s.nodes[e.source].id, Target: s.nodes[e.target].id}
		}
	}
	return nil
}

// =============================================================================
// Positions
// =============================================================================

// PositionAt returns the current position of the i-th node.
func (s *Store) PositionAt(i int) (x, y float64) {
	n := s.nodes[i]
	return math.Float64frombits(n.x.Load()), math.Float64frombits(n.y.Load())
}

// SetPositionAt moves the i-th node. Non-finite coordinates are ignored.
func (s *Store) SetPositionAt(i int, x, y float64) {
	if !isFinite(x) || !isFinite(y) {
		return
	}
	n := s.nodes[i]
	n.x.Store(math.Float64bits(x))
	n.y.Store(math.Float64bits(y))
}

// Position returns the position of id.
func (s *Store) Position(id string) (x, y float64, ok bool) {
	i, ok := s.index[id]
	if !ok {
		return 0, 0, false
	}
	x, y = s.PositionAt(i)
	return x, y, true
}

// SetPosition moves id. Unknown ids and non-finite coordinates are ignored.
func (s *Store) SetPosition(id string, x, y float64) {
	if i, ok := s.index[id]; ok {
		s.SetPositionAt(i, x, y)
	}
}

// =============================================================================
// Visual Attributes
// =============================================================================

// Node returns a copy of the node's attributes.
func (s *Store) Node(id string) (Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view(i), true
}

// Nodes returns copies of every node in insertion order.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, len(s.nodes))
	for i := range s.nodes {
		out[i] = s.view(i)
	}
	return out
}

// Edges returns copies of every edge in input order.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Edge, len(s.edges))
	for i := range s.edges {
		out[i] = s.edgeView(i)
	}
	return out
}

// Edge returns a copy of the directed edge source → target.
func (s *Store) Edge(source, target string) (Edge, bool) {
	src, ok1 := s.index[source]
	dst, ok2 := s.index[target]
	if !ok1 || !ok2 {
		return Edge{}, false
	}
	i, ok := s.pairs[[2]int{src, dst}]
	if !ok {
		return Edge{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeView(i), true
}

// Snapshot copies all nodes and edges under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Nodes: make([]Node, len(s.nodes)),
		Edges: make([]Edge, len(s.edges)),
	}
	for i := range s.nodes {
		snap.Nodes[i] = s.view(i)
	}
	for i := range s.edges {
		snap.Edges[i] = s.edgeView(i)
	}
	return snap
}

// SizeAt returns the derived size of the i-th node.
func (s *Store) SizeAt(i int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[i].size
}

// Relevant returns the ids of nodes whose status contains marker.
func (s *Store) Relevant(marker string) []string {
	var ids []string
	for _, n := range s.nodes {
		if marker != "" && strings.Contains(n.status, marker) {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// SetColor sets a node's current color. Unknown ids are ignored.
func (s *Store) SetColor(id, color string) {
	s.Paint(func(p *Painter) { p.SetColor(id, color) })
}

// SetHighlighted sets a node's highlight flag. Unknown ids are ignored.
func (s *Store) SetHighlighted(id string, on bool) {
	s.Paint(func(p *Painter) { p.SetHighlighted(id, on) })
}

// SetEdgeColor sets the color of the directed edge source → target.
func (s *Store) SetEdgeColor(source, target, color string) {
	s.Paint(func(p *Painter) {
		src, ok1 := s.index[source]
		dst, ok2 := s.index[target]
		if !ok1 || !ok2 {
			return
		}
		if i, ok := s.pairs[[2]int{src, dst}]; ok {
			p.SetEdgeColorAt(i, color)
		}
	})
}

// Paint runs fn while holding the write lock on visual attributes, so a
// batch of color changes becomes visible to [Store.Snapshot] all at once.
// fn must not call other Store methods that take the lock.
func (s *Store) Paint(fn func(p *Painter)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Painter{s: s})
}

func (s *Store) view(i int) Node {
	n := s.nodes[i]
	return Node{
		ID:            n.id,
		Label:         n.label,
		Status:        n.status,
		X:             math.Float64frombits(n.x.Load()),
		Y:             math.Float64frombits(n.y.Load()),
		Size:          n.size,
		Color:         n.color,
		OriginalColor: n.originalColor,
		Highlighted:   n.highlighted,
	}
}

func (s *Store) edgeView(i int) Edge {
	e := s.edges[i]
	return Edge{
		Source:        s.nodes[e.source].id,
		Target:        s.nodes[e.target].id,
		Weight:        e.weight,
		Size:          e.size,
		Color:         e.color,
		OriginalColor: e.originalColor,
	}
}

// =============================================================================
// Painter
// =============================================================================

// Painter mutates visual attributes inside [Store.Paint]. It is only valid
// for the duration of the callback.
type Painter struct {
	s *Store
}

// Len returns the number of nodes.
func (p *Painter) Len() int { return len(p.s.nodes) }

// EdgeLen returns the number of edges.
func (p *Painter) EdgeLen() int { return len(p.s.edges) }

// Index resolves a node id.
func (p *Painter) Index(id string) (int, bool) {
	i, ok := p.s.index[id]
	return i, ok
}

// EdgeEnds returns the node indices of the i-th edge.
func (p *Painter) EdgeEnds(i int) (source, target int) {
	e := p.s.edges[i]
	return e.source, e.target
}

// SetColor sets a node's current color.
func (p *Painter) SetColor(id, color string) {
	if i, ok := p.s.index[id]; ok {
		p.s.nodes[i].color = color
	}
}

// SetColorAt sets the i-th node's current color.
func (p *Painter) SetColorAt(i int, color string) { p.s.nodes[i].color = color }

// SetHighlighted sets a node's highlight flag.
func (p *Painter) SetHighlighted(id string, on bool) {
	if i, ok := p.s.index[id]; ok {
		p.s.nodes[i].highlighted = on
	}
}

// Highlighted reports a node's highlight flag.
func (p *Painter) Highlighted(id string) bool {
	if i, ok := p.s.index[id]; ok {
		return p.s.nodes[i].highlighted
	}
	return false
}

// SetEdgeColorAt sets the i-th edge's current color.
func (p *Painter) SetEdgeColorAt(i int, color string) { p.s.edges[i].color = color }

// Restore resets every node and edge color to its original color and clears
// all highlight flags.
func (p *Painter) Restore() {
	for _, n := range p.s.nodes {
		n.color = n.originalColor
		n.highlighted = false
	}
	for _, e := range p.s.edges {
		e.color = e.originalColor
	}
}

func finiteOr(v, fallback float64) float64 {
	if isFinite(v) {
		return v
	}
	return fallback
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
