package interact

import (
	"sort"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/graph"
)

// Default highlight colors, matching the web explorer.
const (
	DefaultMutedColor     = "rgba(0, 43, 70, 0.6)"
	DefaultHighlightColor = "#ffffff"
)

// Strategy names accepted by [StrategyByName].
const (
	StrategyIsolate = "isolate"
	StrategyFocus   = "focus"
)

// Palette holds the colors painted by highlights.
type Palette struct {
	Muted     string `toml:"muted_color" json:"muted_color"`
	Highlight string `toml:"highlight_color" json:"highlight_color"`
}

// DefaultPalette returns the web explorer's highlight colors.
func DefaultPalette() Palette {
	return Palette{Muted: DefaultMutedColor, Highlight: DefaultHighlightColor}
}

// =============================================================================
// Scene - Paint Helpers
// =============================================================================

// Scene is what a strategy draws on: one paint batch of a store.
type Scene struct {
	store   *graph.Store
	paint   *graph.Painter
	palette Palette
}

// Restore resets every color to its original and clears every flag.
func (sc Scene) Restore() { sc.paint.Restore() }

// Flag sets or clears the highlight flag of id.
func (sc Scene) Flag(id string, on bool) { sc.paint.SetHighlighted(id, on) }

// Isolate highlights id against its neighborhood: nodes that are neither id
// nor adjacent to it are muted, edges between id and a neighbor get the
// highlight color, all other edges are muted, and id itself is painted with
// the highlight color and flagged.
func (sc Scene) Isolate(id string) {
	focus, ok := sc.paint.Index(id)
	if !ok {
		return
	}
	near := make(map[int]bool)
	for _, j := range sc.store.NeighborIndices(focus) {
		near[j] = true
	}
	for i := range sc.paint.Len() {
		if i != focus && !near[i] {
			sc.paint.SetColorAt(i, sc.palette.Muted)
		}
	}
	for i := range sc.paint.EdgeLen() {
		src, dst := sc.paint.EdgeEnds(i)
		if (src == focus && near[dst]) || (dst == focus && near[src]) {
			sc.paint.SetEdgeColorAt(i, sc.palette.Highlight)
		} else {
			sc.paint.SetEdgeColorAt(i, sc.palette.Muted)
		}
	}
	sc.paint.SetColorAt(focus, sc.palette.Highlight)
	sc.paint.SetHighlighted(id, true)
}

// =============================================================================
// HighlightStrategy
// =============================================================================

// HighlightStrategy decides how selection is rendered and how it interacts
// with hover. Hover itself is always rendered with [Scene.Isolate].
type HighlightStrategy interface {
	// Name is the configuration name of the strategy.
	Name() string

	// HoverWhileSelected reports whether hover events are honored while a
	// node is selected.
	HoverWhileSelected() bool

	// Select renders next as the selection. prev is the previous selection,
	// or "" when there was none.
	Select(sc Scene, prev, next string)

	// Deselect removes the rendering of the selection prev. hovered is the
	// node currently hovered, or "".
	Deselect(sc Scene, prev, hovered string)

	// CentersCamera reports whether the camera follows the selection.
	CentersCamera() bool
}

// Isolate keeps hover live at all times. Selection only flips highlight
// flags; colors belong to hover.
type Isolate struct{}

func (Isolate) Name() string             { return StrategyIsolate }
func (Isolate) HoverWhileSelected() bool { return true }
func (Isolate) CentersCamera() bool      { return false }

func (Isolate) Select(sc Scene, prev, next string) {
	if prev != "" {
		sc.Flag(prev, false)
	}
	sc.Flag(next, true)
}

func (Isolate) Deselect(sc Scene, prev, hovered string) {
	if prev != hovered {
		sc.Flag(prev, false)
	}
}

// Focus dedicates the view to the selection: the selected node is isolated
// like a hover, the camera moves to it, and hover is ignored until the
// selection is cleared.
type Focus struct{}

func (Focus) Name() string             { return StrategyFocus }
func (Focus) HoverWhileSelected() bool { return false }
func (Focus) CentersCamera() bool      { return true }

func (Focus) Select(sc Scene, prev, next string) {
	if prev != "" {
		sc.Flag(prev, false)
	}
	sc.Restore()
	sc.Isolate(next)
}

func (Focus) Deselect(sc Scene, _, _ string) {
	sc.Restore()
}

var strategies = map[string]HighlightStrategy{
	StrategyIsolate: Isolate{},
	StrategyFocus:   Focus{},
}

// StrategyByName returns the named strategy. An empty name selects Isolate.
func StrategyByName(name string) (HighlightStrategy, error) {
	if name == "" {
		return Isolate{}, nil
	}
	s, ok := strategies[name]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeInvalidStrategy, "unknown highlight strategy %q (want one of %v)", name, StrategyNames())
	}
	return s, nil
}

// StrategyNames lists the accepted strategy names, sorted.
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for n := range strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
