package interact

import (
	"io"
	"math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/search"
)

// Kind is the controller's state.
type Kind int

const (
	Idle Kind = iota
	Hovering
	Selected
)

func (k Kind) String() string {
	switch k {
	case Hovering:
		return "hovering"
	case Selected:
		return "selected"
	default:
		return "idle"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name. Unknown names decode as Idle.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "hovering":
		*k = Hovering
	case "selected":
		*k = Selected
	default:
		*k = Idle
	}
	return nil
}

// State is the controller's state and the node it refers to.
type State struct {
	Kind Kind   `json:"kind"`
	Node string `json:"node,omitempty"`
}

// Camera moves the viewport. Implementations must not block.
type Camera interface {
	CenterOn(x, y float64)
}

type nopCamera struct{}

func (nopCamera) CenterOn(float64, float64) {}

// Opener opens an external resource, typically in a browser.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to [Opener].
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// Option configures a [Controller].
type Option func(*Controller)

// WithCamera sets the camera moved by strategies that follow the selection.
func WithCamera(c Camera) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.camera = c
		}
	}
}

// WithOpener sets where [Controller.Click] sends node URLs.
func WithOpener(o Opener) Option {
	return func(ctl *Controller) { ctl.opener = o }
}

// WithPalette overrides the highlight colors.
func WithPalette(p Palette) Option {
	return func(ctl *Controller) {
		if p.Muted != "" {
			ctl.palette.Muted = p.Muted
		}
		if p.Highlight != "" {
			ctl.palette.Highlight = p.Highlight
		}
	}
}

// WithRelevantMarker sets the status substring used by
// [Controller.OpenRandomRelevant].
func WithRelevantMarker(m string) Option {
	return func(ctl *Controller) { ctl.marker = m }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}

// Controller owns hover and selection state for one graph and keeps the
// store's colors and highlight flags consistent with it. It never touches
// positions.
//
// All methods are safe for concurrent use. After [Controller.Close] every
// method is a no-op.
type Controller struct {
	store    *graph.Store
	strategy HighlightStrategy
	palette  Palette
	camera   Camera
	opener   Opener
	marker   string
	logger   *log.Logger

	mu       sync.Mutex
	hovered  string
	selected string
	detach   []func()
	closed   bool
}

// New creates an idle controller for s. A nil strategy selects [Isolate].
func New(s *graph.Store, strategy HighlightStrategy, opts ...Option) *Controller {
	if strategy == nil {
		strategy = Isolate{}
	}
	c := &Controller{
		store:    s,
		strategy: strategy,
		palette:  DefaultPalette(),
		camera:   nopCamera{},
		marker:   graph.DefaultRelevantMarker,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the graph this controller paints.
func (c *Controller) Store() *graph.Store { return c.store }

// Strategy returns the active highlight strategy.
func (c *Controller) Strategy() HighlightStrategy { return c.strategy }

// State returns the current state. A hover takes precedence over a
// selection when both are active.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.hovered != "":
		return State{Kind: Hovering, Node: c.hovered}
	case c.selected != "":
		return State{Kind: Selected, Node: c.selected}
	default:
		return State{Kind: Idle}
	}
}

// Hovered returns the hovered node id, or "".
func (c *Controller) Hovered() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hovered
}

// Selected returns the selected node id, or "".
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// =============================================================================
// Transitions
// =============================================================================

// HoverEnter highlights id and its neighborhood. It reports whether the
// event was applied; unknown ids and hovers suppressed by the strategy
// return false.
func (c *Controller) HoverEnter(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.store.Has(id) {
		return false
	}
	if c.selected != "" && !c.strategy.HoverWhileSelected() {
		return false
	}
	c.paint(func(sc Scene) {
		sc.Restore()
		sc.Isolate(id)
		if c.selected != "" && c.selected != id {
			c.strategy.Select(sc, "", c.selected)
		}
	})
	c.hovered = id
	return true
}

// HoverLeave restores every color and clears every flag other than the
// selection's.
func (c *Controller) HoverLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.hovered == "" {
		return
	}
	c.paint(func(sc Scene) {
		sc.Restore()
		if c.selected != "" {
			c.strategy.Select(sc, "", c.selected)
		}
	})
	c.hovered = ""
}

// Select makes id the selection. An empty id clears it. Unknown ids are
// ignored.
func (c *Controller) Select(id string) {
	if id == "" {
		c.ClearSelection()
		return
	}

	c.mu.Lock()
	if c.closed || !c.store.Has(id) || c.selected == id {
		c.mu.Unlock()
		return
	}
	prev := c.selected
	c.paint(func(sc Scene) { c.strategy.Select(sc, prev, id) })
	c.selected = id
	if !c.strategy.HoverWhileSelected() {
		c.hovered = ""
	}
	center := c.strategy.CentersCamera()
	c.mu.Unlock()

	c.logger.Debug("selected node", "id", id, "strategy", c.strategy.Name())
	if center {
		if x, y, ok := c.store.Position(id); ok {
			c.camera.CenterOn(x, y)
		}
	}
}

// ClearSelection drops the selection. Colors left by a hover in progress are
// kept unless the strategy painted the selection itself.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.selected == "" {
		return
	}
	prev := c.selected
	c.paint(func(sc Scene) { c.strategy.Deselect(sc, prev, c.hovered) })
	c.selected = ""
}

// Reset drops hover and selection and restores all colors.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.paint(func(sc Scene) { sc.Restore() })
	c.hovered, c.selected = "", ""
}

// =============================================================================
// Search and Open
// =============================================================================

// SearchInGraph returns the nodes of this controller's graph whose label
// contains query, ignoring case.
func (c *Controller) SearchInGraph(query string) []search.Match {
	if c.isClosed() {
		return nil
	}
	return search.Collect(search.Search(c.store, query), 0)
}

// URLFor returns the address opened for a node: its label treated as a
// host name. The label is not validated.
func URLFor(label string) string { return "http://" + label }

// Click opens the node's URL through the configured Opener and returns it.
// Unknown ids and a missing Opener are no-ops.
func (c *Controller) Click(id string) (string, error) {
	if c.isClosed() {
		return "", nil
	}
	n, ok := c.store.Node(id)
	if !ok {
		return "", nil
	}
	url := URLFor(n.Label)
	if c.opener == nil {
		c.logger.Debug("no opener configured", "url", url)
		return url, nil
	}
	if err := c.opener.Open(url); err != nil {
		return url, apperrors.Wrap(apperrors.ErrCodeInternal, err, "open %s", url)
	}
	return url, nil
}

// OpenRandomRelevant clicks a random relevant node and returns its id.
// A nil rng uses the global source. A closed controller opens nothing.
func (c *Controller) OpenRandomRelevant(rng *rand.Rand) (string, error) {
	if c.isClosed() {
		return "", nil
	}
	ids := c.store.Relevant(c.marker)
	if len(ids) == 0 {
		return "", apperrors.New(apperrors.ErrCodeNotFound, "no node with status %q", c.marker)
	}
	pick := rand.IntN
	if rng != nil {
		pick = rng.IntN
	}
	id := ids[pick(len(ids))]
	if _, err := c.Click(id); err != nil {
		return id, err
	}
	return id, nil
}

// =============================================================================
// Event Wiring
// =============================================================================

// Attach subscribes the controller to bus. The returned function detaches
// it; Close detaches every attachment as well.
func (c *Controller) Attach(bus *Bus) (detach func()) {
	unsubs := []func(){
		bus.Subscribe(EventEnterNode, func(ev Event) { c.HoverEnter(ev.Node) }),
		bus.Subscribe(EventLeaveNode, func(Event) { c.HoverLeave() }),
		bus.Subscribe(EventSelect, func(ev Event) { c.Select(ev.Node) }),
		bus.Subscribe(EventClickNode, func(ev Event) {
			if _, err := c.Click(ev.Node); err != nil {
				c.logger.Warn("open failed", "node", ev.Node, "error", err)
			}
		}),
	}
	var once sync.Once
	detach = func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
		})
	}

	c.mu.Lock()
	c.detach = append(c.detach, detach)
	c.mu.Unlock()
	return detach
}

// Close detaches the controller from every bus and disables it.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	detach := c.detach
	c.detach = nil
	c.mu.Unlock()

	for _, d := range detach {
		d()
	}
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// paint must be called with c.mu held.
func (c *Controller) paint(fn func(Scene)) {
	c.store.Paint(func(p *graph.Painter) {
		fn(Scene{store: c.store, paint: p, palette: c.palette})
	})
}
