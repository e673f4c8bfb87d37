// Package session owns the graph that is currently on screen.
//
// A Session fetches a variant from a [source.Source], builds the
// [graph.Store], and wires a [layout.Engine] and an [interact.Controller]
// to it. Reloading builds the replacement completely before touching the
// running instance, so a failed load leaves the previous graph in place.
//
// # Teardown
//
// Whenever an instance is replaced or the session is closed, its engine is
// stopped (no position writes happen after Stop returns), its controller
// is detached from the session's event bus and closed, and only then is
// the instance dropped.
//
// # Usage
//
//	sess := session.New(src, session.DefaultOptions(), logger)
//	defer sess.Close()
//
//	if err := sess.Load(ctx, source.Filtered); err != nil {
//	    return err
//	}
//	sess.Bus().Emit(interact.Event{Kind: interact.EventEnterNode, Node: "a"})
//	sess.Toggle(ctx) // switch to the full graph
package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/layout"
	"github.com/matzehuels/sitegraph/pkg/observability"
	"github.com/matzehuels/sitegraph/pkg/source"
)

// Sentinel errors for session operations.
var (
	// ErrClosed is returned by loads on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrNoGraph is returned when an operation needs a loaded graph.
	ErrNoGraph = apperrors.New(apperrors.ErrCodeNoGraph, "no graph loaded")
)

// =============================================================================
// Options
// =============================================================================

// Options configures how each loaded graph is prepared.
type Options struct {
	Style  graph.Style
	Layout layout.Settings

	// TickInterval and Workers are passed to the layout engine.
	TickInterval time.Duration
	Workers      int

	// AutoStart starts the layout engine as soon as a graph is installed.
	AutoStart bool

	// SpreadWidth and SpreadHeight bound the initial random placement.
	SpreadWidth  float64
	SpreadHeight float64

	// Seed makes placement and jitter reproducible. Zero picks a random seed.
	Seed uint64

	Strategy interact.HighlightStrategy
	Palette  interact.Palette
	Camera   interact.Camera
	Opener   interact.Opener

	// Preferences, when set, remembers the variant and strategy of every
	// successful load under the source's name.
	Preferences *FileStore
}

// DefaultOptions mirrors the web explorer: isolate highlighting and an
// engine that starts immediately.
func DefaultOptions() Options {
	return Options{
		Style:        graph.DefaultStyle(),
		Layout:       layout.DefaultSettings(),
		TickInterval: layout.DefaultTickInterval,
		AutoStart:    true,
		SpreadWidth:  graph.DefaultSpreadWidth,
		SpreadHeight: graph.DefaultSpreadHeight,
		Strategy:     interact.Isolate{},
		Palette:      interact.DefaultPalette(),
	}
}

// =============================================================================
// Session
// =============================================================================

// instance is one installed graph with its engine and controller.
type instance struct {
	variant    source.Variant
	generation string
	store      *graph.Store
	engine     *layout.Engine
	controller *interact.Controller
	detach     func()
}

func (in *instance) teardown() {
	in.engine.Stop()
	in.detach()
	in.controller.Close()
}

// Session holds at most one installed graph at a time.
type Session struct {
	src    source.Source
	opts   Options
	logger *log.Logger
	bus    *interact.Bus

	// loadMu serializes loads so installs happen in call order.
	loadMu sync.Mutex

	mu        sync.RWMutex
	cur       *instance
	closed    bool
	observers map[uint64]func(*graph.Store)
	nextObs   uint64
	loads     uint64
}

// New creates an empty session. A nil logger discards output.
func New(src source.Source, opts Options, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Strategy == nil {
		opts.Strategy = interact.Isolate{}
	}
	if opts.Palette == (interact.Palette{}) {
		opts.Palette = interact.DefaultPalette()
	}
	if opts.SpreadWidth <= 0 || opts.SpreadHeight <= 0 {
		opts.SpreadWidth, opts.SpreadHeight = graph.DefaultSpreadWidth, graph.DefaultSpreadHeight
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}
	return &Session{
		src:       src,
		opts:      opts,
		logger:    logger,
		bus:       interact.NewBus(),
		observers: make(map[uint64]func(*graph.Store)),
	}
}

// Bus returns the event bus. It outlives reloads; each installed
// controller attaches to it.
func (s *Session) Bus() *interact.Bus { return s.bus }

// Store returns the installed graph, or nil.
func (s *Session) Store() *graph.Store {
	if in := s.current(); in != nil {
		return in.store
	}
	return nil
}

// Engine returns the installed graph's layout engine, or nil.
func (s *Session) Engine() *layout.Engine {
	if in := s.current(); in != nil {
		return in.engine
	}
	return nil
}

// Controller returns the installed graph's controller, or nil.
func (s *Session) Controller() *interact.Controller {
	if in := s.current(); in != nil {
		return in.controller
	}
	return nil
}

// Variant returns the installed variant, or "" when empty.
func (s *Session) Variant() source.Variant {
	if in := s.current(); in != nil {
		return in.variant
	}
	return ""
}

// Generation returns a unique id for the installed graph, or "".
func (s *Session) Generation() string {
	if in := s.current(); in != nil {
		return in.generation
	}
	return ""
}

// OnInstall registers fn to run after every install, with the new store.
func (s *Session) OnInstall(fn func(*graph.Store)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) current() *instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// =============================================================================
// Loading
// =============================================================================

// Load fetches v, builds a new instance and installs it, tearing down the
// previous one. On any error the previous instance stays installed.
func (s *Session) Load(ctx context.Context, v source.Variant) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}
	logger := s.logger.With("variant", v)
	logger.Debug("fetching graph", "source", s.src.Name())

	start := time.Now()
	data, err := s.src.Fetch(ctx, v)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		return err
	}
	store, err := graph.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Error("graph rejected", "error", err)
		return err
	}

	in := s.build(v, store)
	if !s.install(in) {
		in.teardown()
		return ErrClosed
	}

	observability.Load().OnInstall(ctx, v.String(), store.Len(), store.EdgeLen())
	s.remember(ctx, v)
	logger.Info("graph loaded", "nodes", store.Len(), "edges", store.EdgeLen(), "took", time.Since(start).Round(time.Millisecond))

	if s.opts.AutoStart {
		in.engine.Start()
	}
	return nil
}

// Reload loads v, or the installed variant when v is empty.
func (s *Session) Reload(ctx context.Context, v source.Variant) error {
	if v == "" {
		v = s.Variant()
	}
	if v == "" {
		v = source.DefaultVariant
	}
	return s.Load(ctx, v)
}

// Toggle switches between the full and filtered variants.
func (s *Session) Toggle(ctx context.Context) error {
	v := s.Variant()
	if v == "" {
		v = source.DefaultVariant
	}
	return s.Load(ctx, v.Toggle())
}

// ReloadPositions scatters the installed graph's nodes again. A running
// engine keeps running from the new positions.
func (s *Session) ReloadPositions() error {
	in := s.current()
	if in == nil {
		return ErrNoGraph
	}
	in.store.RandomizePositions(s.opts.SpreadWidth, s.opts.SpreadHeight, s.rng())
	return nil
}

func (s *Session) build(v source.Variant, store *graph.Store) *instance {
	store.ComputeDerived(s.opts.Style)
	store.RandomizePositions(s.opts.SpreadWidth, s.opts.SpreadHeight, s.rng())

	engineOpts := []layout.Option{
		layout.WithLogger(s.logger),
		layout.WithSeed(s.opts.Seed),
	}
	if s.opts.TickInterval > 0 {
		engineOpts = append(engineOpts, layout.WithTickInterval(s.opts.TickInterval))
	}
	if s.opts.Workers > 0 {
		engineOpts = append(engineOpts, layout.WithWorkers(s.opts.Workers))
	}

	ctlOpts := []interact.Option{
		interact.WithPalette(s.opts.Palette),
		interact.WithRelevantMarker(s.opts.Style.RelevantMarker),
		interact.WithLogger(s.logger),
	}
	if s.opts.Camera != nil {
		ctlOpts = append(ctlOpts, interact.WithCamera(s.opts.Camera))
	}
	if s.opts.Opener != nil {
		ctlOpts = append(ctlOpts, interact.WithOpener(s.opts.Opener))
	}

	return &instance{
		variant:    v,
		generation: uuid.NewString(),
		store:      store,
		engine:     layout.New(store, s.opts.Layout, engineOpts...),
		controller: interact.New(store, s.opts.Strategy, ctlOpts...),
		detach:     func() {},
	}
}

// install swaps in, tearing down the previous instance and notifying
// observers. It reports false when the session is closed.
// The old controller is detached before the new one attaches, so the bus
// never delivers an event to both. Teardown runs outside s.mu since engine
// subscribers may call back into the session while the engine drains.
func (s *Session) install(in *instance) bool {
	if old := s.current(); old != nil {
		old.teardown()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	in.detach = in.controller.Attach(s.bus)
	s.cur = in
	s.loads++
	observers := make([]func(*graph.Store), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(in.store)
	}
	return true
}

func (s *Session) rng() *rand.Rand {
	s.mu.RLock()
	n := s.loads
	s.mu.RUnlock()
	return rand.New(rand.NewPCG(s.opts.Seed, n))
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// =============================================================================
// Preferences and Shutdown
// =============================================================================

// remember saves v and the strategy as the source's preferences. Failures
// are logged; the load itself already succeeded.
func (s *Session) remember(ctx context.Context, v source.Variant) {
	if s.opts.Preferences == nil {
		return
	}
	p := NewPreferences(s.src.Name(), v, s.opts.Strategy.Name(), DefaultPreferencesTTL)
	if err := s.opts.Preferences.Set(ctx, p); err != nil {
		s.logger.Warn("could not save preferences", "error", err)
	}
}

// Close tears down the installed graph and rejects further loads. It is
// safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	old := s.cur
	s.cur = nil
	s.observers = map[uint64]func(*graph.Store){}
	s.mu.Unlock()

	if old != nil {
		old.teardown()
	}
}
