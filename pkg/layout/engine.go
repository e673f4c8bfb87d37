package layout

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/observability"
)

// ErrRunning is returned by [Engine.Run] while the background loop is active.
var ErrRunning = errors.New("layout engine is running")

// State is the engine's lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Tick is published to subscribers after every batch of iterations.
type Tick struct {
	Iterations uint64        // total iterations since the engine was created
	Duration   time.Duration // time spent computing this tick
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTickInterval sets the minimum time between two ticks. Zero runs ticks
// back to back.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = max(d, 0) }
}

// WithWorkers sets how many goroutines share the repulsion pass.
// The default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = max(n, 1) }
}

// WithSeed seeds the jitter used to separate coincident nodes.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// Engine runs a force-directed layout over a [graph.Store], writing node
// positions in place from a background goroutine.
//
// Start and Stop are safe to call from any goroutine, any number of times.
// At most one loop runs per engine; Stop returns only after the loop has
// exited and will write no more positions.
type Engine struct {
	store    *graph.Store
	logger   *log.Logger
	interval time.Duration
	workers  int
	seed     uint64

	mu       sync.Mutex
	settings Settings
	quit     chan struct{}
	done     chan struct{}
	started  time.Time
	rng      *rand.Rand

	iterations atomic.Uint64

	subMu   sync.RWMutex
	subs    map[uint64]func(Tick)
	nextSub uint64
}

// New creates an idle engine for s.
func New(s *graph.Store, settings Settings, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		interval: DefaultTickInterval,
		workers:  runtime.GOMAXPROCS(0),
		settings: settings.WithDefaults(),
		subs:     make(map[uint64]func(Tick)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rng = rand.New(rand.NewPCG(e.seed, e.seed^0x9e3779b97f4a7c15))
	return e
}

// Store returns the graph the engine writes to.
func (e *Engine) Store() *graph.Store { return e.store }

// Settings returns the settings the next Start will use.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetSettings replaces the settings. A running loop keeps the settings it
// started with until it is stopped and started again.
func (e *Engine) SetSettings(s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s.WithDefaults()
}

// Start launches the background loop. It returns false without doing
// anything when the loop is already running or the graph is empty.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.quit != nil {
		return false
	}
	n := e.store.Len()
	if n == 0 {
		e.logger.Debug("layout start skipped, empty graph")
		return false
	}

	sim := e.newSimulation()
	e.quit = make(chan struct{})
	e.done = make(chan struct{})
	e.started = time.Now()
	go e.loop(sim, e.quit, e.done)

	e.logger.Debug("layout started", "nodes", n, "edges", e.store.EdgeLen(), "barnes_hut", sim.settings.BarnesHut)
	observability.Layout().OnLayoutStart(n)
	return true
}

// Stop halts the background loop and waits for it to exit. It is a no-op
// when the engine is idle. Stop must not be called from a Subscribe
// callback.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.quit == nil {
		return
	}
	close(e.quit)
	<-e.done
	e.quit, e.done = nil, nil

	elapsed := time.Since(e.started)
	e.logger.Debug("layout stopped", "iterations", e.iterations.Load(), "elapsed", elapsed.Round(time.Millisecond))
	observability.Layout().OnLayoutStop(e.iterations.Load(), elapsed)
}

// Running reports whether the background loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quit != nil
}

// State returns Running or Idle.
func (e *Engine) State() State {
	if e.Running() {
		return Running
	}
	return Idle
}

// Iterations returns the total number of iterations computed so far.
func (e *Engine) Iterations() uint64 { return e.iterations.Load() }

// Subscribe registers fn to be called after every tick, on the engine
// goroutine. fn must return quickly. The returned function unregisters fn.
func (e *Engine) Subscribe(fn func(Tick)) (unsubscribe func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

// Step runs one tick synchronously on the calling goroutine. It returns
// false when the background loop is running or the graph is empty.
func (e *Engine) Step() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quit != nil || e.store.Len() == 0 {
		return false
	}
	e.tick(e.newSimulation())
	return true
}

// Run computes ticks synchronously, stopping early when ctx is done.
// Start and Stop block until Run returns.
func (e *Engine) Run(ctx context.Context, ticks int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quit != nil {
		return ErrRunning
	}
	if e.store.Len() == 0 {
		return nil
	}
	sim := e.newSimulation()
	for range ticks {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.tick(sim)
	}
	return nil
}

// =============================================================================
// Internal Implementation
// =============================================================================

// newSimulation must be called with e.mu held.
func (e *Engine) newSimulation() *simulation {
	sim := newSimulation(e.store, e.settings, e.workers, e.rng, e.iterations.Load())
	sim.onFallback = func(err error) {
		e.logger.Debug("quad-tree unavailable, using exact repulsion", "error", err)
	}
	return sim
}

func (e *Engine) loop(sim *simulation, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var wait <-chan time.Time
	if e.interval > 0 {
		t := time.NewTicker(e.interval)
		defer t.Stop()
		wait = t.C
	}

	for {
		select {
		case <-quit:
			return
		default:
		}

		e.tick(sim)

		if wait == nil {
			runtime.Gosched()
			continue
		}
		select {
		case <-quit:
			return
		case <-wait:
		}
	}
}

func (e *Engine) tick(sim *simulation) {
	start := time.Now()
	for range sim.settings.IterationsPerTick {
		sim.iterate()
	}
	t := Tick{
		Iterations: e.iterations.Add(uint64(sim.settings.IterationsPerTick)),
		Duration:   time.Since(start),
	}
	observability.Layout().OnLayoutTick(t.Iterations, t.Duration)
	e.publish(t)
}

func (e *Engine) publish(t Tick) {
	e.subMu.RLock()
	fns := make([]func(Tick), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.RUnlock()
	for _, fn := range fns {
		fn(t)
	}
}
