// Package server exposes a session over HTTP.
//
// # Endpoints
//
//	GET    /api/graph                 snapshot of the installed graph
//	GET    /api/nodes/{id}            one node with its neighbors and URL
//	GET    /api/layout                engine state
//	PUT    /api/layout                replace force settings
//	POST   /api/layout/start          start the engine
//	POST   /api/layout/stop           stop the engine
//	POST   /api/hover/{id}            hover a node
//	DELETE /api/hover                 leave the hovered node
//	POST   /api/select/{id}           select a node
//	DELETE /api/select                clear the selection
//	GET    /api/search?q=&limit=      label search
//	POST   /api/reload?variant=       load a variant (default: current)
//	POST   /api/positions/randomize   scatter nodes again
//	GET    /api/snapshot.svg          render the current picture
//	GET    /api/ws                    stream frames, accept interactions
//
// Errors are JSON objects {"code": ..., "message": ...} with the HTTP
// status derived from the error code.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/layout"
	"github.com/matzehuels/sitegraph/pkg/session"
)

// DefaultFrameInterval bounds how often websocket clients get frames.
const DefaultFrameInterval = 50 * time.Millisecond

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the request and connection logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFrameInterval sets the minimum delay between websocket frames.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.frameInterval = d
		}
	}
}

// Server serves one session.
type Server struct {
	sess          *session.Session
	logger        *log.Logger
	frameInterval time.Duration
	router        chi.Router
	upgrader      websocket.Upgrader

	// version counts changes worth a new frame: ticks, interactions and
	// installs.
	version atomic.Uint64

	mu          sync.Mutex
	unsubs      []func()
	engineUnsub func()
	done        chan struct{}
	closeOnce   sync.Once
}

// New creates a server for sess and subscribes to its changes. Call
// Close to release the subscriptions.
func New(sess *session.Session, opts ...Option) *Server {
	s := &Server{
		sess:          sess,
		logger:        log.NewWithOptions(io.Discard, log.Options{}),
		frameInterval: DefaultFrameInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			CheckOrigin:     checkOrigin,
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.watch()
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", s.handleGraph)
		r.Get("/nodes/{id}", s.handleNode)

		r.Get("/layout", s.handleLayout)
		r.Put("/layout", s.handleLayoutSettings)
		r.Post("/layout/start", s.handleLayoutStart)
		r.Post("/layout/stop", s.handleLayoutStop)

		r.Post("/hover/{id}", s.handleHover)
		r.Delete("/hover", s.handleLeave)
		r.Post("/select/{id}", s.handleSelect)
		r.Delete("/select", s.handleDeselect)
		r.Get("/search", s.handleSearch)

		r.Post("/reload", s.handleReload)
		r.Post("/positions/randomize", s.handleRandomize)
		r.Get("/snapshot.svg", s.handleSVG)
		r.Get("/ws", s.handleWS)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start).Round(time.Microsecond),
		)
	})
}

// =============================================================================
// Change Tracking
// =============================================================================

func (s *Server) watch() {
	bump := func() { s.version.Add(1) }
	bus := s.sess.Bus()

	s.unsubs = []func(){
		s.sess.OnInstall(func(*graph.Store) {
			bump()
			s.followEngine()
		}),
		bus.Subscribe(interact.EventEnterNode, func(interact.Event) { bump() }),
		bus.Subscribe(interact.EventLeaveNode, func(interact.Event) { bump() }),
		bus.Subscribe(interact.EventSelect, func(interact.Event) { bump() }),
	}
	s.followEngine()
}

// followEngine moves the tick subscription to the installed engine.
func (s *Server) followEngine() {
	eng := s.sess.Engine()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engineUnsub != nil {
		s.engineUnsub()
		s.engineUnsub = nil
	}
	if eng != nil {
		s.engineUnsub = eng.Subscribe(func(layout.Tick) { s.version.Add(1) })
	}
}

// touch marks state changed outside the bus, such as a reset.
func (s *Server) touch() { s.version.Add(1) }

// Close drops subscriptions and ends websocket streams. The session is
// left open.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		unsubs := append(s.unsubs, s.engineUnsub)
		s.unsubs, s.engineUnsub = nil, nil
		s.mu.Unlock()
		for _, u := range unsubs {
			if u != nil {
				u()
			}
		}
	})
}

// =============================================================================
// Serving
// =============================================================================

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
