package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/layout"
	"github.com/matzehuels/sitegraph/pkg/render/nodelink"
	"github.com/matzehuels/sitegraph/pkg/search"
	"github.com/matzehuels/sitegraph/pkg/session"
	"github.com/matzehuels/sitegraph/pkg/source"
)

// =============================================================================
// Responses
// =============================================================================

type graphResponse struct {
	Variant    source.Variant `json:"variant"`
	Generation string         `json:"generation"`
	Layout     layoutResponse `json:"layout"`
	State      interact.State `json:"state"`
	Nodes      []graph.Node   `json:"nodes"`
	Edges      []graph.Edge   `json:"edges"`
}

type layoutResponse struct {
	State      string          `json:"state"`
	Iterations uint64          `json:"iterations"`
	Settings   layout.Settings `json:"settings"`
}

type nodeResponse struct {
	graph.Node
	URL       string   `json:"url"`
	InDegree  int      `json:"in_degree"`
	OutDegree int      `json:"out_degree"`
	Neighbors []string `json:"neighbors"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Matches []search.Match `json:"matches"`
}

type errorResponse struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

func layoutStatus(e *layout.Engine) layoutResponse {
	return layoutResponse{
		State:      e.State().String(),
		Iterations: e.Iterations(),
		Settings:   e.Settings(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps error codes onto HTTP statuses.
func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidFormat,
		apperrors.ErrCodeInvalidVariant, apperrors.ErrCodeInvalidStrategy,
		apperrors.ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeNodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeNoGraph:
		return http.StatusConflict
	case apperrors.ErrCodeIntegrity:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeNetwork:
		return http.StatusBadGateway
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		code = apperrors.ErrCodeInternal
	}
	status := statusFor(code)
	if status >= 500 {
		s.logger.Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: apperrors.UserMessage(err)})
}

// =============================================================================
// Graph
// =============================================================================

// installed returns the current store, engine and controller, or writes
// a NO_GRAPH error.
func (s *Server) installed(w http.ResponseWriter) (*graph.Store, *layout.Engine, *interact.Controller, bool) {
	st, eng, ctl := s.sess.Store(), s.sess.Engine(), s.sess.Controller()
	if st == nil || eng == nil || ctl == nil {
		s.writeError(w, session.ErrNoGraph)
		return nil, nil, nil, false
	}
	return st, eng, ctl, true
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	st, eng, ctl, ok := s.installed(w)
	if !ok {
		return
	}
	snap := st.Snapshot()
	writeJSON(w, http.StatusOK, graphResponse{
		Variant:    s.sess.Variant(),
		Generation: s.sess.Generation(),
		Layout:     layoutStatus(eng),
		State:      ctl.State(),
		Nodes:      snap.Nodes,
		Edges:      snap.Edges,
	})
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	st, _, _, ok := s.installed(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	n, found := st.Node(id)
	if !found {
		s.writeError(w, apperrors.New(apperrors.ErrCodeNodeNotFound, "node %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, nodeResponse{
		Node:      n,
		URL:       interact.URLFor(n.Label),
		InDegree:  st.InDegree(id),
		OutDegree: st.OutDegree(id),
		Neighbors: st.Neighbors(id),
	})
}

// =============================================================================
// Layout
// =============================================================================

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if _, eng, _, ok := s.installed(w); ok {
		writeJSON(w, http.StatusOK, layoutStatus(eng))
	}
}

func (s *Server) handleLayoutSettings(w http.ResponseWriter, r *http.Request) {
	_, eng, _, ok := s.installed(w)
	if !ok {
		return
	}
	settings := eng.Settings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "decode settings"))
		return
	}
	if err := settings.Validate(); err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "invalid settings"))
		return
	}
	eng.SetSettings(settings)
	writeJSON(w, http.StatusOK, layoutStatus(eng))
}

func (s *Server) handleLayoutStart(w http.ResponseWriter, r *http.Request) {
	if _, eng, _, ok := s.installed(w); ok {
		eng.Start()
		writeJSON(w, http.StatusOK, layoutStatus(eng))
	}
}

func (s *Server) handleLayoutStop(w http.ResponseWriter, r *http.Request) {
	if _, eng, _, ok := s.installed(w); ok {
		eng.Stop()
		writeJSON(w, http.StatusOK, layoutStatus(eng))
	}
}

// =============================================================================
// Interaction
// =============================================================================

// emitFor sends an event about the node in the URL, rejecting unknown ids.
func (s *Server) emitFor(w http.ResponseWriter, r *http.Request, kind interact.EventKind) {
	st, _, ctl, ok := s.installed(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !st.Has(id) {
		s.writeError(w, apperrors.New(apperrors.ErrCodeNodeNotFound, "node %q not found", id))
		return
	}
	s.sess.Bus().Emit(interact.Event{Kind: kind, Node: id})
	writeJSON(w, http.StatusOK, ctl.State())
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	s.emitFor(w, r, interact.EventEnterNode)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.emitFor(w, r, interact.EventSelect)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if _, _, ctl, ok := s.installed(w); ok {
		s.sess.Bus().Emit(interact.Event{Kind: interact.EventLeaveNode})
		writeJSON(w, http.StatusOK, ctl.State())
	}
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	if _, _, ctl, ok := s.installed(w); ok {
		ctl.ClearSelection()
		s.touch()
		writeJSON(w, http.StatusOK, ctl.State())
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	_, _, ctl, ok := s.installed(w)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	matches := ctl.SearchInGraph(q)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		if limit > 0 && len(matches) > limit {
			matches = matches[:limit]
		}
	}
	if matches == nil {
		matches = []search.Match{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: q, Matches: matches})
}

// =============================================================================
// Session
// =============================================================================

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var v source.Variant
	if raw := r.URL.Query().Get("variant"); raw != "" {
		parsed, err := source.ParseVariant(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		v = parsed
	}
	if err := s.sess.Reload(r.Context(), v); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGraph(w, r)
}

func (s *Server) handleRandomize(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.ReloadPositions(); err != nil {
		s.writeError(w, err)
		return
	}
	s.touch()
	s.handleGraph(w, r)
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	st, _, _, ok := s.installed(w)
	if !ok {
		return
	}
	labels := r.URL.Query().Get("labels") == "true"
	dot := nodelink.ToDOT(st.Snapshot(), nodelink.Options{Labels: labels})
	svg, err := nodelink.RenderSVG(r.Context(), dot)
	if err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeInternal, err, "render snapshot"))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}
