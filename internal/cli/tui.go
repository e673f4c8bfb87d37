package cli

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/search"
	"github.com/matzehuels/sitegraph/pkg/session"
)

// Panel styles
var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	panelWidth  = 34
	maxMatches  = 8
	minCanvasW  = 20
	minCanvasH  = 8
	nodeGlyph   = "•"
	hubGlyph    = "●"
	markedGlyph = "◉"
	edgeGlyph   = "·"
)

// =============================================================================
// Camera
// =============================================================================

// tuiCamera records where a focusing strategy asked the view to center.
type tuiCamera struct {
	mu   sync.Mutex
	x, y float64
	set  bool
}

func (c *tuiCamera) CenterOn(x, y float64) {
	c.mu.Lock()
	c.x, c.y, c.set = x, y, true
	c.mu.Unlock()
}

func (c *tuiCamera) center() (x, y float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x, c.y, c.set
}

func (c *tuiCamera) clear() {
	c.mu.Lock()
	c.set = false
	c.mu.Unlock()
}

// =============================================================================
// Messages
// =============================================================================

type frameMsg time.Time

type loadedMsg struct{ err error }

type openedMsg struct {
	id  string
	err error
}

// =============================================================================
// ExploreModel - Interactive graph view
// =============================================================================

// ExploreModel is the bubbletea model for the explore command.
type ExploreModel struct {
	ctx   context.Context
	sess  *session.Session
	cam   *tuiCamera
	frame time.Duration

	Width, Height int

	generation string
	candidates []string // ids cycled with tab
	cursor     int

	searching bool
	query     string
	matches   []search.Match

	status string
}

// NewExploreModel creates a model over a loaded session.
func NewExploreModel(ctx context.Context, sess *session.Session, cam *tuiCamera, frame time.Duration) ExploreModel {
	if frame <= 0 {
		frame = 100 * time.Millisecond
	}
	m := ExploreModel{ctx: ctx, sess: sess, cam: cam, frame: frame, Width: 100, Height: 30}
	m.refresh()
	return m
}

func (m ExploreModel) Init() tea.Cmd {
	return m.tick()
}

func (m ExploreModel) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// refresh rebuilds the tab order after a load: by degree, hubs first.
func (m *ExploreModel) refresh() {
	m.generation = m.sess.Generation()
	m.matches, m.query, m.cursor = nil, "", -1
	m.candidates = nil
	store := m.sess.Store()
	if store == nil {
		return
	}
	m.candidates = store.IDs()
	slices.SortStableFunc(m.candidates, func(a, b string) int {
		return cmp.Compare(store.Degree(b), store.Degree(a))
	})
}

func (m ExploreModel) emit(kind interact.EventKind, id string) {
	m.sess.Bus().Emit(interact.Event{Kind: kind, Node: id})
}

func (m ExploreModel) hovered() string {
	if ctrl := m.sess.Controller(); ctrl != nil {
		return ctrl.Hovered()
	}
	return ""
}

func (m ExploreModel) selected() string {
	if ctrl := m.sess.Controller(); ctrl != nil {
		return ctrl.Selected()
	}
	return ""
}

// move hovers the candidate delta steps away from the cursor.
func (m *ExploreModel) move(delta int) {
	n := len(m.candidates)
	if n == 0 {
		return
	}
	m.cursor = ((m.cursor+delta)%n + n) % n
	m.emit(interact.EventEnterNode, m.candidates[m.cursor])
}

func (m ExploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		return m, nil

	case frameMsg:
		if m.sess.Generation() != m.generation {
			m.refresh()
			m.cam.clear()
		}
		return m, m.tick()

	case loadedMsg:
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
		} else {
			m.refresh()
			m.cam.clear()
			m.status = "loaded " + m.sess.Variant().String()
		}
		return m, nil

	case openedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else if msg.id != "" {
			m.status = "opened " + msg.id
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m ExploreModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.searching, m.query = false, ""
	case tea.KeyEnter:
		m.searching = false
		ctrl := m.sess.Controller()
		if ctrl == nil {
			return m, nil
		}
		m.matches = ctrl.SearchInGraph(m.query)
		if len(m.matches) == 0 {
			m.status = fmt.Sprintf("no match for %q", m.query)
			return m, nil
		}
		m.candidates = m.candidates[:0:0]
		for _, match := range m.matches {
			m.candidates = append(m.candidates, match.ID)
		}
		m.cursor = -1
		m.move(1)
		m.status = fmt.Sprintf("%d matches", len(m.matches))
	case tea.KeyBackspace:
		if len(m.query) > 0 {
			r := []rune(m.query)
			m.query = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.query += string(msg.Runes)
	}
	return m, nil
}

func (m ExploreModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.searching, m.query = true, ""
	case "tab", "down", "j", "right", "l":
		m.move(1)
	case "shift+tab", "up", "k", "left", "h":
		m.move(-1)
	case "enter":
		if id := m.hovered(); id != "" {
			m.emit(interact.EventSelect, id)
		}
	case "esc":
		switch {
		case m.selected() != "":
			m.emit(interact.EventSelect, "")
			m.cam.clear()
		case m.hovered() != "":
			m.emit(interact.EventLeaveNode, "")
		default:
			m.refresh()
		}
	case "s":
		if eng := m.sess.Engine(); eng != nil {
			if eng.Running() {
				eng.Stop()
			} else {
				eng.Start()
			}
		}
	case "r":
		if err := m.sess.ReloadPositions(); err != nil {
			m.status = err.Error()
		}
	case "f":
		m.status = "loading..."
		return m, m.toggle()
	case "o":
		id := cmp.Or(m.hovered(), m.selected())
		if id != "" {
			m.emit(interact.EventClickNode, id)
			m.status = "opened " + id
		}
	case "R":
		return m, m.openRandom()
	}
	return m, nil
}

func (m ExploreModel) toggle() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.sess.Toggle(m.ctx)}
	}
}

func (m ExploreModel) openRandom() tea.Cmd {
	ctrl := m.sess.Controller()
	return func() tea.Msg {
		if ctrl == nil {
			return openedMsg{err: session.ErrNoGraph}
		}
		id, err := ctrl.OpenRandomRelevant(nil)
		return openedMsg{id: id, err: err}
	}
}

// =============================================================================
// View
// =============================================================================

func (m ExploreModel) View() string {
	store := m.sess.Store()
	if store == nil {
		return StyleDim.Render("no graph loaded") + "\n"
	}
	w := max(m.Width-panelWidth-4, minCanvasW)
	h := max(m.Height-2, minCanvasH)

	canvas := m.canvas(store.Snapshot(), w, h)
	panel := panelStyle.Width(panelWidth).Height(h - 2).Render(m.panel(store))
	return lipgloss.JoinHorizontal(lipgloss.Top, canvas, " ", panel)
}

type cell struct {
	glyph string
	color string
	bold  bool
}

// canvas draws nodes into a w×h character grid. Terminal cells are about
// twice as tall as wide, so y is compressed by half.
func (m ExploreModel) canvas(snap graph.Snapshot, w, h int) string {
	grid := make([][]cell, h)
	for i := range grid {
		grid[i] = make([]cell, w)
	}
	if len(snap.Nodes) == 0 {
		return renderGrid(grid)
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, n := range snap.Nodes {
		minX, maxX = min(minX, n.X), max(maxX, n.X)
		minY, maxY = min(minY, n.Y), max(maxY, n.Y)
	}
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	if x, y, ok := m.cam.center(); ok {
		cx, cy = x, y
	}
	scale := min(float64(w-1)/math.Max(maxX-minX, 1e-9), 2*float64(h-1)/math.Max(maxY-minY, 1e-9))
	project := func(x, y float64) (col, row int) {
		col = int(math.Round((x-cx)*scale + float64(w-1)/2))
		row = int(math.Round((y-cy)*scale/2 + float64(h-1)/2))
		return col, row
	}

	index := make(map[string]int, len(snap.Nodes))
	for i, n := range snap.Nodes {
		index[n.ID] = i
	}
	focus := cmp.Or(m.hovered(), m.selected())
	for _, e := range snap.Edges {
		if e.Source != focus && e.Target != focus {
			continue
		}
		a, b := snap.Nodes[index[e.Source]], snap.Nodes[index[e.Target]]
		c0, r0 := project(a.X, a.Y)
		c1, r1 := project(b.X, b.Y)
		line(c0, r0, c1, r1, func(c, r int) {
			if r >= 0 && r < h && c >= 0 && c < w {
				grid[r][c] = cell{glyph: edgeGlyph, color: termColor(e.Color)}
			}
		})
	}

	// Highlighted nodes are drawn last so they stay on top.
	order := make([]int, len(snap.Nodes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(boolInt(snap.Nodes[a].Highlighted), boolInt(snap.Nodes[b].Highlighted))
	})
	for _, i := range order {
		n := snap.Nodes[i]
		c, r := project(n.X, n.Y)
		if r < 0 || r >= h || c < 0 || c >= w {
			continue
		}
		glyph := nodeGlyph
		switch {
		case n.Highlighted:
			glyph = markedGlyph
		case n.Size >= 2:
			glyph = hubGlyph
		}
		grid[r][c] = cell{glyph: glyph, color: termColor(n.Color), bold: n.Highlighted}
	}
	return renderGrid(grid)
}

func renderGrid(grid [][]cell) string {
	styles := map[cell]lipgloss.Style{}
	var b strings.Builder
	for r, row := range grid {
		if r > 0 {
			b.WriteByte('\n')
		}
		for _, c := range row {
			if c.glyph == "" {
				b.WriteByte(' ')
				continue
			}
			key := cell{color: c.color, bold: c.bold}
			st, ok := styles[key]
			if !ok {
				st = lipgloss.NewStyle().Foreground(lipgloss.Color(c.color)).Bold(c.bold)
				styles[key] = st
			}
			b.WriteString(st.Render(c.glyph))
		}
	}
	return b.String()
}

func (m ExploreModel) panel(store *graph.Store) string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("sitegraph"))
	b.WriteString(" " + styleVariant.Render(m.sess.Variant().String()))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("%d nodes · %d edges", store.Len(), store.EdgeLen())))
	b.WriteString("\n")
	if eng := m.sess.Engine(); eng != nil {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("layout %s · %d its", eng.State(), eng.Iterations())))
	}
	b.WriteString("\n\n")

	if ctrl := m.sess.Controller(); ctrl != nil {
		st := ctrl.State()
		b.WriteString(listDimStyle.Render(ctrl.Strategy().Name()+" · "+st.Kind.String()) + "\n")
		writeNode(&b, store, "hover", ctrl.Hovered())
		writeNode(&b, store, "select", ctrl.Selected())
	}
	b.WriteString("\n")

	switch {
	case m.searching:
		b.WriteString(StyleHighlight.Render("/" + m.query + "▏"))
		b.WriteString("\n")
	case len(m.matches) > 0:
		b.WriteString(listDimStyle.Render(fmt.Sprintf("matches for %q", m.query)))
		b.WriteString("\n")
		for i, match := range m.matches {
			if i == maxMatches {
				b.WriteString(listDimStyle.Render(fmt.Sprintf("  … %d more", len(m.matches)-maxMatches)) + "\n")
				break
			}
			label := truncate(match.Label, panelWidth-4)
			if i == m.cursor {
				b.WriteString(listSelectedStyle.Render("▸ "+label) + "\n")
			} else {
				b.WriteString(listNormalStyle.Render("  "+label) + "\n")
			}
		}
	}

	if m.status != "" {
		b.WriteString("\n" + StyleWarning.Render(truncate(m.status, panelWidth)) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("tab next  ⏎ select  esc clear\n/ search  o open  R random\ns layout  r scatter  f variant\nq quit"))
	return b.String()
}

func writeNode(b *strings.Builder, store *graph.Store, label, id string) {
	if id == "" {
		return
	}
	n, ok := store.Node(id)
	if !ok {
		return
	}
	b.WriteString(StyleDim.Render(label+" ") + StyleValue.Render(truncate(n.Label, panelWidth-8)) + "\n")
	b.WriteString(listDimStyle.Render("  "+orDash(n.Status)+" · in "+strconv.Itoa(store.InDegree(id))+
		" · out "+strconv.Itoa(store.OutDegree(id))) + "\n")
}

// =============================================================================
// Helpers
// =============================================================================

// termColor converts a CSS color to something lipgloss accepts. rgba()
// loses its alpha.
func termColor(css string) string {
	s := strings.TrimSpace(css)
	if strings.HasPrefix(s, "#") {
		if len(s) == 9 {
			return s[:7]
		}
		return s
	}
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return s
	}
	parts := strings.Split(s[open+1:end], ",")
	if len(parts) < 3 {
		return s
	}
	var rgb [3]int
	for i := range rgb {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return s
		}
		rgb[i] = min(max(v, 0), 255)
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}

// line walks the cells between two points (Bresenham).
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
