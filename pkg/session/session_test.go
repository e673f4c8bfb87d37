package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/layout"
	"github.com/matzehuels/sitegraph/pkg/source"
)

const (
	filteredDoc = `{"nodes":[{"id":"a","label":"a.com","status":"Relevant"},{"id":"b","label":"b.com"},{"id":"c","label":"c.com"}],"edges":[{"source":"a","target":"b"},{"source":"b","target":"c"}]}`
	fullDoc     = `{"nodes":[{"id":"a","label":"a.com","status":"Relevant"},{"id":"b","label":"b.com"},{"id":"c","label":"c.com"},{"id":"d","label":"d.com"}],"edges":[{"source":"a","target":"b"},{"source":"b","target":"c"},{"source":"c","target":"d"}]}`
	brokenDoc   = `{"nodes":[{"id":"a"}],"edges":[{"source":"a","target":"ghost"}]}`
)

type memSource struct {
	mu   sync.Mutex
	docs map[source.Variant]string
}

func newMemSource() *memSource {
	return &memSource{docs: map[source.Variant]string{
		source.Filtered: filteredDoc,
		source.Full:     fullDoc,
	}}
}

func (m *memSource) Name() string { return "memory" }

func (m *memSource) Fetch(_ context.Context, v source.Variant) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[v]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "variant %s not found", v)
	}
	return []byte(d), nil
}

func (m *memSource) set(v source.Variant, doc string) {
	m.mu.Lock()
	m.docs[v] = doc
	m.mu.Unlock()
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Seed = 7
	opts.Workers = 1
	opts.TickInterval = time.Millisecond
	opts.AutoStart = false
	return opts
}

func TestEmptySession(t *testing.T) {
	s := New(newMemSource(), testOptions(), nil)
	defer s.Close()

	if s.Store() != nil || s.Engine() != nil || s.Controller() != nil {
		t.Error("empty session exposes an instance")
	}
	if s.Variant() != "" || s.Generation() != "" {
		t.Error("empty session reports a variant or generation")
	}
	if err := s.ReloadPositions(); !errors.Is(err, ErrNoGraph) {
		t.Errorf("ReloadPositions() = %v, want ErrNoGraph", err)
	}
}

func TestLoad(t *testing.T) {
	s := New(newMemSource(), testOptions(), nil)
	defer s.Close()

	if err := s.Load(context.Background(), source.Filtered); err != nil {
		t.Fatal(err)
	}
	st := s.Store()
	if st == nil || st.Len() != 3 || st.EdgeLen() != 2 {
		t.Fatalf("store not installed: %v", st)
	}
	if s.Variant() != source.Filtered || s.Generation() == "" {
		t.Errorf("variant %q generation %q", s.Variant(), s.Generation())
	}
	n, _ := st.Node("a")
	if n.Color != graph.DefaultRelevantColor {
		t.Errorf("derived color = %q", n.Color)
	}
	for _, id := range st.IDs() {
		x, y, _ := st.Position(id)
		if x < -graph.DefaultSpreadWidth/2 || x > graph.DefaultSpreadWidth/2 ||
			y < -graph.DefaultSpreadHeight/2 || y > graph.DefaultSpreadHeight/2 {
			t.Errorf("%s placed at (%v, %v) outside the spread", id, x, y)
		}
	}
	if s.Controller().Store() != st || s.Engine().Store() != st {
		t.Error("engine and controller are not bound to the installed store")
	}
}

func TestAutoStart(t *testing.T) {
	opts := testOptions()
	opts.AutoStart = true
	s := New(newMemSource(), opts, nil)
	defer s.Close()

	if err := s.Load(context.Background(), source.Filtered); err != nil {
		t.Fatal(err)
	}
	if !s.Engine().Running() {
		t.Error("engine not started")
	}
}

func TestReloadStopsOldEngine(t *testing.T) {
	opts := testOptions()
	opts.AutoStart = true
	s := New(newMemSource(), opts, nil)
	defer s.Close()
	ctx := context.Background()

	if err := s.Load(ctx, source.Filtered); err != nil {
		t.Fatal(err)
	}
	oldStore, oldEngine, oldCtl := s.Store(), s.Engine(), s.Controller()
	oldGen := s.Generation()
	time.Sleep(5 * time.Millisecond)

	if err := s.Reload(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if oldEngine.Running() {
		t.Fatal("old engine still running after Reload")
	}
	if s.Store() == oldStore || s.Generation() == oldGen {
		t.Error("Reload did not install a new instance")
	}
	if s.Variant() != source.Filtered {
		t.Errorf("Reload(\"\") changed variant to %q", s.Variant())
	}

	before := oldStore.Snapshot()
	time.Sleep(20 * time.Millisecond)
	after := oldStore.Snapshot()
	for i := range before.Nodes {
		if before.Nodes[i].X != after.Nodes[i].X || before.Nodes[i].Y != after.Nodes[i].Y {
			t.Fatalf("old store moved after Reload: %+v -> %+v", before.Nodes[i], after.Nodes[i])
		}
	}

	// The old controller is detached: bus events only reach the new one.
	s.Bus().Emit(interact.Event{Kind: interact.EventEnterNode, Node: "a"})
	if oldCtl.Hovered() != "" {
		t.Error("old controller still receives events")
	}
	if s.Controller().Hovered() != "a" {
		t.Error("new controller did not receive hover")
	}
}

func TestFailedLoadKeepsPrevious(t *testing.T) {
	src := newMemSource()
	s := New(src, testOptions(), nil)
	defer s.Close()
	ctx := context.Background()

	if err := s.Load(ctx, source.Filtered); err != nil {
		t.Fatal(err)
	}
	prev := s.Store()

	src.set(source.Full, brokenDoc)
	err := s.Load(ctx, source.Full)
	var ie *graph.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("Load(broken) = %v, want IntegrityError", err)
	}
	if s.Store() != prev || s.Variant() != source.Filtered {
		t.Error("failed load replaced the installed graph")
	}

	src.mu.Lock()
	delete(src.docs, source.Full)
	src.mu.Unlock()
	if err := s.Load(ctx, source.Full); !apperrors.Is(err, apperrors.ErrCodeNotFound) {
		t.Errorf("Load(missing) = %v", err)
	}
	if s.Store() != prev {
		t.Error("failed fetch replaced the installed graph")
	}
}

func TestToggle(t *testing.T) {
	s := New(newMemSource(), testOptions(), nil)
	defer s.Close()
	ctx := context.Background()

	if err := s.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Variant() != source.Full || s.Store().Len() != 4 {
		t.Errorf("first toggle from empty: %q with %d nodes", s.Variant(), s.Store().Len())
	}
	if err := s.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Variant() != source.Filtered || s.Store().Len() != 3 {
		t.Errorf("second toggle: %q with %d nodes", s.Variant(), s.Store().Len())
	}
}

func TestReloadPositions(t *testing.T) {
	s := New(newMemSource(), testOptions(), nil)
	defer s.Close()
	if err := s.Load(context.Background(), source.Filtered); err != nil {
		t.Fatal(err)
	}
	x0, y0, _ := s.Store().Position("a")
	if err := s.ReloadPositions(); err != nil {
		t.Fatal(err)
	}
	x1, y1, _ := s.Store().Position("a")
	if x0 == x1 && y0 == y1 {
		t.Error("ReloadPositions did not move the node")
	}
}

func TestOnInstall(t *testing.T) {
	s := New(newMemSource(), testOptions(), nil)
	defer s.Close()
	ctx := context.Background()

	var got []*graph.Store
	unsubscribe := s.OnInstall(func(st *graph.Store) { got = append(got, st) })

	_ = s.Load(ctx, source.Filtered)
	_ = s.Load(ctx, source.Full)
	if len(got) != 2 || got[1] != s.Store() {
		t.Fatalf("observer saw %d installs", len(got))
	}

	unsubscribe()
	unsubscribe()
	_ = s.Load(ctx, source.Filtered)
	if len(got) != 2 {
		t.Error("observer called after unsubscribe")
	}
}

func TestClose(t *testing.T) {
	opts := testOptions()
	opts.AutoStart = true
	s := New(newMemSource(), opts, nil)
	ctx := context.Background()
	_ = s.Load(ctx, source.Filtered)
	eng, ctl := s.Engine(), s.Controller()

	s.Close()
	s.Close()

	if eng.Running() {
		t.Error("engine running after Close")
	}
	if s.Store() != nil {
		t.Error("instance survived Close")
	}
	if ctl.HoverEnter("a") {
		t.Error("controller still active after Close")
	}
	if err := s.Load(ctx, source.Filtered); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after Close = %v", err)
	}
	if s.Bus().Len() != 0 {
		t.Errorf("bus still has %d subscribers", s.Bus().Len())
	}
}

func TestSeededPlacementIsReproducible(t *testing.T) {
	load := func() graph.Snapshot {
		s := New(newMemSource(), testOptions(), nil)
		defer s.Close()
		if err := s.Load(context.Background(), source.Filtered); err != nil {
			t.Fatal(err)
		}
		return s.Store().Snapshot()
	}
	a, b := load(), load()
	for i := range a.Nodes {
		if a.Nodes[i].X != b.Nodes[i].X || a.Nodes[i].Y != b.Nodes[i].Y {
			t.Fatalf("node %s placed differently with the same seed", a.Nodes[i].ID)
		}
	}
}

func TestRunAfterLoad(t *testing.T) {
	s := New(newMemSource(), testOptions(), nil)
	defer s.Close()
	if err := s.Load(context.Background(), source.Full); err != nil {
		t.Fatal(err)
	}
	if err := s.Engine().Run(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	if s.Engine().Iterations() != uint64(5*layout.DefaultIterationsPerTick) {
		t.Errorf("iterations = %d", s.Engine().Iterations())
	}
}

func TestReloadAttachesAfterDetach(t *testing.T) {
	s := New(newMemSource(), testOptions(), nil)
	defer s.Close()
	ctx := context.Background()

	if err := s.Load(ctx, source.Filtered); err != nil {
		t.Fatal(err)
	}
	handlers := s.Bus().Len()
	oldCtl := s.Controller()

	store, err := graph.Decode(strings.NewReader(fullDoc))
	if err != nil {
		t.Fatal(err)
	}
	in := s.build(source.Full, store)
	if got := s.Bus().Len(); got != handlers {
		t.Fatalf("after build: %d handlers, want %d", got, handlers)
	}
	s.Bus().Emit(interact.Event{Kind: interact.EventEnterNode, Node: "a"})
	if in.controller.Hovered() != "" {
		t.Error("controller received events before install")
	}
	s.Bus().Emit(interact.Event{Kind: interact.EventLeaveNode})

	if !s.install(in) {
		t.Fatal("install() = false")
	}
	if got := s.Bus().Len(); got != handlers {
		t.Errorf("after install: %d handlers, want %d", got, handlers)
	}
	s.Bus().Emit(interact.Event{Kind: interact.EventEnterNode, Node: "c"})
	if oldCtl.Hovered() != "" || in.controller.Hovered() != "c" {
		t.Errorf("hovered old=%q new=%q", oldCtl.Hovered(), in.controller.Hovered())
	}

	var during []int
	unsubscribe := s.OnInstall(func(*graph.Store) { during = append(during, s.Bus().Len()) })
	defer unsubscribe()
	if err := s.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(during) != 1 || during[0] != handlers {
		t.Errorf("handlers during Toggle = %v, want [%d]", during, handlers)
	}
}
