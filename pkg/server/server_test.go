package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/session"
	"github.com/matzehuels/sitegraph/pkg/source"
)

const (
	filteredDoc = `{"nodes":[{"id":"a","label":"a.com","status":"Relevant"},{"id":"b","label":"b.com"},{"id":"c","label":"c.com"}],"edges":[{"source":"a","target":"b"}]}`
	fullDoc     = `{"nodes":[{"id":"a","label":"a.com"},{"id":"b","label":"b.com"},{"id":"c","label":"c.com"},{"id":"d","label":"d.com"}],"edges":[{"source":"a","target":"b"},{"source":"c","target":"d"}]}`
)

type memSource map[source.Variant]string

func (m memSource) Name() string { return "memory" }

func (m memSource) Fetch(_ context.Context, v source.Variant) ([]byte, error) {
	d, ok := m[v]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "variant %s not found", v)
	}
	return []byte(d), nil
}

func newTestServer(t *testing.T, load bool) (*Server, *httptest.Server) {
	t.Helper()
	opts := session.DefaultOptions()
	opts.Seed = 1
	opts.Workers = 1
	opts.AutoStart = false
	opts.TickInterval = time.Millisecond
	sess := session.New(memSource{source.Filtered: filteredDoc, source.Full: fullDoc}, opts, nil)
	if load {
		if err := sess.Load(context.Background(), source.Filtered); err != nil {
			t.Fatal(err)
		}
	}
	srv := New(sess, WithFrameInterval(5*time.Millisecond))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		sess.Close()
	})
	return srv, ts
}

func do(t *testing.T, method, url string, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestNoGraph(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/graph", "")
	if resp.StatusCode != http.StatusConflict || body["code"] != string(apperrors.ErrCodeNoGraph) {
		t.Errorf("GET /api/graph = %d %v", resp.StatusCode, body)
	}
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/positions/randomize", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("randomize without graph = %d", resp.StatusCode)
	}
}

func TestGraph(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/graph", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["variant"] != "filtered" || body["generation"] == "" {
		t.Errorf("graph header = %v %v", body["variant"], body["generation"])
	}
	if nodes := body["nodes"].([]any); len(nodes) != 3 {
		t.Errorf("nodes = %d", len(nodes))
	}
	if state := body["state"].(map[string]any); state["kind"] != "idle" {
		t.Errorf("state = %v", state)
	}
}

func TestNode(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/nodes/a", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["url"] != "http://a.com" || body["out_degree"].(float64) != 1 {
		t.Errorf("node = %v", body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/api/nodes/zzz", "")
	if resp.StatusCode != http.StatusNotFound || body["code"] != string(apperrors.ErrCodeNodeNotFound) {
		t.Errorf("unknown node = %d %v", resp.StatusCode, body)
	}
}

func TestHoverAndSelect(t *testing.T) {
	srv, ts := newTestServer(t, true)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/hover/a", "")
	if resp.StatusCode != http.StatusOK || body["kind"] != "hovering" || body["node"] != "a" {
		t.Fatalf("hover = %d %v", resp.StatusCode, body)
	}
	st := srv.sess.Store()
	if n, _ := st.Node("c"); n.Color != interact.DefaultMutedColor {
		t.Errorf("non-neighbor color = %q", n.Color)
	}

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/hover/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("hover unknown = %d", resp.StatusCode)
	}

	_, body = do(t, http.MethodDelete, ts.URL+"/api/hover", "")
	if body["kind"] != "idle" {
		t.Errorf("after leave = %v", body)
	}
	if n, _ := st.Node("c"); n.Color != n.OriginalColor {
		t.Errorf("colors not restored: %q", n.Color)
	}

	_, body = do(t, http.MethodPost, ts.URL+"/api/select/b", "")
	if body["kind"] != "selected" || body["node"] != "b" {
		t.Errorf("select = %v", body)
	}
	_, body = do(t, http.MethodDelete, ts.URL+"/api/select", "")
	if body["kind"] != "idle" {
		t.Errorf("deselect = %v", body)
	}
}

func TestSearch(t *testing.T) {
	_, ts := newTestServer(t, true)

	_, body := do(t, http.MethodGet, ts.URL+"/api/search?q=.COM", "")
	if matches := body["matches"].([]any); len(matches) != 3 {
		t.Errorf("matches = %v", matches)
	}
	_, body = do(t, http.MethodGet, ts.URL+"/api/search?q=com&limit=1", "")
	if matches := body["matches"].([]any); len(matches) != 1 {
		t.Errorf("limited matches = %v", matches)
	}
	_, body = do(t, http.MethodGet, ts.URL+"/api/search?q=", "")
	if matches := body["matches"].([]any); len(matches) != 0 {
		t.Errorf("empty query matched %v", matches)
	}
	resp, _ := do(t, http.MethodGet, ts.URL+"/api/search?q=a&limit=x", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit = %d", resp.StatusCode)
	}
}

func TestReload(t *testing.T) {
	srv, ts := newTestServer(t, true)
	gen := srv.sess.Generation()

	resp, body := do(t, http.MethodPost, ts.URL+"/api/reload?variant=bogus", "")
	if resp.StatusCode != http.StatusBadRequest || body["code"] != string(apperrors.ErrCodeInvalidVariant) {
		t.Errorf("bad variant = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, ts.URL+"/api/reload?variant=full", "")
	if resp.StatusCode != http.StatusOK || body["variant"] != "full" {
		t.Fatalf("reload = %d %v", resp.StatusCode, body)
	}
	if srv.sess.Generation() == gen {
		t.Error("generation unchanged after reload")
	}
	if nodes := body["nodes"].([]any); len(nodes) != 4 {
		t.Errorf("nodes after reload = %d", len(nodes))
	}
}

func TestReloadMissingVariantKeepsGraph(t *testing.T) {
	opts := session.DefaultOptions()
	opts.AutoStart = false
	sess := session.New(memSource{source.Filtered: filteredDoc}, opts, nil)
	defer sess.Close()
	_ = sess.Load(context.Background(), source.Filtered)
	srv := New(sess)
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := do(t, http.MethodPost, ts.URL+"/api/reload?variant=full", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing variant = %d %v", resp.StatusCode, body)
	}
	if sess.Variant() != source.Filtered {
		t.Error("failed reload replaced the graph")
	}
}

func TestLayoutEndpoints(t *testing.T) {
	_, ts := newTestServer(t, true)

	_, body := do(t, http.MethodPost, ts.URL+"/api/layout/start", "")
	if body["state"] != "running" {
		t.Errorf("start = %v", body)
	}
	_, body = do(t, http.MethodPost, ts.URL+"/api/layout/stop", "")
	if body["state"] != "idle" {
		t.Errorf("stop = %v", body)
	}

	_, body = do(t, http.MethodPut, ts.URL+"/api/layout", `{"gravity": 3}`)
	if s := body["settings"].(map[string]any); s["gravity"].(float64) != 3 {
		t.Errorf("settings = %v", s)
	}
	resp, _ := do(t, http.MethodPut, ts.URL+"/api/layout", `{"gravity": -1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid settings = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPut, ts.URL+"/api/layout", `{`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed settings = %d", resp.StatusCode)
	}
}

func TestSVG(t *testing.T) {
	_, ts := newTestServer(t, true)
	resp, err := http.Get(ts.URL + "/api/snapshot.svg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/svg+xml" {
		t.Errorf("svg = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code apperrors.Code
		want int
	}{
		{apperrors.ErrCodeInvalidVariant, http.StatusBadRequest},
		{apperrors.ErrCodeNodeNotFound, http.StatusNotFound},
		{apperrors.ErrCodeNoGraph, http.StatusConflict},
		{apperrors.ErrCodeIntegrity, http.StatusUnprocessableEntity},
		{apperrors.ErrCodeNetwork, http.StatusBadGateway},
		{apperrors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestWebSocket(t *testing.T) {
	_, ts := newTestServer(t, true)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "frame" || len(f.Nodes) != 3 || f.State.Kind != interact.Idle {
		t.Fatalf("first frame = %+v", f)
	}

	if err := conn.WriteJSON(clientMessage{Type: "hover", Node: "a"}); err != nil {
		t.Fatal(err)
	}
	for f.State.Kind != interact.Hovering {
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for hover frame: %v", err)
		}
	}
	if f.State.Node != "a" {
		t.Errorf("hovered = %q", f.State.Node)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://example.com", false},
		{"http://127.0.0.1:8080", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8080/api/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v", tt.origin, got)
		}
	}
}
