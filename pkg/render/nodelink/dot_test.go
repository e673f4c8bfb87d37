package nodelink

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/sitegraph/pkg/graph"
)

func testSnapshot() graph.Snapshot {
	return graph.Snapshot{
		Nodes: []graph.Node{
			{ID: "a", Label: "a.com", X: 1, Y: 2, Size: 2, Color: "#A9F584"},
			{ID: "b", Label: "b.com", X: -0.5, Y: 0, Size: 1, Color: "rgba(0, 43, 70, 0.6)", Highlighted: true},
		},
		Edges: []graph.Edge{
			{Source: "a", Target: "b", Size: 0.1, Color: "rgba(0, 43, 70, 0.5)"},
		},
	}
}

func TestToDOT_Basic(t *testing.T) {
	dot := ToDOT(testSnapshot(), Options{Scale: 10})

	for _, want := range []string{
		"digraph G",
		"layout=neato",
		`"a" [pos="10,-20!"`,
		`"b" [pos="-5,0!"`,
		`"a" -> "b"`,
		`fillcolor="#A9F584"`,
		`color="#002b4680"`,
		`bgcolor="transparent"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %s\n%s", want, dot)
		}
	}
}

func TestToDOT_Labels(t *testing.T) {
	if dot := ToDOT(testSnapshot(), Options{}); strings.Contains(dot, "xlabel") {
		t.Error("labels emitted without Options.Labels")
	}
	dot := ToDOT(testSnapshot(), Options{Labels: true})
	if !strings.Contains(dot, `xlabel="a.com"`) {
		t.Error("ToDOT() labels missing")
	}
}

func TestToDOT_Highlighted(t *testing.T) {
	dot := ToDOT(testSnapshot(), Options{})
	var bLine string
	for _, line := range strings.Split(dot, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), `"b" [`) {
			bLine = line
		}
	}
	if !strings.Contains(bLine, "penwidth=2") {
		t.Errorf("highlighted node not outlined: %s", bLine)
	}
}

func TestDotColor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"#ffffff", "#ffffff"},
		{"red", "red"},
		{"rgb(255, 0, 16)", "#ff0010"},
		{"rgba(0, 43, 70, 0.6)", "#002b4699"},
		{"rgba(0,43,70,1)", "#002b46ff"},
		{"rgba(300, 0, 0, 2)", "#ff0000ff"},
	}
	for _, tt := range tests {
		if got := dotColor(tt.in); got != tt.want {
			t.Errorf("dotColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 10.00 20.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := normalizeViewBox(in)
	if !bytes.Contains(out, []byte(`width="10" height="20"`)) {
		t.Errorf("normalizeViewBox() = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("svg without viewBox changed: %s", got)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(testSnapshot(), Options{Labels: true}))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("RenderSVG() output is not SVG")
	}
}

func TestRenderSVG_Invalid(t *testing.T) {
	if _, err := RenderSVG(context.Background(), "digraph {"); err == nil {
		t.Error("RenderSVG() accepted broken DOT")
	}
}
