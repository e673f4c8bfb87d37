package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/render"
)

// Defaults for [Options].
const (
	DefaultScale     = 40.0
	DefaultNodeScale = 0.15
)

// Options configures node-link diagram rendering.
type Options struct {
	// Scale converts layout units to points.
	Scale float64

	// NodeScale converts node sizes to inches of diameter.
	NodeScale float64

	// Labels prints each node's label next to it.
	Labels bool

	// Background is the canvas color; empty means transparent.
	Background string
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.NodeScale <= 0 {
		o.NodeScale = DefaultNodeScale
	}
	if o.Background == "" {
		o.Background = "transparent"
	}
	return o
}

// ToDOT converts a snapshot to Graphviz DOT with every node pinned at its
// layout position, so the picture matches what the explorer shows. Node
// and edge colors come from the snapshot, including highlight state.
func ToDOT(snap graph.Snapshot, opts Options) string {
	opts = opts.withDefaults()

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  outputorder=edgesfirst;\n")
	fmt.Fprintf(&buf, "  bgcolor=%q;\n", dotColor(opts.Background))
	buf.WriteString("  node [shape=circle, style=filled, fixedsize=true, penwidth=0, fontsize=10];\n")
	buf.WriteString("  edge [arrowhead=none];\n")
	buf.WriteString("\n")

	for _, n := range snap.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range snap.Edges {
		fmt.Fprintf(&buf, "  %q -> %q [color=%q, penwidth=%s];\n",
			e.Source, e.Target, dotColor(e.Color), fmtFloat(max(e.Size, 0.1)*4))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n graph.Node, opts Options) []string {
	// DOT's y axis points up; the explorer's points down.
	attrs := []string{
		fmt.Sprintf("pos=\"%s,%s!\"", fmtFloat(n.X*opts.Scale), fmtFloat(-n.Y*opts.Scale)),
		"width=" + fmtFloat(n.Size*opts.NodeScale),
		fmt.Sprintf("fillcolor=%q", dotColor(n.Color)),
	}
	if opts.Labels {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		attrs = append(attrs, `label=""`, fmt.Sprintf("xlabel=%q", label))
	} else {
		attrs = append(attrs, `label=""`)
	}
	if n.Highlighted {
		attrs = append(attrs, "penwidth=2", `color="#000000"`)
	}
	return attrs
}

func fmtFloat(f float64) string {
	if f == 0 {
		f = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var rgbaRe = regexp.MustCompile(`^rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*(?:,\s*([0-9.]+)\s*)?\)$`)

// dotColor converts CSS rgb()/rgba() colors to Graphviz "#rrggbb[aa]".
// Anything else passes through unchanged.
func dotColor(c string) string {
	m := rgbaRe.FindStringSubmatch(strings.TrimSpace(c))
	if m == nil {
		return c
	}
	var out strings.Builder
	out.WriteByte('#')
	for _, s := range m[1:4] {
		v, _ := strconv.Atoi(s)
		fmt.Fprintf(&out, "%02x", min(v, 255))
	}
	if m[4] != "" {
		a, _ := strconv.ParseFloat(m[4], 64)
		fmt.Fprintf(&out, "%02x", int(min(max(a, 0), 1)*255+0.5))
	}
	return out.String()
}

// RenderSVG renders DOT produced by [ToDOT] to SVG with Graphviz's neato
// engine, honoring pinned positions.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.-]+)\s+([0-9.-]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// RenderPDF renders DOT as PDF via SVG. Requires rsvg-convert.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(svg)
}

// RenderPNG renders DOT as PNG via SVG at the given scale. Requires
// rsvg-convert.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(svg, scale)
}
