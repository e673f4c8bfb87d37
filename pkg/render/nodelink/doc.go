// Package nodelink renders graph snapshots as node-link diagrams.
//
// # Overview
//
// Unlike Graphviz's own layouts, positions here come from the force layout:
// [ToDOT] pins every node with pos="x,y!" and the neato engine only draws.
// Colors, sizes and highlight flags are taken from the snapshot, so a
// picture taken mid-hover shows the muted neighborhood.
//
// # Usage
//
//	dot := nodelink.ToDOT(store.Snapshot(), nodelink.Options{Labels: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// For PDF or PNG output:
//
//	pdf, err := nodelink.RenderPDF(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// # Colors
//
// CSS rgba() colors, as used for edges, are converted to Graphviz's
// "#rrggbbaa" notation. Hex and named colors pass through.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
