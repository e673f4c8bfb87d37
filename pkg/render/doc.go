// Package render provides output helpers shared by the graph renderers.
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
//
// The [nodelink] subpackage turns a laid-out graph snapshot into Graphviz
// DOT with pinned positions and renders it in-process.
package render
