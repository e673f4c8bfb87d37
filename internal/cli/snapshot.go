package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/render/nodelink"
	"github.com/matzehuels/sitegraph/pkg/session"
)

const (
	defaultTicks    = 300 // layout iterations before rendering
	defaultPNGScale = 2.0
)

// snapshotOpts holds the command-line flags for the snapshot command.
type snapshotOpts struct {
	output  string   // output file path (or base path for multiple outputs)
	formats []string // svg, dot, png, pdf, json
	ticks   int
	labels  bool
	hover   string // node to hover before rendering
	sel     string // node to select before rendering
	scale   float64
}

// validFormats is the set of supported snapshot formats.
var validFormats = map[string]bool{"svg": true, "dot": true, "json": true, "pdf": true, "png": true}

// snapshotCommand creates the snapshot command. It runs the layout for a
// fixed number of ticks and writes the result.
func (c *CLI) snapshotCommand() *cobra.Command {
	var formatsStr string
	opts := snapshotOpts{ticks: defaultTicks, scale: defaultPNGScale}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run the layout and write the graph as SVG, PNG, PDF, DOT or JSON",
		Long: `Snapshot loads the graph, runs the force layout for a fixed number of
iterations, optionally applies a hover or selection, and writes the result.

Positions come from the layout; Graphviz only draws.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr, opts.output)
			if err := validateFormats(opts.formats); err != nil {
				return err
			}
			return c.runSnapshot(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, png, pdf, json (comma-separated)")
	cmd.Flags().IntVar(&opts.ticks, "ticks", opts.ticks, "layout iterations to run")
	cmd.Flags().BoolVar(&opts.labels, "labels", false, "draw node labels")
	cmd.Flags().StringVar(&opts.hover, "hover", "", "hover this node id before rendering")
	cmd.Flags().StringVar(&opts.sel, "select", "", "select this node id before rendering")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")

	return cmd
}

// parseFormats parses the --format flag. Without one, the output
// extension decides, then svg.
func parseFormats(s, output string) []string {
	if s != "" {
		return strings.Split(s, ",")
	}
	if ext := strings.TrimPrefix(filepath.Ext(output), "."); validFormats[ext] {
		return []string{ext}
	}
	return []string{"svg"}
}

func validateFormats(formats []string) error {
	for _, f := range formats {
		if !validFormats[f] {
			return fmt.Errorf("invalid format: %s (must be 'svg', 'dot', 'json', 'pdf', or 'png')", f)
		}
	}
	return nil
}

// basePath strips a known format extension from output.
func basePath(output, variant string) string {
	if output == "" {
		return "sitegraph_" + variant
	}
	ext := filepath.Ext(output)
	if validFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

func (c *CLI) runSnapshot(ctx context.Context, opts *snapshotOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	sess, cleanup, err := c.openSession(ctx, cfg, func(o *session.Options) {
		o.AutoStart = false
		o.Opener = nil
	})
	if err != nil {
		return err
	}
	defer cleanup()

	store := sess.Store()
	logger.Infof("Loaded graph: %d nodes, %d edges", store.Len(), store.EdgeLen())

	prog := newProgress(logger)
	if err := sess.Engine().Run(ctx, opts.ticks); err != nil {
		return err
	}
	prog.done("Ran %d layout iterations", opts.ticks)

	ctrl := sess.Controller()
	if opts.sel != "" {
		if !store.Has(opts.sel) {
			return fmt.Errorf("unknown node: %s", opts.sel)
		}
		ctrl.Select(opts.sel)
	}
	if opts.hover != "" {
		if !store.Has(opts.hover) {
			return fmt.Errorf("unknown node: %s", opts.hover)
		}
		ctrl.HoverEnter(opts.hover)
	}

	base := basePath(opts.output, sess.Variant().String())
	for _, format := range opts.formats {
		path := base + "." + format
		if len(opts.formats) == 1 && opts.output != "" {
			path = opts.output
		}
		if err := writeSnapshot(ctx, store, format, path, opts); err != nil {
			return fmt.Errorf("%s: %w", format, err)
		}
		logger.Infof("Generated %s", path)
	}
	return nil
}

// writeSnapshot renders store in format and writes it to path. A path of
// "-" writes to stdout.
func writeSnapshot(ctx context.Context, store *graph.Store, format, path string, opts *snapshotOpts) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if format == "json" {
		return graph.WriteSnapshot(store, out)
	}

	data, err := renderSnapshot(ctx, store.Snapshot(), format, opts)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// renderSnapshot dispatches to the node-link renderer.
func renderSnapshot(ctx context.Context, snap graph.Snapshot, format string, opts *snapshotOpts) ([]byte, error) {
	dot := nodelink.ToDOT(snap, nodelink.Options{Labels: opts.labels})
	switch format {
	case "dot":
		return []byte(dot), nil
	case "svg":
		return nodelink.RenderSVG(ctx, dot)
	case "pdf":
		return nodelink.RenderPDF(ctx, dot)
	case "png":
		return nodelink.RenderPNG(ctx, dot, opts.scale)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
