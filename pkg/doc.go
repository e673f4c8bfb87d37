// Package pkg provides the libraries behind sitegraph, an interactive
// explorer for graphs of websites and the links between them.
//
// # Overview
//
// A graph document lists sites (nodes) with a label and a status, and links
// (edges) between them. Sitegraph loads one of two variants of that document,
// lays it out with a force-directed simulation that keeps running while you
// look at it, and highlights neighborhoods as you hover, select and search.
//
// # Architecture
//
// The data flow for one loaded graph:
//
//	[source] (file, HTTP, MongoDB; optionally [cache]d)
//	         ↓
//	    [graph] Store (nodes, edges, derived size and color)
//	         ↓
//	    [layout] Engine (ForceAtlas2 ticks, Barnes-Hut repulsion)
//	         ↓
//	    [interact] Controller (hover, select, search, open)
//	         ↓
//	    [server] (HTTP + websocket) or the terminal explorer
//
// [session] owns the store, engine and controller for the current variant
// and swaps all three when the variant is toggled or reloaded.
//
// # Main Packages
//
// [graph] - Node and edge storage with per-node positions that the layout
// writes while readers take snapshots. Derived attributes (size from
// in-degree, color from status) are computed once per load.
//
// [layout] - The continuous force layout: start, stop, single steps and
// bounded runs, with tick subscriptions for redraws.
//
// [interact] - Highlight strategies and the controller that applies them,
// plus the event bus that pointer and search events travel on.
//
// [search] - Case-insensitive label search as a lazy sequence.
//
// [session] - Variant loading, teardown on reload, and remembered view
// preferences.
//
// [source] - Where graph documents come from, with retrying HTTP and a
// MongoDB collection as alternatives to local files.
//
// [render/nodelink] - Graphviz rendering of a snapshot with positions
// pinned to the layout's.
//
// [server] - The HTTP API and the websocket frame stream over one session.
//
// ## Infrastructure
//
// [cache] - File, Redis and null caches behind one interface.
//
// [config] - The TOML config file.
//
// [observability] - Hooks for loads, layout runs and HTTP calls.
//
// [errors] - Error codes shared by the CLI and the HTTP API.
//
// # Quick Start
//
//	src := source.NewFileSource("data")
//	sess := session.New(src, session.DefaultOptions(), nil)
//	defer sess.Close()
//
//	if err := sess.Load(ctx, source.Filtered); err != nil {
//	    return err
//	}
//	sess.Bus().Emit(interact.Event{Kind: interact.EventEnterNode, Node: "42"})
//	snap := sess.Store().Snapshot()
//
// # Testing
//
//	go test ./pkg/...           # All tests
//	go test ./pkg/layout/...    # Specific package
//	go test -run Example        # Examples only
//
// [graph]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/graph
// [layout]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/layout
// [interact]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/interact
// [search]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/search
// [session]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/session
// [source]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/source
// [cache]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/config
// [server]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/server
// [observability]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/errors
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/sitegraph/pkg/render/nodelink
package pkg
