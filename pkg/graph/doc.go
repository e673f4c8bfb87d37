// Package graph holds the in-memory graph that every other sitegraph
// component reads from or writes to.
//
// # Overview
//
// A [Store] is built once from a node list and an edge list via [Load] (or
// [LoadInput] / [Decode] for JSON documents). Its structure never changes
// afterwards; reloading a graph means building a new Store. What does change
// is per-node state:
//
//   - Positions, written by the layout engine every iteration
//   - Colors and highlight flags, written by the interaction controller
//
// Positions are stored as atomic values so the layout goroutine never blocks
// renderers. Colors sit behind a read/write lock; [Store.Paint] groups a batch
// of color changes so a [Store.Snapshot] never sees half of a highlight.
//
// # Derived Attributes
//
// [Store.ComputeDerived] sets each node's size from its in-degree and its
// color from its status string:
//
//	size  = BaseSize + min(inDegree × SizeFactor, SizeCap)
//	color = RelevantColor if status contains RelevantMarker, else OtherColor
//
// The computed color is also saved as the node's original color so highlights
// can be undone.
//
// # Wire Format
//
//	{
//	  "nodes": [{"id": "1", "label": "example.com", "status": "Relevant"}],
//	  "edges": [{"source": "1", "target": "2"}]
//	}
//
// Edges naming an unknown node fail the whole load with an [IntegrityError].
// Duplicate node ids and duplicate directed edges are rejected too.
package graph
