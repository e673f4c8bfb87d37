// Package interact turns pointer and search events into highlight state on a
// [graph.Store].
//
// A [Controller] is in one of three states:
//
//	Idle            every color is its original color
//	Hovering(id)    id and its neighbors stand out, everything else is muted
//	Selected(id)    id was chosen from a search result
//
// Hover is always rendered the same way. What a selection looks like, and
// whether hover still works while something is selected, depends on the
// [HighlightStrategy]:
//
//   - [Isolate] ("isolate"): selection only sets the highlight flag; hover
//     stays live and the camera never moves.
//   - [Focus] ("focus"): selection is rendered like a hover, the camera
//     centers on it, and hover is ignored until the selection is cleared.
//
// Controllers subscribe to a [Bus] with [Controller.Attach]. The bus lives as
// long as the host, while a controller lives as long as one loaded graph;
// [Controller.Close] drops every subscription so events arriving after a
// reload never reach a discarded graph.
package interact
