// Package layout computes a continuous force-directed layout for a
// [graph.Store].
//
// # Model
//
// The engine follows the ForceAtlas2 family of layouts:
//
//   - every pair of nodes repels with strength ScalingRatio / distance
//   - every edge pulls its endpoints together linearly with distance
//   - gravity pulls every node toward the origin, with constant strength or,
//     in strong-gravity mode, proportional to distance
//
// Repulsion is approximated with a Barnes-Hut quad-tree from
// gonum.org/v1/gonum/spatial/barneshut: distant groups of nodes act as one
// body at their center of mass, weighing as many nodes as they contain.
// Each iteration moves a node by its net force scaled down by SlowDown, by
// how much that force oscillated since the previous iteration, and by a
// speed factor that decays as iterations accumulate. Moves are capped at
// [MaxDisplacement] and non-finite results are discarded, so positions
// always stay finite.
//
// # Lifecycle
//
// An [Engine] is either Idle or Running:
//
//	e := layout.New(store, layout.DefaultSettings())
//	e.Start()   // Idle → Running; no-op when already running
//	...
//	e.Stop()    // Running → Idle; waits for the goroutine to exit
//
// There is no convergence test. The loop runs until Stop. [Engine.Step] and
// [Engine.Run] compute ticks synchronously for tests and batch snapshots.
//
// Positions are read back from the store at the start of every iteration, so
// positions changed elsewhere (e.g. a re-randomization) are picked up on the
// next tick.
package layout
