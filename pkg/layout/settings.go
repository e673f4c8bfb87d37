package layout

import (
	"fmt"
	"time"
)

// Defaults match the web explorer's ForceAtlas2 configuration.
const (
	DefaultGravity             = 1.0
	DefaultScalingRatio        = 60.0
	DefaultEdgeWeightInfluence = 0.0
	DefaultTheta               = 0.5
	DefaultSlowDown            = 6.0
	DefaultIterationsPerTick   = 15

	// DefaultTickInterval paces ticks so the render side gets a frame
	// between position updates.
	DefaultTickInterval = 16 * time.Millisecond

	// MaxDisplacement bounds how far a node may move in one iteration.
	MaxDisplacement = 10.0

	// MinSpeed is the floor of the decaying speed factor.
	MinSpeed = 0.1

	speedDecay = 0.01
	overlapRep = 100.0
)

// Settings tunes the force simulation. Settings are read once when the
// engine starts; changing them requires a Stop and Start.
type Settings struct {
	// Gravity pulls every node toward the origin.
	Gravity float64 `toml:"gravity" json:"gravity"`

	// StrongGravity makes gravity grow linearly with distance from the
	// origin instead of staying constant.
	StrongGravity bool `toml:"strong_gravity" json:"strong_gravity"`

	// ScalingRatio multiplies repulsion and gravity. Larger values spread
	// the graph out.
	ScalingRatio float64 `toml:"scaling_ratio" json:"scaling_ratio"`

	// EdgeWeightInfluence is the exponent applied to edge weights in the
	// attraction term. 0 ignores weights.
	EdgeWeightInfluence float64 `toml:"edge_weight_influence" json:"edge_weight_influence"`

	// Theta is the Barnes-Hut opening angle. Cells whose size to distance
	// ratio is below Theta are approximated by their center of mass.
	Theta float64 `toml:"theta" json:"theta"`

	// SlowDown divides every displacement.
	SlowDown float64 `toml:"slow_down" json:"slow_down"`

	// IterationsPerTick is the number of iterations run between two
	// externally visible ticks.
	IterationsPerTick int `toml:"iterations_per_tick" json:"iterations_per_tick"`

	// AdjustSizes takes node sizes into account when computing repulsion so
	// overlapping nodes push each other apart harder.
	AdjustSizes bool `toml:"adjust_sizes" json:"adjust_sizes"`

	// OutboundAttractionDistribution divides attraction by the source
	// node's out-degree, so hubs do not pull everything into a knot.
	OutboundAttractionDistribution bool `toml:"outbound_attraction_distribution" json:"outbound_attraction_distribution"`

	// BarnesHut enables the quad-tree approximation. When false, repulsion
	// is computed exactly over all pairs.
	BarnesHut bool `toml:"barnes_hut" json:"barnes_hut"`
}

// DefaultSettings returns the settings used by the web explorer.
func DefaultSettings() Settings {
	return Settings{
		Gravity:                        DefaultGravity,
		StrongGravity:                  true,
		ScalingRatio:                   DefaultScalingRatio,
		EdgeWeightInfluence:            DefaultEdgeWeightInfluence,
		Theta:                          DefaultTheta,
		SlowDown:                       DefaultSlowDown,
		IterationsPerTick:              DefaultIterationsPerTick,
		AdjustSizes:                    true,
		OutboundAttractionDistribution: true,
		BarnesHut:                      true,
	}
}

// WithDefaults fills zero-valued step controls with defaults. Force
// coefficients are left alone since zero is meaningful for them.
func (s Settings) WithDefaults() Settings {
	if s.SlowDown <= 0 {
		s.SlowDown = DefaultSlowDown
	}
	if s.IterationsPerTick <= 0 {
		s.IterationsPerTick = DefaultIterationsPerTick
	}
	if s.Theta < 0 {
		s.Theta = DefaultTheta
	}
	return s
}

// Validate reports settings that cannot produce a usable layout.
func (s Settings) Validate() error {
	switch {
	case s.Gravity < 0:
		return fmt.Errorf("gravity must be >= 0, got %v", s.Gravity)
	case s.ScalingRatio < 0:
		return fmt.Errorf("scaling_ratio must be >= 0, got %v", s.ScalingRatio)
	case s.Theta < 0:
		return fmt.Errorf("theta must be >= 0, got %v", s.Theta)
	case s.SlowDown < 0:
		return fmt.Errorf("slow_down must be >= 0, got %v", s.SlowDown)
	case s.IterationsPerTick < 0:
		return fmt.Errorf("iterations_per_tick must be >= 0, got %d", s.IterationsPerTick)
	}
	return nil
}
