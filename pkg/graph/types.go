package graph

// =============================================================================
// Constants
// =============================================================================

// Default visual attributes, matching the palette of the web explorer.
const (
	DefaultRelevantColor  = "#A9F584"
	DefaultOtherColor     = "#F58576"
	DefaultEdgeColor      = "rgba(0, 43, 70, 0.5)"
	DefaultEdgeSize       = 0.1
	DefaultBaseSize       = 1.0
	DefaultSizeFactor     = 0.10
	DefaultSizeCap        = 50.0
	DefaultRelevantMarker = "Relevant"
)

// Default spread used by RandomizePositions callers.
const (
	DefaultSpreadWidth  = 9.0
	DefaultSpreadHeight = 5.0
)

// =============================================================================
// Input - Wire Format
// =============================================================================

// Input is the wire format consumed by [LoadInput].
//
//	{
//	  "nodes": [{"id": "1", "label": "example.com", "status": "Relevant"}],
//	  "edges": [{"source": "1", "target": "2"}]
//	}
//
// The bson tags let the same document live in a MongoDB collection.
type Input struct {
	Nodes []NodeInput `json:"nodes" bson:"nodes"`
	Edges []EdgeInput `json:"edges" bson:"edges"`
}

// NodeInput is a node as it appears in the input file. Size, X and Y are
// accepted for compatibility but replaced by the derived-attribute pass and
// random placement.
type NodeInput struct {
	ID     string  `json:"id" bson:"id"`
	Label  string  `json:"label,omitempty" bson:"label,omitempty"`
	Status string  `json:"status,omitempty" bson:"status,omitempty"`
	Size   float64 `json:"size,omitempty" bson:"size,omitempty"`
	X      float64 `json:"x,omitempty" bson:"x,omitempty"`
	Y      float64 `json:"y,omitempty" bson:"y,omitempty"`
}

// EdgeInput is a directed edge between two node ids. Weight is optional and
// defaults to 1.
type EdgeInput struct {
	Source string   `json:"source" bson:"source"`
	Target string   `json:"target" bson:"target"`
	Weight *float64 `json:"weight,omitempty" bson:"weight,omitempty"`
}

// =============================================================================
// Views
// =============================================================================

// Node is a point-in-time copy of a node's attributes.
type Node struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	Status        string  `json:"status"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Size          float64 `json:"size"`
	Color         string  `json:"color"`
	OriginalColor string  `json:"original_color"`
	Highlighted   bool    `json:"highlighted,omitempty"`
}

// Edge is a point-in-time copy of an edge's attributes.
type Edge struct {
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Weight        float64 `json:"weight"`
	Size          float64 `json:"size"`
	Color         string  `json:"color"`
	OriginalColor string  `json:"original_color"`
}

// Link is an edge expressed as node indices, for numeric consumers such as
// the layout engine. Indices follow [Store.Nodes] order.
type Link struct {
	Source int
	Target int
	Weight float64
}

// Snapshot is a copy of every node and edge, taken under a single read lock
// so that colors are mutually consistent. Positions may be mid-update.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// =============================================================================
// Style - Derived Attribute Parameters
// =============================================================================

// Style parameterizes [Store.ComputeDerived].
type Style struct {
	BaseSize   float64 `toml:"base_size"`
	SizeFactor float64 `toml:"size_factor"`
	SizeCap    float64 `toml:"size_cap"`

	// RelevantMarker is searched for (case-sensitive substring) in a node's
	// status to decide between RelevantColor and OtherColor.
	RelevantMarker string `toml:"relevant_marker"`
	RelevantColor  string `toml:"relevant_color"`
	OtherColor     string `toml:"other_color"`

	EdgeColor string  `toml:"edge_color"`
	EdgeSize  float64 `toml:"edge_size"`
}

// DefaultStyle returns the style used by the web explorer.
func DefaultStyle() Style {
	return Style{
		BaseSize:       DefaultBaseSize,
		SizeFactor:     DefaultSizeFactor,
		SizeCap:        DefaultSizeCap,
		RelevantMarker: DefaultRelevantMarker,
		RelevantColor:  DefaultRelevantColor,
		OtherColor:     DefaultOtherColor,
		EdgeColor:      DefaultEdgeColor,
		EdgeSize:       DefaultEdgeSize,
	}
}

// NodeSize returns BaseSize + min(inDegree*SizeFactor, SizeCap).
// Negative factors and caps are treated as zero so the result stays
// non-decreasing in inDegree and bounded by BaseSize + SizeCap.
func (s Style) NodeSize(inDegree int) float64 {
	grow := float64(inDegree) * max(s.SizeFactor, 0)
	return s.BaseSize + min(grow, max(s.SizeCap, 0))
}
