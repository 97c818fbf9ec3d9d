// Package search finds dataflow paths in a program-dependence graph. Paths
// follow an edge-type pattern, and every step is validated against the
// control-flow graph with matched calls and returns.
package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

var (
	// ErrMissingAnchor is returned when a search has no start anchor.
	ErrMissingAnchor = errors.New("missing start anchor")

	// ErrInvalidOptions is returned for options that cannot be applied.
	ErrInvalidOptions = errors.New("invalid search options")
)

// AnchorKind tells whether an anchor names a node or an edge.
type AnchorKind string

const (
	AnchorNode AnchorKind = "node" // Anchor is a node id
	AnchorEdge AnchorKind = "edge" // Anchor is an edge id
)

// Anchor is a search endpoint. The zero Anchor means "any".
type Anchor struct {
	Kind AnchorKind `json:"kind" yaml:"kind"` // Node or edge
	ID   string     `json:"id" yaml:"id"`     // Node or edge id
}

// NodeAnchor anchors a search at a node.
func NodeAnchor(id string) Anchor {
	return Anchor{Kind: AnchorNode, ID: id}
}

// EdgeAnchor anchors a search at an edge.
func EdgeAnchor(id string) Anchor {
	return Anchor{Kind: AnchorEdge, ID: id}
}

// IsZero reports whether the anchor is unset.
func (a Anchor) IsZero() bool {
	return a.ID == ""
}

func (a Anchor) String() string {
	if a.IsZero() {
		return "*"
	}
	return string(a.Kind) + ":" + a.ID
}

// Validate checks the anchor kind.
func (a Anchor) Validate() error {
	if a.IsZero() {
		return nil
	}
	if a.Kind != AnchorNode && a.Kind != AnchorEdge {
		return fmt.Errorf("%w: anchor %s has unknown kind %q", ErrInvalidOptions, a.ID, a.Kind)
	}
	return nil
}

// Category classifies a search by the kinds of its anchors.
type Category string

const (
	CategoryIntra  Category = "intra"  // Node to node
	CategoryPrefix Category = "prefix" // Node to edge
	CategorySuffix Category = "suffix" // Edge to node
	CategoryMiddle Category = "middle" // Edge to edge
)

// CategoryOf derives the category of a search. Without an end anchor a node
// start is a prefix search and an edge start a middle search.
func CategoryOf(start, end Anchor) Category {
	startEdge := start.Kind == AnchorEdge
	switch {
	case end.IsZero() && startEdge:
		return CategoryMiddle
	case end.IsZero():
		return CategoryPrefix
	case !startEdge && end.Kind == AnchorNode:
		return CategoryIntra
	case !startEdge:
		return CategoryPrefix
	case end.Kind == AnchorNode:
		return CategorySuffix
	default:
		return CategoryMiddle
	}
}

// Path is an accepted dataflow path: an alternation of nodes and edges that
// begins at the resolved start node. Backward searches list it against the
// edge direction.
type Path struct {
	Nodes    []string      `json:"nodes" yaml:"nodes"`                           // Visited nodes, start first
	Edges    []*graph.Edge `json:"edges" yaml:"edges"`                           // Edges between consecutive nodes
	Frontier []string      `json:"frontier,omitempty" yaml:"frontier,omitempty"` // CFG blocks reached after the last edge
}

// Len returns the number of edges.
func (p Path) Len() int {
	return len(p.Edges)
}

// EdgeIDs returns the edge ids in path order.
func (p Path) EdgeIDs() []string {
	ids := make([]string, len(p.Edges))
	for i, e := range p.Edges {
		ids[i] = e.ID
	}
	return ids
}

// String renders the path as A-[varWrite]->B, or A<-[varWrite]-B for edges
// walked against their direction.
func (p Path) String() string {
	if len(p.Nodes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.Nodes[0])
	for i, e := range p.Edges {
		if e.From == p.Nodes[i] {
			fmt.Fprintf(&b, "-[%s]->", e.Type)
		} else {
			fmt.Fprintf(&b, "<-[%s]-", e.Type)
		}
		b.WriteString(p.Nodes[i+1])
	}
	return b.String()
}

// Stats counts the work done by one search.
type Stats struct {
	Expanded   int `json:"expanded"`   // Paths popped from the queue
	Enqueued   int `json:"enqueued"`   // Paths pushed onto the queue
	Checked    int `json:"checked"`    // CFG checks run
	Rejected   int `json:"rejected"`   // Paths failing the CFG check
	Deduped    int `json:"deduped"`    // Paths skipped by return-signature dedup
	Incomplete int `json:"incomplete"` // CFG checks cut short by the state or hop budget
	MaxLength  int `json:"max_length"` // Longest path popped
}

// Result is the outcome of one search.
type Result struct {
	RunID     string   `json:"run_id"`              // Identifies the search in logs and traces
	Start     Anchor   `json:"start"`               // Start anchor
	End       Anchor   `json:"end"`                 // End anchor, zero for any
	Category  Category `json:"category"`            // Derived from the anchors
	Paths     []Path   `json:"paths"`               // Accepted paths in discovery order
	Truncated bool     `json:"truncated,omitempty"` // The search was cancelled or hit a limit
	Stats     Stats    `json:"stats"`               // Work counters
}
