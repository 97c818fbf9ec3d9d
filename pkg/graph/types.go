// Package graph defines the program-dependence graph primitives consumed by the
// path-search engine: nodes, typed directed edges, and the read-only Store
// interface through which the engine looks them up.
package graph

import (
	"fmt"
	"slices"
	"strings"
)

// EdgeType represents the type of a graph edge.
type EdgeType string

const (
	EdgeVarWrite     EdgeType = "varWrite"     // Value written into a variable
	EdgeParWrite     EdgeType = "parWrite"     // Argument passed into a parameter
	EdgeRetWrite     EdgeType = "retWrite"     // Returned value written at the call site
	EdgeVarInfFunc   EdgeType = "varInfFunc"   // Abstracted influence through a function
	EdgeVarInfluence EdgeType = "varInfluence" // Abstracted influence between variables
	EdgeNextCFGBlock EdgeType = "nextCFGBlock" // Control-flow successor between CFG blocks
	EdgePubVar       EdgeType = "pubVar"       // Variable published to a shared location
	EdgePubTarget    EdgeType = "pubTarget"    // Shared location read by a target
)

const (
	sourceSuffix      = "Source"
	destinationSuffix = "Destination"
)

// Property keys that carry boolean-like flags on nextCFGBlock edges.
const (
	FlagInvoke = "cfgInvoke"
	FlagReturn = "cfgReturn"
)

// dataflowTypes lists the edge types that carry Source/Destination links.
var dataflowTypes = []EdgeType{
	EdgeVarWrite,
	EdgeParWrite,
	EdgeRetWrite,
	EdgeVarInfFunc,
	EdgeVarInfluence,
	EdgePubVar,
	EdgePubTarget,
}

// DataflowTypes returns the edge types that denote a value dependency.
func DataflowTypes() []EdgeType {
	return slices.Clone(dataflowTypes)
}

// IsDataflow reports whether t is a dataflow edge type.
func (t EdgeType) IsDataflow() bool {
	return slices.Contains(dataflowTypes, t)
}

// IsLink reports whether t is a Source or Destination linking type.
func (t EdgeType) IsLink() bool {
	if base, ok := strings.CutSuffix(string(t), sourceSuffix); ok {
		return EdgeType(base).IsDataflow()
	}
	if base, ok := strings.CutSuffix(string(t), destinationSuffix); ok {
		return EdgeType(base).IsDataflow()
	}
	return false
}

// SourceLink returns the type of the edge linking the source of a t edge to its CFG block.
func (t EdgeType) SourceLink() EdgeType {
	return t + sourceSuffix
}

// DestinationLink returns the type of the edge linking the destination of a t edge to its CFG block.
func (t EdgeType) DestinationLink() EdgeType {
	return t + destinationSuffix
}

// Valid reports whether t belongs to the closed edge-type set.
func (t EdgeType) Valid() bool {
	return t == EdgeNextCFGBlock || t.IsDataflow() || t.IsLink()
}

// ParseEdgeType converts s into an EdgeType, rejecting types outside the closed set.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", fmt.Errorf("unknown edge type %q", s)
	}
	return t, nil
}

// Direction selects which incident edges of a node are returned.
type Direction int

const (
	Outgoing Direction = iota // Edges whose From is the node
	Incoming                  // Edges whose To is the node
	Both                      // Outgoing followed by incoming
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Reverse returns the opposite direction. Both is its own reverse.
func (d Direction) Reverse() Direction {
	switch d {
	case Outgoing:
		return Incoming
	case Incoming:
		return Outgoing
	default:
		return d
	}
}

// Node represents a program entity: a variable, a statement or a CFG block.
type Node struct {
	ID     string            `json:"id" yaml:"id" msgpack:"id"`                                 // Unique identifier
	Labels []string          `json:"labels,omitempty" yaml:"labels,omitempty" msgpack:"labels"` // Node labels
	Props  map[string]string `json:"props,omitempty" yaml:"props,omitempty" msgpack:"props"`    // Property bag
}

// HasLabel reports whether the node carries label.
func (n *Node) HasLabel(label string) bool {
	return slices.Contains(n.Labels, label)
}

// HasAnyLabel reports whether the node carries at least one of labels.
// An empty label list matches every node.
func (n *Node) HasAnyLabel(labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		if n.HasLabel(l) {
			return true
		}
	}
	return false
}

// Prop returns the value of a property, or "" when it is absent.
func (n *Node) Prop(key string) string {
	if n.Props == nil {
		return ""
	}
	return n.Props[key]
}

// FunctionName parses the function identity out of the node's qualified
// identifier: the substring of property before the first delimiter. When the
// property is missing the node ID is used; when the delimiter is absent the
// whole identifier is the function name.
func (n *Node) FunctionName(property, delimiter string) string {
	ident := n.Prop(property)
	if ident == "" {
		ident = n.ID
	}
	if delimiter == "" {
		return ident
	}
	name, _, _ := strings.Cut(ident, delimiter)
	return name
}

// Edge represents a typed directed edge between two nodes.
type Edge struct {
	ID    string            `json:"id" yaml:"id" msgpack:"id"`                              // Unique identifier
	Type  EdgeType          `json:"type" yaml:"type" msgpack:"type"`                        // Edge type
	From  string            `json:"from" yaml:"from" msgpack:"from"`                        // Source node ID
	To    string            `json:"to" yaml:"to" msgpack:"to"`                              // Target node ID
	Props map[string]string `json:"props,omitempty" yaml:"props,omitempty" msgpack:"props"` // Property bag
}

// Prop returns the value of a property, or "" when it is absent.
func (e *Edge) Prop(key string) string {
	if e.Props == nil {
		return ""
	}
	return e.Props[key]
}

// Flag reports whether a boolean-like property is set. Flags are stored as "1".
func (e *Edge) Flag(name string) bool {
	return e.Prop(name) == "1"
}

// IsInvoke reports whether the edge is a nextCFGBlock call transition.
func (e *Edge) IsInvoke() bool {
	return e.Type == EdgeNextCFGBlock && e.Flag(FlagInvoke)
}

// IsReturn reports whether the edge is a nextCFGBlock return transition.
func (e *Edge) IsReturn() bool {
	return e.Type == EdgeNextCFGBlock && e.Flag(FlagReturn)
}

// Other returns the endpoint of the edge opposite to nodeID.
func (e *Edge) Other(nodeID string) string {
	if e.From == nodeID {
		return e.To
	}
	return e.From
}

// Endpoint returns To for outgoing traversal and From for incoming traversal.
func (e *Edge) Endpoint(dir Direction) string {
	if dir == Incoming {
		return e.From
	}
	return e.To
}

// Origin returns From for outgoing traversal and To for incoming traversal.
func (e *Edge) Origin(dir Direction) string {
	if dir == Incoming {
		return e.To
	}
	return e.From
}

func (e *Edge) String() string {
	return fmt.Sprintf("%s-[%s]->%s", e.From, e.Type, e.To)
}
