// Package candidate holds the partial paths explored by the dataflow search.
// A Path is never modified after construction: Extend and WithFrontier
// return new paths, so sibling branches never share mutable state.
package candidate

import (
	"slices"
	"strings"

	"github.com/l3aro/go-flow-query/pkg/graph"
	"github.com/l3aro/go-flow-query/pkg/reach"
)

// Path is a sequence of dataflow edges in traversal order, the CFG frontier
// after its last validated edge and the retWrite edges met so far.
type Path struct {
	edges    []*graph.Edge
	returns  []*graph.Edge
	frontier *reach.Frontier
	checked  bool
	index    int
	terminal bool
}

// FromEdge creates a single-edge path. Its frontier is not computed yet.
func FromEdge(e *graph.Edge, index int, terminal bool) *Path {
	p := &Path{
		edges:    []*graph.Edge{e},
		index:    index,
		terminal: terminal,
	}
	if e.Type == graph.EdgeRetWrite {
		p.returns = []*graph.Edge{e}
	}
	return p
}

// Extend returns a new path with e appended. The new path keeps the
// receiver's frontier until it is checked. A retWrite edge is added to the
// end of the return list, or to its front when prependReturn is set.
func (p *Path) Extend(e *graph.Edge, index int, terminal bool, prependReturn bool) *Path {
	edges := make([]*graph.Edge, len(p.edges), len(p.edges)+1)
	copy(edges, p.edges)
	edges = append(edges, e)

	returns := slices.Clone(p.returns)
	if e.Type == graph.EdgeRetWrite {
		if prependReturn {
			returns = slices.Insert(returns, 0, e)
		} else {
			returns = append(returns, e)
		}
	}

	return &Path{
		edges:    edges,
		returns:  returns,
		frontier: p.frontier,
		index:    index,
		terminal: terminal,
	}
}

// WithFrontier returns a copy of the path carrying the frontier computed for
// its last edge.
func (p *Path) WithFrontier(f *reach.Frontier) *Path {
	out := *p
	out.frontier = f
	out.checked = true
	return &out
}

// Edges returns a copy of the edges.
func (p *Path) Edges() []*graph.Edge { return slices.Clone(p.edges) }

// Returns returns a copy of the return list.
func (p *Path) Returns() []*graph.Edge { return slices.Clone(p.returns) }

// First returns the first edge.
func (p *Path) First() *graph.Edge { return p.edges[0] }

// Last returns the last edge.
func (p *Path) Last() *graph.Edge { return p.edges[len(p.edges)-1] }

// Previous returns the edge before the last one, or nil for single-edge paths.
func (p *Path) Previous() *graph.Edge {
	if len(p.edges) < 2 {
		return nil
	}
	return p.edges[len(p.edges)-2]
}

// Len returns the number of edges.
func (p *Path) Len() int { return len(p.edges) }

// Frontier returns the CFG frontier. Until Checked reports true this is the
// frontier of the path without its last edge.
func (p *Path) Frontier() *reach.Frontier { return p.frontier }

// Checked reports whether the frontier belongs to the last edge.
func (p *Path) Checked() bool { return p.checked }

// Index returns the pattern position after the last edge.
func (p *Path) Index() int { return p.index }

// Terminal reports whether the pattern may stop after the last edge.
func (p *Path) Terminal() bool { return p.terminal }

// Contains reports whether the edge is already on the path.
func (p *Path) Contains(edgeID string) bool {
	for _, e := range p.edges {
		if e.ID == edgeID {
			return true
		}
	}
	return false
}

// CompareReturns reports whether both paths have returns and their first
// returns originate from the same node.
func (p *Path) CompareReturns(other *Path) bool {
	if len(p.returns) == 0 || len(other.returns) == 0 {
		return false
	}
	return p.returns[0].From == other.returns[0].From
}

// ReturnCombinations returns the signature of every non-empty prefix of the
// return list, shortest first.
func (p *Path) ReturnCombinations() []string {
	out := make([]string, len(p.returns))
	for i := range p.returns {
		out[i] = signature(p.returns[:i+1])
	}
	return out
}

// ReturnSignature returns the signature of the full return list.
func (p *Path) ReturnSignature() string {
	return signature(p.returns)
}

func signature(returns []*graph.Edge) string {
	ids := make([]string, len(returns))
	for i, e := range returns {
		ids[i] = e.ID
	}
	return strings.Join(ids, ",")
}
