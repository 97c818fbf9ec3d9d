package reach

import (
	"slices"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

// Policy captures everything that differs between forward and backward
// searches: which way edges are followed, which call transition opens a
// frame and which closes it, and which side of an association is entered
// first.
type Policy interface {
	// Backward reports whether edges are traversed against their direction.
	Backward() bool

	// Traversal is the direction in which dataflow and nextCFGBlock edges
	// are followed.
	Traversal() graph.Direction

	// Opens reports whether traversing e pushes a call frame.
	Opens(e *graph.Edge) bool

	// Closes reports whether traversing e pops a call frame.
	Closes(e *graph.Edge) bool

	// Enter is the block at which the association is entered.
	Enter(p Pair) string

	// Leave is the block at which the association is left.
	Leave(p Pair) string

	// Hops returns the association's nextCFGBlock edges in traversal order.
	Hops(p Pair) []*graph.Edge
}

// Forward returns the program-order policy: invokes open frames and returns
// close them.
func Forward() Policy {
	return forward{}
}

// Backward returns the reverse policy: returns open frames and invokes close
// them.
func Backward() Policy {
	return backward{}
}

// PolicyFor selects the policy for the given direction.
func PolicyFor(backwardSearch bool) Policy {
	if backwardSearch {
		return Backward()
	}
	return Forward()
}

type forward struct{}

func (forward) Backward() bool             { return false }
func (forward) Traversal() graph.Direction { return graph.Outgoing }
func (forward) Opens(e *graph.Edge) bool   { return e.IsInvoke() }
func (forward) Closes(e *graph.Edge) bool  { return e.IsReturn() }
func (forward) Enter(p Pair) string        { return p.Start }
func (forward) Leave(p Pair) string        { return p.End }
func (forward) Hops(p Pair) []*graph.Edge  { return p.Hops }

type backward struct{}

func (backward) Backward() bool             { return true }
func (backward) Traversal() graph.Direction { return graph.Incoming }
func (backward) Opens(e *graph.Edge) bool   { return e.IsReturn() }
func (backward) Closes(e *graph.Edge) bool  { return e.IsInvoke() }
func (backward) Enter(p Pair) string        { return p.End }
func (backward) Leave(p Pair) string        { return p.Start }

func (backward) Hops(p Pair) []*graph.Edge {
	hops := slices.Clone(p.Hops)
	slices.Reverse(hops)
	return hops
}
