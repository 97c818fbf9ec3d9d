// Package reach decides whether consecutive dataflow edges are feasible with
// respect to the control-flow graph. Every dataflow edge is associated with
// CFG blocks through its Source and Destination link edges; a path of
// dataflow edges is feasible when the blocks of each edge can be reached from
// the blocks of the previous one over nextCFGBlock edges while invoke and
// return transitions stay matched on a call stack.
package reach

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

// Options configures a Checker.
type Options struct {
	Backward          bool     // Follow edges against their direction
	ExternalEntry     bool     // Let a close with no open frame leave the search's own boundary
	MaxCallDepth      int      // Branches with deeper stacks are pruned
	FunctionProperty  string   // Node property holding the qualified identifier
	FunctionDelimiter string   // The function name is the identifier prefix before this
	CacheSize         int      // Memoized edge associations
	MaxStates         int      // Bound on (block, stack) states explored per step
	MaxHopPaths       int      // Bound on hop sequences kept per exact-length association
	Settings          Settings // CFG settings table; nil means DefaultSettings
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ExternalEntry:     true,
		MaxCallDepth:      32,
		FunctionProperty:  "name",
		FunctionDelimiter: "#",
		CacheSize:         4096,
		MaxStates:         100000,
		MaxHopPaths:       64,
		Settings:          DefaultSettings(),
	}
}

// Checker validates dataflow edges against the CFG. It is safe for
// concurrent use; memoized associations and function names are shared.
type Checker struct {
	store     graph.Store
	opts      Options
	policy    Policy
	assoc     *associator
	functions sync.Map // block id -> function name
}

// NewChecker creates a checker over store. Zero numeric options take their
// defaults.
func NewChecker(store graph.Store, opts Options) (*Checker, error) {
	defaults := DefaultOptions()
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = defaults.MaxCallDepth
	}
	if opts.FunctionProperty == "" {
		opts.FunctionProperty = defaults.FunctionProperty
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaults.CacheSize
	}
	if opts.MaxStates <= 0 {
		opts.MaxStates = defaults.MaxStates
	}
	if opts.MaxHopPaths <= 0 {
		opts.MaxHopPaths = defaults.MaxHopPaths
	}
	if opts.Settings == nil {
		opts.Settings = defaults.Settings
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}

	return &Checker{
		store:  store,
		opts:   opts,
		policy: PolicyFor(opts.Backward),
		assoc:  newAssociator(store, opts.Settings, opts.CacheSize, opts.MaxHopPaths),
	}, nil
}

// Policy returns the direction policy in use.
func (c *Checker) Policy() Policy {
	return c.policy
}

// Associations returns the CFG pairs of a dataflow edge.
func (c *Checker) Associations(ctx context.Context, e *graph.Edge) ([]Pair, error) {
	return c.assoc.pairs(ctx, e)
}

// Init computes the frontier of a single-edge path: the blocks where the
// edge's associations are left, with the call stacks their hops produce.
func (c *Checker) Init(ctx context.Context, e *graph.Edge) (*Frontier, error) {
	as, err := c.assoc.lookup(ctx, e)
	if err != nil {
		return nil, err
	}

	b := newFrontierBuilder()
	b.incomplete = as.capped
	for _, p := range as.pairs {
		stack, ok, err := c.across(ctx, nil, p)
		if err != nil {
			return nil, err
		}
		if ok {
			b.add(c.policy.Leave(p), stack)
		}
	}
	return b.build(), nil
}

// Step extends a validated frontier across the next edge. from is the edge
// the frontier belongs to and to the edge being appended. A nil frontier is
// computed from from first. The result is empty when to is infeasible or
// when the state budget ran out first; Incomplete tells the two apart.
//
// Step runs a breadth-first search over (block, stack) states along
// nextCFGBlock edges, starting at every frontier state, and crosses to's
// association wherever the search enters one of its blocks.
func (c *Checker) Step(ctx context.Context, frontier *Frontier, from, to *graph.Edge) (*Frontier, error) {
	if frontier == nil {
		var err error
		if frontier, err = c.Init(ctx, from); err != nil {
			return nil, err
		}
	}
	if frontier.Empty() {
		return NewFrontier(), nil
	}

	as, err := c.assoc.lookup(ctx, to)
	if err != nil {
		return nil, err
	}
	entries := make(map[string][]Pair)
	for _, p := range as.pairs {
		enter := c.policy.Enter(p)
		entries[enter] = append(entries[enter], p)
	}

	result := newFrontierBuilder()
	result.incomplete = as.capped
	if len(entries) == 0 {
		return result.build(), nil
	}

	visited := make(map[string]struct{})
	queue := list.New()
	for _, s := range frontier.states {
		visited[s.key()] = struct{}{}
		queue.PushBack(s)
	}

	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state := queue.Remove(queue.Front()).(State)

		for _, p := range entries[state.Block] {
			stack, ok, err := c.across(ctx, state.Stack, p)
			if err != nil {
				return nil, err
			}
			if ok {
				result.add(c.policy.Leave(p), stack)
			}
		}

		if len(visited) >= c.opts.MaxStates {
			result.incomplete = true
			continue
		}

		next, err := c.store.Edges(ctx, state.Block, c.policy.Traversal(), graph.EdgeNextCFGBlock)
		if err != nil {
			return nil, fmt.Errorf("failed to load cfg edges of %s: %w", state.Block, err)
		}
		for _, e := range next {
			stack, ok, err := c.transition(ctx, state.Stack, e)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			ns := State{Block: e.Endpoint(c.policy.Traversal()), Stack: stack}
			k := ns.key()
			if _, seen := visited[k]; seen {
				continue
			}
			visited[k] = struct{}{}
			queue.PushBack(ns)
		}
	}

	return result.build(), nil
}

// Verify re-checks a whole path, edge by edge in traversal order. It returns
// the final frontier and the index of the first infeasible edge, or -1.
func (c *Checker) Verify(ctx context.Context, edges []*graph.Edge) (*Frontier, int, error) {
	if len(edges) == 0 {
		return NewFrontier(), -1, nil
	}
	frontier, err := c.Init(ctx, edges[0])
	if err != nil {
		return nil, 0, err
	}
	if frontier.Empty() {
		return frontier, 0, nil
	}
	for i := 1; i < len(edges); i++ {
		frontier, err = c.Step(ctx, frontier, edges[i-1], edges[i])
		if err != nil {
			return nil, i, err
		}
		if frontier.Empty() {
			return frontier, i, nil
		}
	}
	return frontier, -1, nil
}

// across applies an association's hops to stack. Unbounded associations leave
// the stack untouched.
func (c *Checker) across(ctx context.Context, stack *Stack, p Pair) (*Stack, bool, error) {
	if p.Unbounded {
		return stack, true, nil
	}
	for _, hop := range c.policy.Hops(p) {
		var ok bool
		var err error
		stack, ok, err = c.transition(ctx, stack, hop)
		if err != nil || !ok {
			return nil, false, err
		}
	}
	return stack, true, nil
}

// transition applies one nextCFGBlock edge to a call stack. It reports false
// when the branch must be pruned.
func (c *Checker) transition(ctx context.Context, stack *Stack, e *graph.Edge) (*Stack, bool, error) {
	if e.IsReturn() {
		ok, err := c.wellFormedReturn(ctx, e)
		if err != nil || !ok {
			return nil, false, err
		}
	}

	switch {
	case c.policy.Opens(e):
		fn, err := c.function(ctx, callee(e))
		if err != nil {
			return nil, false, err
		}
		next := stack.Push(Frame{Edge: e, Function: fn})
		if next.Depth() > c.opts.MaxCallDepth {
			return nil, false, nil
		}
		return next, true, nil

	case c.policy.Closes(e):
		top, ok := stack.Top()
		if !ok {
			// The frame was opened before the search's boundary.
			return nil, c.opts.ExternalEntry, nil
		}
		fn, err := c.function(ctx, callee(e))
		if err != nil {
			return nil, false, err
		}
		if top.Function != fn {
			return nil, false, nil
		}
		return stack.Pop(), true, nil
	}

	return stack, true, nil
}

// wellFormedReturn reports whether both blocks of a return edge carry the
// identity of the function being returned from.
func (c *Checker) wellFormedReturn(ctx context.Context, e *graph.Edge) (bool, error) {
	from, err := c.function(ctx, e.From)
	if err != nil {
		return false, err
	}
	to, err := c.function(ctx, e.To)
	if err != nil {
		return false, err
	}
	return from == to, nil
}

// callee is the block of a call transition that lies inside the called
// function: the target of an invoke, the source of a return.
func callee(e *graph.Edge) string {
	if e.IsReturn() && !e.IsInvoke() {
		return e.From
	}
	return e.To
}

// function resolves and memoizes the function identity of a block.
func (c *Checker) function(ctx context.Context, block string) (string, error) {
	if fn, ok := c.functions.Load(block); ok {
		return fn.(string), nil
	}
	n, err := c.store.Node(ctx, block)
	if err != nil {
		return "", fmt.Errorf("failed to load cfg block %s: %w", block, err)
	}
	fn := n.FunctionName(c.opts.FunctionProperty, c.opts.FunctionDelimiter)
	c.functions.Store(block, fn)
	return fn, nil
}
