package reach

import (
	"slices"
	"sort"
	"strings"
)

// State is a CFG block reached under one call-stack hypothesis.
type State struct {
	Block string
	Stack *Stack
}

func (s State) key() string {
	return s.Block + "\x00" + s.Stack.Key()
}

// Frontier is the set of CFG blocks reachable after validating a path's last
// edge, each with the call stacks under which it was reached. A nil
// *Frontier means the frontier has not been computed yet; a non-nil frontier
// without states means the path is CFG-infeasible, unless the frontier is
// Incomplete.
type Frontier struct {
	states     []State // sorted by block, then stack key
	incomplete bool
}

// NewFrontier builds a frontier from states, dropping duplicates.
func NewFrontier(states ...State) *Frontier {
	b := newFrontierBuilder()
	for _, s := range states {
		b.add(s.Block, s.Stack)
	}
	return b.build()
}

// Empty reports whether no block is reachable.
func (f *Frontier) Empty() bool {
	return f == nil || len(f.states) == 0
}

// Incomplete reports whether the exploration that produced the frontier was
// cut short by the state budget or the hop-sequence cap. Blocks may be missing
// from an incomplete frontier, so an empty one does not prove infeasibility.
func (f *Frontier) Incomplete() bool {
	return f != nil && f.incomplete
}

// Len returns the number of distinct blocks.
func (f *Frontier) Len() int {
	return len(f.Blocks())
}

// Blocks returns the sorted, distinct block ids.
func (f *Frontier) Blocks() []string {
	if f == nil {
		return nil
	}
	var blocks []string
	for _, s := range f.states {
		if n := len(blocks); n == 0 || blocks[n-1] != s.Block {
			blocks = append(blocks, s.Block)
		}
	}
	return blocks
}

// States returns a copy of the (block, stack) states.
func (f *Frontier) States() []State {
	if f == nil {
		return nil
	}
	return slices.Clone(f.states)
}

// Contains reports whether block is in the frontier.
func (f *Frontier) Contains(block string) bool {
	return slices.Contains(f.Blocks(), block)
}

func (f *Frontier) String() string {
	return "{" + strings.Join(f.Blocks(), ", ") + "}"
}

// frontierBuilder accumulates de-duplicated states.
type frontierBuilder struct {
	seen       map[string]struct{}
	states     []State
	incomplete bool
}

func newFrontierBuilder() *frontierBuilder {
	return &frontierBuilder{seen: make(map[string]struct{})}
}

func (b *frontierBuilder) add(block string, stack *Stack) {
	s := State{Block: block, Stack: stack}
	k := s.key()
	if _, ok := b.seen[k]; ok {
		return
	}
	b.seen[k] = struct{}{}
	b.states = append(b.states, s)
}

func (b *frontierBuilder) build() *Frontier {
	sort.Slice(b.states, func(i, j int) bool {
		if b.states[i].Block != b.states[j].Block {
			return b.states[i].Block < b.states[j].Block
		}
		return b.states[i].Stack.Key() < b.states[j].Stack.Key()
	})
	return &Frontier{states: b.states, incomplete: b.incomplete}
}
