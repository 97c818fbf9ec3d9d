package reach

import (
	"container/list"
	"context"
	"fmt"
	"slices"

	"github.com/l3aro/go-flow-query/pkg/cache"
	"github.com/l3aro/go-flow-query/pkg/graph"
)

// Pair is one admissible association of a dataflow edge with the CFG: the
// block linked to the edge's source, the block linked to its destination and,
// for exact-length settings, the nextCFGBlock hops between them.
type Pair struct {
	Start     string        `json:"start"`               // Block linked through the Source edge
	End       string        `json:"end"`                 // Block linked through the Destination edge
	Hops      []*graph.Edge `json:"hops,omitempty"`      // Hops from Start to End in program order
	Unbounded bool          `json:"unbounded,omitempty"` // Plain reachability, no call matching
}

// association is the memoized result for one edge. capped is set when hop
// enumeration stopped at maxPaths.
type association struct {
	pairs  []Pair
	capped bool
}

// associator maps dataflow edges to their CFG pairs.
type associator struct {
	store    graph.Store
	settings Settings
	maxPaths int
	memo     *cache.LRUCache[string, association]
}

func newAssociator(store graph.Store, settings Settings, cacheSize, maxPaths int) *associator {
	return &associator{
		store:    store,
		settings: settings,
		maxPaths: maxPaths,
		memo:     cache.New(cache.Options[string, association]{MaxSize: cacheSize}),
	}
}

// lookup returns the memoized association of e. Pairs are ordered by start
// block, then end block.
func (a *associator) lookup(ctx context.Context, e *graph.Edge) (association, error) {
	return a.memo.GetOrLoad(e.ID, func() (association, error) {
		return a.compute(ctx, e)
	})
}

func (a *associator) pairs(ctx context.Context, e *graph.Edge) ([]Pair, error) {
	as, err := a.lookup(ctx, e)
	return as.pairs, err
}

func (a *associator) compute(ctx context.Context, e *graph.Edge) (association, error) {
	var as association
	if !e.Type.IsDataflow() {
		return as, fmt.Errorf("edge %s: %s is not a dataflow edge", e.ID, e.Type)
	}

	from, err := a.store.Node(ctx, e.From)
	if err != nil {
		return as, fmt.Errorf("failed to load source of %s: %w", e.ID, err)
	}
	to, err := a.store.Node(ctx, e.To)
	if err != nil {
		return as, fmt.Errorf("failed to load target of %s: %w", e.ID, err)
	}

	setting, ok := a.settings.Lookup(from.Labels, e.Type, to.Labels)
	if !ok {
		return as, nil
	}

	starts, err := a.linked(ctx, e.From, e.Type.SourceLink())
	if err != nil {
		return as, err
	}
	ends, err := a.linked(ctx, e.To, e.Type.DestinationLink())
	if err != nil {
		return as, err
	}
	if len(starts) == 0 || len(ends) == 0 {
		return as, nil
	}

	for _, s := range starts {
		switch {
		case setting.Length == 0:
			if slices.Contains(ends, s) {
				as.pairs = append(as.pairs, Pair{Start: s, End: s})
			}
		case setting.Length.Unbounded():
			reached, err := a.reachable(ctx, s, setting.Length == LengthOneOrMore)
			if err != nil {
				return as, err
			}
			for _, d := range ends {
				if _, ok := reached[d]; ok {
					as.pairs = append(as.pairs, Pair{Start: s, End: d, Unbounded: true})
				}
			}
		default:
			found, capped, err := a.hopPaths(ctx, s, ends, int(setting.Length), setting.Attributes)
			if err != nil {
				return as, err
			}
			as.pairs = append(as.pairs, found...)
			as.capped = as.capped || capped
		}
	}
	return as, nil
}

// linked returns the distinct targets of nodeID's link edges of type t.
func (a *associator) linked(ctx context.Context, nodeID string, t graph.EdgeType) ([]string, error) {
	links, err := a.store.Edges(ctx, nodeID, graph.Outgoing, t)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s links of %s: %w", t, nodeID, err)
	}
	var blocks []string
	for _, l := range links {
		if !slices.Contains(blocks, l.To) {
			blocks = append(blocks, l.To)
		}
	}
	slices.Sort(blocks)
	return blocks, nil
}

// reachable returns the blocks reachable from start over nextCFGBlock edges
// in program order. start itself is included unless atLeastOne is set and no
// cycle leads back to it.
func (a *associator) reachable(ctx context.Context, start string, atLeastOne bool) (map[string]struct{}, error) {
	reached := make(map[string]struct{})
	queue := list.New()

	if atLeastOne {
		if err := a.pushSuccessors(ctx, start, reached, queue); err != nil {
			return nil, err
		}
	} else {
		reached[start] = struct{}{}
		queue.PushBack(start)
	}

	for queue.Len() > 0 {
		block := queue.Remove(queue.Front()).(string)
		if err := a.pushSuccessors(ctx, block, reached, queue); err != nil {
			return nil, err
		}
	}
	return reached, nil
}

func (a *associator) pushSuccessors(ctx context.Context, block string, reached map[string]struct{}, queue *list.List) error {
	next, err := a.store.Edges(ctx, block, graph.Outgoing, graph.EdgeNextCFGBlock)
	if err != nil {
		return fmt.Errorf("failed to load successors of %s: %w", block, err)
	}
	for _, e := range next {
		if _, ok := reached[e.To]; ok {
			continue
		}
		reached[e.To] = struct{}{}
		queue.PushBack(e.To)
	}
	return nil
}

// hopPaths enumerates the sequences of exactly n nextCFGBlock hops from start
// to any of ends in which every hop carries all attrs. At most maxPaths
// sequences are kept; capped reports that the walk stopped there.
func (a *associator) hopPaths(ctx context.Context, start string, ends []string, n int, attrs []string) (pairs []Pair, capped bool, err error) {
	var walk func(block string, hops []*graph.Edge) error
	walk = func(block string, hops []*graph.Edge) error {
		if len(pairs) >= a.maxPaths {
			capped = true
			return nil
		}
		if len(hops) == n {
			if slices.Contains(ends, block) {
				pairs = append(pairs, Pair{Start: start, End: block, Hops: slices.Clone(hops)})
			}
			return nil
		}
		next, err := a.store.Edges(ctx, block, graph.Outgoing, graph.EdgeNextCFGBlock)
		if err != nil {
			return fmt.Errorf("failed to load successors of %s: %w", block, err)
		}
		for _, e := range next {
			if !hasAll(e, attrs) {
				continue
			}
			if err := walk(e.To, append(hops, e)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(start, make([]*graph.Edge, 0, n)); err != nil {
		return nil, false, err
	}
	return pairs, capped, nil
}

func hasAll(e *graph.Edge, attrs []string) bool {
	for _, attr := range attrs {
		if !e.Flag(attr) {
			return false
		}
	}
	return true
}
