package search

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/l3aro/go-flow-query/internal/log"
	"github.com/l3aro/go-flow-query/pkg/candidate"
	"github.com/l3aro/go-flow-query/pkg/graph"
	"github.com/l3aro/go-flow-query/pkg/pattern"
	"github.com/l3aro/go-flow-query/pkg/reach"
)

// Engine runs dataflow path searches over one graph snapshot. The pattern
// and CFG settings are compiled once; an Engine is safe for concurrent
// searches.
type Engine struct {
	store     graph.Store
	opts      Options
	automaton *pattern.Automaton // in traversal order
	checker   *reach.Checker
	policy    reach.Policy
	logger    log.Logger
}

// New creates an engine. Malformed patterns and CFG settings are reported
// here, before any search starts.
func New(store graph.Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rel := opts.RelSequence
	if rel == "" {
		rel = pattern.DefaultPattern
	}
	automaton, err := pattern.Compile(rel, opts.Repeat)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern: %w", err)
	}
	if opts.Backward {
		automaton = automaton.Reverse()
	}

	checker, err := reach.NewChecker(store, opts.checkerOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to configure cfg checker: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	return &Engine{
		store:     store,
		opts:      opts,
		automaton: automaton,
		checker:   checker,
		policy:    checker.Policy(),
		logger:    logger,
	}, nil
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Automaton returns the compiled pattern in traversal order.
func (e *Engine) Automaton() *pattern.Automaton {
	return e.automaton
}

// Checker returns the CFG checker used by the engine.
func (e *Engine) Checker() *reach.Checker {
	return e.checker
}

// Search finds dataflow paths from start to end. A zero end anchor accepts
// any path on which the pattern may stop.
//
// An unreachable end yields an empty result. If ctx is cancelled the paths
// found so far are returned with Truncated set. Store failures abort the
// search with an error and no result.
func (e *Engine) Search(ctx context.Context, start, end Anchor) (*Result, error) {
	return e.search(ctx, start, end, nil)
}

func (e *Engine) search(ctx context.Context, start, end Anchor, shared *VisitedSet) (*Result, error) {
	runID := uuid.NewString()
	mode := modeLabel(e.opts)

	ctx, span := tracer.Start(ctx, "search.Search",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("start", start.String()),
			attribute.String("end", end.String()),
			attribute.String("mode", mode),
			attribute.Bool("cfg_check", e.opts.CFGCheck),
		),
	)
	defer span.End()
	began := time.Now()

	fail := func(err error) (*Result, error) {
		searchTotal.WithLabelValues(outcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("search failed", "run_id", runID, "error", err)
		return nil, err
	}

	if start.IsZero() {
		return fail(ErrMissingAnchor)
	}
	if err := start.Validate(); err != nil {
		return fail(err)
	}
	if err := end.Validate(); err != nil {
		return fail(err)
	}

	r := &run{
		Engine:  e,
		start:   start,
		end:     end,
		shared:  shared,
		visited: make(map[string]int),
		allowed: make(map[string]bool),
		covered: make(map[string]struct{}),
		queue:   list.New(),
		result: &Result{
			RunID:    runID,
			Start:    start,
			End:      end,
			Category: CategoryOf(start, end),
			Paths:    []Path{},
		},
	}

	if err := r.execute(ctx); err != nil {
		return fail(err)
	}
	searchDuration.WithLabelValues(mode).Observe(time.Since(began).Seconds())

	result := r.result
	switch {
	case result.Truncated:
		searchTotal.WithLabelValues(outcomeTruncated).Inc()
	case len(result.Paths) == 0:
		searchTotal.WithLabelValues(outcomeEmpty).Inc()
	default:
		searchTotal.WithLabelValues(outcomeFound).Inc()
	}
	span.SetAttributes(
		attribute.Int("paths", len(result.Paths)),
		attribute.Int("expanded", result.Stats.Expanded),
		attribute.Bool("truncated", result.Truncated),
	)
	e.logger.Debug("search finished",
		"run_id", runID,
		"category", result.Category,
		"paths", len(result.Paths),
		"expanded", result.Stats.Expanded,
		"truncated", result.Truncated,
	)
	return result, nil
}

// run is the state of one search.
type run struct {
	*Engine
	start, end Anchor
	shared     *VisitedSet
	result     *Result
	startNode  string

	queue   *list.List
	visited map[string]int  // edge@index -> shortest checked depth
	allowed map[string]bool // node filter verdicts

	winning int             // length of the first accepted path in all-shortest mode
	anchor  *candidate.Path // first accepted path with returns in all-shortest mode
	covered map[string]struct{}
}

func (r *run) execute(ctx context.Context) error {
	if err := r.seed(ctx); err != nil {
		return r.interrupted(err)
	}
	r.logger.Debug("search seeded", "run_id", r.result.RunID, "start", r.startNode, "seeds", r.queue.Len())

	for r.queue.Len() > 0 {
		if ctx.Err() != nil {
			r.result.Truncated = true
			return nil
		}

		p := r.queue.Remove(r.queue.Front()).(*candidate.Path)
		r.result.Stats.Expanded++
		if p.Len() > r.result.Stats.MaxLength {
			r.result.Stats.MaxLength = p.Len()
		}

		if r.winning > 0 {
			// The winning level is drained; everything left is longer.
			if p.Len() > r.winning {
				return nil
			}
			if r.duplicate(p) {
				r.result.Stats.Deduped++
				continue
			}
		}

		checked, ok, err := r.check(ctx, p)
		if err != nil {
			return r.interrupted(err)
		}
		if !ok || !r.claim(checked) {
			continue
		}

		if r.accepts(checked) {
			r.accept(checked)
			if !r.opts.AllShortestPath {
				return nil
			}
			if r.opts.MaxResults > 0 && len(r.result.Paths) >= r.opts.MaxResults {
				r.result.Truncated = true
				return nil
			}
			continue
		}
		if r.winning > 0 {
			continue
		}

		if err := r.expand(ctx, checked); err != nil {
			return r.interrupted(err)
		}
	}
	return nil
}

// interrupted turns cancellation into a truncated result and passes every
// other error through.
func (r *run) interrupted(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.result.Truncated = true
		return nil
	}
	return err
}

// seed enqueues the single-edge paths leaving the start anchor.
func (r *run) seed(ctx context.Context) error {
	dir := r.policy.Traversal()

	if r.start.Kind == AnchorEdge {
		e, err := r.store.Edge(ctx, r.start.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve start edge: %w", err)
		}
		r.startNode = e.Origin(dir)
		next, terminal, err := r.automaton.Advance(e.Type, 0)
		if err != nil {
			r.logger.Debug("start edge does not match the pattern", "edge", e.ID, "type", e.Type)
			return nil
		}
		r.push(candidate.FromEdge(e, next, terminal))
		return nil
	}

	n, err := r.store.Node(ctx, r.start.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve start node: %w", err)
	}
	r.startNode = n.ID

	edges, err := r.store.Edges(ctx, n.ID, dir, r.automaton.Eligible(0)...)
	if err != nil {
		return fmt.Errorf("failed to load edges of %s: %w", n.ID, err)
	}
	for _, e := range edges {
		next, terminal, err := r.automaton.Advance(e.Type, 0)
		if err != nil {
			continue
		}
		ok, err := r.traversable(ctx, e.Endpoint(dir))
		if err != nil {
			return err
		}
		if ok {
			r.push(candidate.FromEdge(e, next, terminal))
		}
	}
	return nil
}

// expand enqueues one child per unvisited edge the pattern allows next.
func (r *run) expand(ctx context.Context, p *candidate.Path) error {
	if r.opts.MaxDepth > 0 && p.Len() >= r.opts.MaxDepth {
		return nil
	}
	types := r.automaton.Eligible(p.Index())
	if len(types) == 0 {
		return nil
	}

	dir := r.policy.Traversal()
	node := p.Last().Endpoint(dir)
	edges, err := r.store.Edges(ctx, node, dir, types...)
	if err != nil {
		return fmt.Errorf("failed to load edges of %s: %w", node, err)
	}

	for _, e := range edges {
		if p.Contains(e.ID) {
			continue
		}
		next, terminal, err := r.automaton.Advance(e.Type, p.Index())
		if err != nil {
			continue
		}
		if r.seen(e.ID, next, p.Len()+1) {
			continue
		}
		ok, err := r.traversable(ctx, e.Endpoint(dir))
		if err != nil {
			return err
		}
		if ok {
			r.push(p.Extend(e, next, terminal, r.opts.Backward))
		}
	}
	return nil
}

func (r *run) push(p *candidate.Path) {
	r.queue.PushBack(p)
	r.result.Stats.Enqueued++
}

// check validates the last edge of p against the CFG.
func (r *run) check(ctx context.Context, p *candidate.Path) (*candidate.Path, bool, error) {
	if !r.opts.CFGCheck {
		return p, true, nil
	}
	r.result.Stats.Checked++

	var frontier *reach.Frontier
	var err error
	if p.Len() == 1 {
		frontier, err = r.checker.Init(ctx, p.Last())
	} else {
		frontier, err = r.checker.Step(ctx, p.Frontier(), p.Previous(), p.Last())
	}
	if err != nil {
		return nil, false, fmt.Errorf("cfg check of %s failed: %w", p.Last().ID, err)
	}

	if frontier.Incomplete() {
		r.result.Truncated = true
		r.result.Stats.Incomplete++
		r.logger.Warn("cfg check cut short by state or hop budget", "run_id", r.result.RunID, "edge", p.Last().ID)
	}
	if frontier.Empty() {
		cfgChecks.WithLabelValues("rejected").Inc()
		r.result.Stats.Rejected++
		r.logger.Debug("cfg check rejected", "run_id", r.result.RunID, "edge", p.Last().ID, "length", p.Len())
		return nil, false, nil
	}
	cfgChecks.WithLabelValues("accepted").Inc()
	return p.WithFrontier(frontier), true, nil
}

func visitKey(edgeID string, index int) string {
	return edgeID + "@" + strconv.Itoa(index)
}

// seen reports whether a checked path already reached edgeID at index early
// enough to make a path of length depth redundant.
func (r *run) seen(edgeID string, index, depth int) bool {
	d, ok := r.visited[visitKey(edgeID, index)]
	if !ok {
		return false
	}
	if r.opts.AllShortestPath {
		return depth > d
	}
	return true
}

// claim records a checked path's last edge as visited. It reports false when
// the path is redundant. In all-shortest mode paths of equal length share a
// claim.
func (r *run) claim(p *candidate.Path) bool {
	key := visitKey(p.Last().ID, p.Index())
	if d, ok := r.visited[key]; ok {
		return r.opts.AllShortestPath && p.Len() <= d
	}
	if r.shared != nil && !r.shared.Insert(key) {
		return false
	}
	r.visited[key] = p.Len()
	return true
}

// traversable applies the node filter.
func (r *run) traversable(ctx context.Context, nodeID string) (bool, error) {
	if len(r.opts.NodeFilter) == 0 {
		return true, nil
	}
	if ok, cached := r.allowed[nodeID]; cached {
		return ok, nil
	}
	n, err := r.store.Node(ctx, nodeID)
	if err != nil {
		return false, fmt.Errorf("failed to load node %s: %w", nodeID, err)
	}
	ok := n.HasAnyLabel(r.opts.NodeFilter)
	r.allowed[nodeID] = ok
	return ok, nil
}

// accepts reports whether p may stop here and ends at the end anchor.
func (r *run) accepts(p *candidate.Path) bool {
	if !p.Terminal() {
		return false
	}
	last := p.Last()
	switch {
	case r.end.IsZero():
		return true
	case r.end.Kind == AnchorEdge:
		return last.ID == r.end.ID
	default:
		return last.Endpoint(r.policy.Traversal()) == r.end.ID
	}
}

// duplicate reports whether p repeats the return structure of an accepted
// path of the winning length. Every accepted path with returns must share the
// source of its first return with the anchor.
func (r *run) duplicate(p *candidate.Path) bool {
	if len(p.Returns()) > 0 && r.anchor != nil && !p.CompareReturns(r.anchor) {
		return true
	}
	for _, sig := range p.ReturnCombinations() {
		if _, ok := r.covered[sig]; ok {
			return true
		}
	}
	return false
}

func (r *run) accept(p *candidate.Path) {
	path := r.render(p)
	r.result.Paths = append(r.result.Paths, path)
	pathsEmitted.Inc()
	r.logger.Debug("path accepted", "run_id", r.result.RunID, "path", path.String())

	if !r.opts.AllShortestPath {
		return
	}
	if r.winning == 0 {
		r.winning = p.Len()
	}
	if r.anchor == nil && len(p.Returns()) > 0 {
		r.anchor = p
	}
	for _, sig := range p.ReturnCombinations() {
		r.covered[sig] = struct{}{}
	}
}

// render converts a candidate into the node/edge alternation returned to
// callers.
func (r *run) render(p *candidate.Path) Path {
	dir := r.policy.Traversal()
	edges := p.Edges()
	nodes := make([]string, 0, len(edges)+1)
	nodes = append(nodes, r.startNode)
	for _, e := range edges {
		nodes = append(nodes, e.Endpoint(dir))
	}
	out := Path{Nodes: nodes, Edges: edges}
	if p.Checked() {
		out.Frontier = p.Frontier().Blocks()
	}
	return out
}

// Verify re-checks a sequence of edge ids, given in traversal order, against
// the CFG. It returns the final frontier and the index of the first
// infeasible edge, or -1.
func (e *Engine) Verify(ctx context.Context, edgeIDs []string) (*reach.Frontier, int, error) {
	edges := make([]*graph.Edge, len(edgeIDs))
	for i, id := range edgeIDs {
		edge, err := e.store.Edge(ctx, id)
		if err != nil {
			return nil, i, fmt.Errorf("failed to resolve edge: %w", err)
		}
		edges[i] = edge
	}
	return e.checker.Verify(ctx, edges)
}
