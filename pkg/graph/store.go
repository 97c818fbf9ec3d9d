package graph

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
)

// Store is the read-only view of a graph snapshot that the search engine
// consumes. Implementations must return edges in a deterministic order so
// that searches are reproducible.
type Store interface {
	// Node looks up a node by id.
	Node(ctx context.Context, id string) (*Node, error)

	// Edge looks up an edge by id.
	Edge(ctx context.Context, id string) (*Edge, error)

	// Edges returns the edges incident to nodeID in direction dir, restricted
	// to the given types. No types means every type.
	Edges(ctx context.Context, nodeID string, dir Direction, types ...EdgeType) ([]*Edge, error)
}

// MemGraph is an in-memory labeled multigraph implementing Store.
//
// MemGraph is built single-threaded with AddNode/AddEdge, then Freeze makes
// it read-only; after Freeze it is safe for concurrent reads.
type MemGraph struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	edges  map[string]*Edge
	order  []string // node ids in insertion order
	eorder []string // edge ids in insertion order

	outgoing map[string][]*Edge
	incoming map[string][]*Edge

	frozen bool
	closed atomic.Bool
}

// NewMemGraph creates an empty graph.
func NewMemGraph() *MemGraph {
	return &MemGraph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
	}
}

// AddNode adds a node. Node ids must be unique.
func (g *MemGraph) AddNode(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrFrozen
	}
	if n == nil || n.ID == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("node %s: %w", n.ID, ErrDuplicateID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

// AddEdge adds an edge. Both endpoints must already exist and the type must
// belong to the closed edge-type set.
func (g *MemGraph) AddEdge(e *Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrFrozen
	}
	if e == nil || e.ID == "" {
		return fmt.Errorf("edge id must not be empty")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("edge %s: unknown edge type %q", e.ID, e.Type)
	}
	if _, exists := g.edges[e.ID]; exists {
		return fmt.Errorf("edge %s: %w", e.ID, ErrDuplicateID)
	}
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("edge %s source %s: %w", e.ID, e.From, ErrNodeNotFound)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("edge %s target %s: %w", e.ID, e.To, ErrNodeNotFound)
	}

	g.edges[e.ID] = e
	g.eorder = append(g.eorder, e.ID)
	g.outgoing[e.From] = append(g.outgoing[e.From], e)
	g.incoming[e.To] = append(g.incoming[e.To], e)
	return nil
}

// Freeze makes the graph read-only.
func (g *MemGraph) Freeze() {
	g.mu.Lock()
	g.frozen = true
	g.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (g *MemGraph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// Close invalidates the snapshot. Every subsequent read fails with
// ErrSnapshotClosed.
func (g *MemGraph) Close() error {
	g.closed.Store(true)
	return nil
}

// Node implements Store.
func (g *MemGraph) Node(ctx context.Context, id string) (*Node, error) {
	if err := g.readable(ctx); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	return n, nil
}

// Edge implements Store.
func (g *MemGraph) Edge(ctx context.Context, id string) (*Edge, error) {
	if err := g.readable(ctx); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.edges[id]
	if !ok {
		return nil, fmt.Errorf("edge %s: %w", id, ErrEdgeNotFound)
	}
	return e, nil
}

// Edges implements Store. Edges are returned in insertion order.
func (g *MemGraph) Edges(ctx context.Context, nodeID string, dir Direction, types ...EdgeType) ([]*Edge, error) {
	if err := g.readable(ctx); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, ErrNodeNotFound)
	}

	var candidates []*Edge
	switch dir {
	case Outgoing:
		candidates = g.outgoing[nodeID]
	case Incoming:
		candidates = g.incoming[nodeID]
	default:
		candidates = append(slices.Clone(g.outgoing[nodeID]), g.incoming[nodeID]...)
	}

	result := make([]*Edge, 0, len(candidates))
	for _, e := range candidates {
		if len(types) == 0 || slices.Contains(types, e.Type) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (g *MemGraph) readable(ctx context.Context) error {
	if g.closed.Load() {
		return ErrSnapshotClosed
	}
	return ctx.Err()
}

// NodeIDs returns all node ids in insertion order.
func (g *MemGraph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.order)
}

// EdgeIDs returns all edge ids in insertion order.
func (g *MemGraph) EdgeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.eorder)
}

// Stats summarizes a graph by label and edge type.
type Stats struct {
	Nodes        int              `json:"nodes"`
	Edges        int              `json:"edges"`
	NodesByLabel map[string]int   `json:"nodes_by_label"`
	EdgesByType  map[EdgeType]int `json:"edges_by_type"`
	InvokeEdges  int              `json:"invoke_edges"`
	ReturnEdges  int              `json:"return_edges"`
}

// Stats computes node and edge counts.
func (g *MemGraph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		Nodes:        len(g.nodes),
		Edges:        len(g.edges),
		NodesByLabel: make(map[string]int),
		EdgesByType:  make(map[EdgeType]int),
	}
	for _, n := range g.nodes {
		for _, l := range n.Labels {
			s.NodesByLabel[l]++
		}
	}
	for _, e := range g.edges {
		s.EdgesByType[e.Type]++
		if e.IsInvoke() {
			s.InvokeEdges++
		}
		if e.IsReturn() {
			s.ReturnEdges++
		}
	}
	return s
}

// SortedLabels returns the labels of s in alphabetical order.
func (s Stats) SortedLabels() []string {
	labels := make([]string, 0, len(s.NodesByLabel))
	for l := range s.NodesByLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// SortedTypes returns the edge types of s in alphabetical order.
func (s Stats) SortedTypes() []EdgeType {
	types := make([]EdgeType, 0, len(s.EdgesByType))
	for t := range s.EdgesByType {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
