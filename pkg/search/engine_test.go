package search

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-flow-query/pkg/graph"
	"github.com/l3aro/go-flow-query/pkg/pattern"
)

// flow adds a dataflow edge together with its Source and Destination links.
func flow(b *graph.Builder, id string, t graph.EdgeType, from, fromBlock, to, toBlock string) *graph.Builder {
	return b.
		Edge(id, t, from, to).
		Edge(id+".src", t.SourceLink(), from, fromBlock).
		Edge(id+".dst", t.DestinationLink(), to, toBlock)
}

func cfgBlock(b *graph.Builder, id, name string) *graph.Builder {
	return b.NodeProps(id, map[string]string{"name": name}, "CFGBlock")
}

func build(t *testing.T, b *graph.Builder) *graph.MemGraph {
	t.Helper()
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// chainGraph is A -varWrite-> B -varWrite-> C, all within block X.
func chainGraph(t *testing.T) *graph.MemGraph {
	t.Helper()
	b := graph.NewBuilder().Node("A", "Variable").Node("B", "Variable").Node("C", "Variable")
	b = cfgBlock(b, "X", "main#0")
	b = flow(b, "ab", graph.EdgeVarWrite, "A", "X", "B", "X")
	b = flow(b, "bc", graph.EdgeVarWrite, "B", "X", "C", "X")
	return build(t, b)
}

// diamondGraph has two equally short routes A->B1->D and A->B2->D and a
// longer one A->B3->E->D.
func diamondGraph(t *testing.T) *graph.MemGraph {
	t.Helper()
	b := graph.NewBuilder()
	for _, id := range []string{"A", "B1", "B2", "B3", "E", "D"} {
		b = b.Node(id, "Variable")
	}
	b = cfgBlock(b, "X", "main#0")
	for _, e := range [][2]string{{"A", "B1"}, {"B1", "D"}, {"A", "B2"}, {"B2", "D"}, {"A", "B3"}, {"B3", "E"}, {"E", "D"}} {
		b = flow(b, e[0]+"-"+e[1], graph.EdgeVarWrite, e[0], "X", e[1], "X")
	}
	return build(t, b)
}

// callGraph models a -parWrite-> p -varWrite-> r -retWrite-> x across a call
// from main into callee and a return out of helper.
func callGraph(t *testing.T, callee string) *graph.MemGraph {
	t.Helper()
	b := graph.NewBuilder().
		Node("a", "Variable").
		Node("p", "Parameter").
		Node("r", "Variable").
		Node("x", "Variable")
	b = cfgBlock(b, "C", "main#1")
	b = cfgBlock(b, "E", callee+"#0")
	b = cfgBlock(b, "X", "helper#2")
	b = cfgBlock(b, "R", "helper#ret")
	b = b.
		Edge("inv", graph.EdgeNextCFGBlock, "C", "E", graph.FlagInvoke, "1").
		Edge("body", graph.EdgeNextCFGBlock, "E", "X").
		Edge("ret", graph.EdgeNextCFGBlock, "X", "R", graph.FlagReturn, "1")
	b = flow(b, "pw", graph.EdgeParWrite, "a", "C", "p", "E")
	b = flow(b, "vw", graph.EdgeVarWrite, "p", "X", "r", "X")
	b = flow(b, "rw", graph.EdgeRetWrite, "r", "X", "x", "R")
	return build(t, b)
}

func engine(t *testing.T, g graph.Store, mutate func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(g, opts)
	require.NoError(t, err)
	return e
}

func rendered(res *Result) []string {
	out := make([]string, len(res.Paths))
	for i, p := range res.Paths {
		out[i] = p.String()
	}
	return out
}

func TestSearch_LinearChain(t *testing.T) {
	g := chainGraph(t)

	for _, allShortest := range []bool{false, true} {
		e := engine(t, g, func(o *Options) {
			o.RelSequence = "varWrite+"
			o.AllShortestPath = allShortest
		})
		res, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("C"))
		require.NoError(t, err)

		require.Len(t, res.Paths, 1, "allShortest=%v", allShortest)
		assert.Equal(t, []string{"A", "B", "C"}, res.Paths[0].Nodes)
		assert.Equal(t, "A-[varWrite]->B-[varWrite]->C", res.Paths[0].String())
		assert.Equal(t, []string{"X"}, res.Paths[0].Frontier)
		assert.Equal(t, CategoryIntra, res.Category)
		assert.False(t, res.Truncated)
		assert.NotEmpty(t, res.RunID)
	}
}

func TestSearch_AllShortestDiamond(t *testing.T) {
	e := engine(t, diamondGraph(t), func(o *Options) { o.AllShortestPath = true })

	res, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("D"))
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"A-[varWrite]->B1-[varWrite]->D", "A-[varWrite]->B2-[varWrite]->D"},
		rendered(res))
	for _, p := range res.Paths {
		assert.Equal(t, 2, p.Len(), "the longer route through B3 is excluded")
	}
}

func TestSearch_FirstPathOnly(t *testing.T) {
	e := engine(t, diamondGraph(t), nil)

	res, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("D"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A-[varWrite]->B1-[varWrite]->D"}, rendered(res))
}

func TestSearch_Idempotent(t *testing.T) {
	e := engine(t, diamondGraph(t), func(o *Options) { o.AllShortestPath = true })

	first, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("D"))
	require.NoError(t, err)
	second, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("D"))
	require.NoError(t, err)

	a, b := rendered(first), rendered(second)
	sort.Strings(a)
	sort.Strings(b)
	assert.Equal(t, a, b)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestSearch_PathsVerify(t *testing.T) {
	tests := []struct {
		name     string
		g        *graph.MemGraph
		backward bool
		from, to string
	}{
		{"diamond", diamondGraph(t), false, "A", "D"},
		{"call", callGraph(t, "helper"), false, "a", "x"},
		{"call backward", callGraph(t, "helper"), true, "x", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := engine(t, tt.g, func(o *Options) {
				o.AllShortestPath = true
				o.Backward = tt.backward
			})
			res, err := e.Search(context.Background(), NodeAnchor(tt.from), NodeAnchor(tt.to))
			require.NoError(t, err)
			require.NotEmpty(t, res.Paths)

			for _, p := range res.Paths {
				f, failed, err := e.Verify(context.Background(), p.EdgeIDs())
				require.NoError(t, err)
				assert.Equal(t, -1, failed, p.String())
				assert.Equal(t, p.Frontier, f.Blocks())
			}
		})
	}
}

func TestSearch_CallMatching(t *testing.T) {
	res, err := engine(t, callGraph(t, "helper"), nil).
		Search(context.Background(), NodeAnchor("a"), NodeAnchor("x"))
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, "a-[parWrite]->p-[varWrite]->r-[retWrite]->x", res.Paths[0].String())

	res, err = engine(t, callGraph(t, "other"), nil).
		Search(context.Background(), NodeAnchor("a"), NodeAnchor("x"))
	require.NoError(t, err)
	assert.Empty(t, res.Paths, "a return from helper cannot close a call into other")
	assert.Positive(t, res.Stats.Rejected)

	res, err = engine(t, callGraph(t, "other"), func(o *Options) { o.CFGCheck = false }).
		Search(context.Background(), NodeAnchor("a"), NodeAnchor("x"))
	require.NoError(t, err)
	assert.Len(t, res.Paths, 1, "disabling the CFG check skips call matching")
}

func TestSearch_Backward(t *testing.T) {
	e := engine(t, callGraph(t, "helper"), func(o *Options) {
		o.Backward = true
		o.RelSequence = "parWrite,varWrite,retWrite"
	})

	res, err := e.Search(context.Background(), NodeAnchor("x"), NodeAnchor("a"))
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, []string{"x", "r", "p", "a"}, res.Paths[0].Nodes)
	assert.Equal(t, "x<-[retWrite]-r<-[varWrite]-p<-[parWrite]-a", res.Paths[0].String())
	assert.Equal(t, []string{"C"}, res.Paths[0].Frontier)
}

func TestSearch_CFGInfeasible(t *testing.T) {
	graphWith := func(t *testing.T, from, to string) *graph.MemGraph {
		b := graph.NewBuilder().Node("A", "Variable").Node("B", "Variable").Node("C", "Variable")
		b = cfgBlock(b, "X", "main#0")
		b = cfgBlock(b, "Y", "main#1")
		b = b.Edge("n", graph.EdgeNextCFGBlock, from, to)
		b = flow(b, "ab", graph.EdgeVarWrite, "A", "X", "B", "X")
		b = flow(b, "bc", graph.EdgeVarWrite, "B", "Y", "C", "Y")
		return build(t, b)
	}

	res, err := engine(t, graphWith(t, "Y", "X"), nil).
		Search(context.Background(), NodeAnchor("A"), NodeAnchor("C"))
	require.NoError(t, err)
	assert.Empty(t, res.Paths, "Y is not reachable from X")

	res, err = engine(t, graphWith(t, "X", "Y"), nil).
		Search(context.Background(), NodeAnchor("A"), NodeAnchor("C"))
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, []string{"Y"}, res.Paths[0].Frontier)
}

func TestSearch_ReturnSignatureDedup(t *testing.T) {
	b := graph.NewBuilder()
	for _, id := range []string{"A", "B", "B2", "M", "D"} {
		b = b.Node(id, "Variable")
	}
	b = b.
		Edge("r1", graph.EdgeRetWrite, "A", "B").
		Edge("vw1", graph.EdgeVarWrite, "B", "D").
		Edge("vw2", graph.EdgeVarWrite, "B", "D").
		Edge("r2", graph.EdgeRetWrite, "A", "B2").
		Edge("vw3", graph.EdgeVarWrite, "B2", "D").
		Edge("vw4", graph.EdgeVarWrite, "A", "M").
		Edge("r3", graph.EdgeRetWrite, "M", "D")
	g := build(t, b)

	e := engine(t, g, func(o *Options) {
		o.CFGCheck = false
		o.AllShortestPath = true
	})
	res, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("D"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"A-[retWrite]->B-[varWrite]->D",
		"A-[retWrite]->B2-[varWrite]->D",
	}, rendered(res))
	assert.Equal(t, 2, res.Stats.Deduped, "a covered return and a foreign first return are skipped")
}

func TestSearch_ReturnSignatureAfterPlainPath(t *testing.T) {
	b := graph.NewBuilder()
	for _, id := range []string{"A", "B1", "B2", "B3", "D"} {
		b = b.Node(id, "Variable")
	}
	b = b.
		Edge("a1", graph.EdgeVarWrite, "A", "B1").
		Edge("d1", graph.EdgeVarWrite, "B1", "D").
		Edge("a2", graph.EdgeVarWrite, "A", "B2").
		Edge("r2", graph.EdgeRetWrite, "B2", "D").
		Edge("a3", graph.EdgeVarWrite, "A", "B3").
		Edge("r3", graph.EdgeRetWrite, "B3", "D")
	g := build(t, b)

	e := engine(t, g, func(o *Options) {
		o.CFGCheck = false
		o.AllShortestPath = true
	})
	res, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("D"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"A-[varWrite]->B1-[varWrite]->D",
		"A-[varWrite]->B2-[retWrite]->D",
	}, rendered(res), "a path without returns does not anchor the first return")
	assert.Equal(t, 1, res.Stats.Deduped)

	var first []string
	for _, p := range res.Paths {
		for _, edge := range p.Edges {
			if edge.Type == graph.EdgeRetWrite {
				first = append(first, edge.From)
				break
			}
		}
	}
	assert.Equal(t, []string{"B2"}, first)
}

func TestSearch_NodeFilter(t *testing.T) {
	b := graph.NewBuilder().
		Node("A", "Entry").
		Node("B1", "Temporary").
		Node("B2", "Variable").
		Node("D", "Variable")
	b = cfgBlock(b, "X", "main#0")
	for _, e := range [][2]string{{"A", "B1"}, {"B1", "D"}, {"A", "B2"}, {"B2", "D"}} {
		b = flow(b, e[0]+"-"+e[1], graph.EdgeVarWrite, e[0], "X", e[1], "X")
	}
	g := build(t, b)

	e := engine(t, g, func(o *Options) {
		o.AllShortestPath = true
		o.NodeFilter = ParseNodeFilter("Variable, Parameter")
	})
	res, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("D"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A-[varWrite]->B2-[varWrite]->D"}, rendered(res), "the start node is exempt")
}

func TestSearch_EdgeAnchors(t *testing.T) {
	e := engine(t, diamondGraph(t), func(o *Options) { o.AllShortestPath = true })

	res, err := e.Search(context.Background(), EdgeAnchor("A-B3"), NodeAnchor("D"))
	require.NoError(t, err)
	assert.Equal(t, CategorySuffix, res.Category)
	assert.Equal(t, []string{"A-[varWrite]->B3-[varWrite]->E-[varWrite]->D"}, rendered(res))

	res, err = e.Search(context.Background(), NodeAnchor("A"), EdgeAnchor("E-D"))
	require.NoError(t, err)
	assert.Equal(t, CategoryPrefix, res.Category)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, []string{"A", "B3", "E", "D"}, res.Paths[0].Nodes)

	res, err = e.Search(context.Background(), EdgeAnchor("A-B1"), EdgeAnchor("B1-D"))
	require.NoError(t, err)
	assert.Equal(t, CategoryMiddle, res.Category)
	assert.Len(t, res.Paths, 1)

	mismatch := engine(t, diamondGraph(t), func(o *Options) { o.RelSequence = "parWrite+" })
	res, err = mismatch.Search(context.Background(), EdgeAnchor("A-B1"), Anchor{})
	require.NoError(t, err)
	assert.Empty(t, res.Paths, "a start edge outside the pattern yields nothing")
}

func TestSearch_NoEndAnchor(t *testing.T) {
	e := engine(t, chainGraph(t), func(o *Options) { o.RelSequence = "varWrite,varWrite" })

	res, err := e.Search(context.Background(), NodeAnchor("A"), Anchor{})
	require.NoError(t, err)
	assert.Equal(t, CategoryPrefix, res.Category)
	assert.Equal(t, []string{"A-[varWrite]->B-[varWrite]->C"}, rendered(res))
}

func TestSearch_Repeat(t *testing.T) {
	b := graph.NewBuilder()
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		b = b.Node(id, "Variable")
	}
	b = b.
		Edge("e1", graph.EdgeVarWrite, "A", "B").
		Edge("e2", graph.EdgeParWrite, "B", "C").
		Edge("e3", graph.EdgeVarWrite, "C", "D").
		Edge("e4", graph.EdgeParWrite, "D", "E")
	g := build(t, b)

	once := engine(t, g, func(o *Options) {
		o.CFGCheck = false
		o.RelSequence = "varWrite,parWrite"
	})
	res, err := once.Search(context.Background(), NodeAnchor("A"), NodeAnchor("E"))
	require.NoError(t, err)
	assert.Empty(t, res.Paths)

	looping := engine(t, g, func(o *Options) {
		o.CFGCheck = false
		o.RelSequence = "varWrite,parWrite"
		o.Repeat = true
	})
	res, err = looping.Search(context.Background(), NodeAnchor("A"), NodeAnchor("E"))
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, 4, res.Paths[0].Len())
}

func TestSearch_MaxDepth(t *testing.T) {
	e := engine(t, chainGraph(t), func(o *Options) { o.MaxDepth = 1 })

	res, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("C"))
	require.NoError(t, err)
	assert.Empty(t, res.Paths)
}

func TestSearch_Errors(t *testing.T) {
	e := engine(t, chainGraph(t), nil)

	_, err := e.Search(context.Background(), Anchor{}, NodeAnchor("C"))
	assert.ErrorIs(t, err, ErrMissingAnchor)

	_, err = e.Search(context.Background(), Anchor{Kind: "vertex", ID: "A"}, Anchor{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = e.Search(context.Background(), NodeAnchor("nope"), Anchor{})
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)

	res, err := e.Search(context.Background(), NodeAnchor("C"), NodeAnchor("A"))
	require.NoError(t, err)
	assert.Empty(t, res.Paths, "an unreachable end is not an error")
}

func TestNew_ConfigurationErrors(t *testing.T) {
	g := chainGraph(t)

	opts := DefaultOptions()
	opts.RelSequence = "varWrite,,retWrite"
	_, err := New(g, opts)
	assert.ErrorIs(t, err, pattern.ErrInvalidPattern)

	opts = DefaultOptions()
	opts.MaxDepth = -1
	_, err = New(g, opts)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = New(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.CFGCheck)
	assert.True(t, opts.ExternalEntry)
	assert.Equal(t, pattern.DefaultPattern, opts.RelSequence)

	g := callGraph(t, "other")
	res, err := engine(t, g, nil).Search(context.Background(), NodeAnchor("a"), NodeAnchor("x"))
	require.NoError(t, err)
	assert.Empty(t, res.Paths)

	e, err := New(g, Options{})
	require.NoError(t, err)
	res, err = e.Search(context.Background(), NodeAnchor("a"), NodeAnchor("x"))
	require.NoError(t, err)
	assert.Len(t, res.Paths, 1, "the zero Options skips the CFG check")
}

func TestSearch_Cancelled(t *testing.T) {
	e := engine(t, diamondGraph(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Search(ctx, NodeAnchor("A"), NodeAnchor("D"))
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Empty(t, res.Paths)
}

func TestSearch_StoreClosed(t *testing.T) {
	g := diamondGraph(t)
	e := engine(t, g, nil)
	require.NoError(t, g.Close())

	res, err := e.Search(context.Background(), NodeAnchor("A"), NodeAnchor("D"))
	assert.ErrorIs(t, err, graph.ErrSnapshotClosed)
	assert.Nil(t, res)
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		start, end Anchor
		want       Category
	}{
		{NodeAnchor("a"), NodeAnchor("b"), CategoryIntra},
		{NodeAnchor("a"), EdgeAnchor("e"), CategoryPrefix},
		{EdgeAnchor("e"), NodeAnchor("b"), CategorySuffix},
		{EdgeAnchor("e"), EdgeAnchor("f"), CategoryMiddle},
		{NodeAnchor("a"), Anchor{}, CategoryPrefix},
		{EdgeAnchor("e"), Anchor{}, CategoryMiddle},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryOf(tt.start, tt.end), "%s -> %s", tt.start, tt.end)
	}
}

func TestSearch_StateBudgetTruncates(t *testing.T) {
	b := graph.NewBuilder().Node("A", "Variable").Node("B", "Variable").Node("C", "Variable")
	b = cfgBlock(b, "X", "main#0")
	b = cfgBlock(b, "Y", "main#1")
	b = b.Edge("xy", graph.EdgeNextCFGBlock, "X", "Y")
	b = flow(b, "ab", graph.EdgeVarWrite, "A", "X", "B", "X")
	b = flow(b, "bc", graph.EdgeVarWrite, "B", "Y", "C", "Y")
	g := build(t, b)

	res, err := engine(t, g, nil).Search(context.Background(), NodeAnchor("A"), NodeAnchor("C"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A-[varWrite]->B-[varWrite]->C"}, rendered(res))
	assert.False(t, res.Truncated)
	assert.Zero(t, res.Stats.Incomplete)

	res, err = engine(t, g, func(o *Options) { o.MaxStates = 1 }).Search(context.Background(), NodeAnchor("A"), NodeAnchor("C"))
	require.NoError(t, err)
	assert.Empty(t, res.Paths)
	assert.True(t, res.Truncated, "an exhausted budget is reported, not mistaken for infeasibility")
	assert.Equal(t, 1, res.Stats.Incomplete)
}
