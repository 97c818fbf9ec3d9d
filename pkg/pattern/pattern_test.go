package pattern

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected string
		segments int
	}{
		{"single", "varWrite", "varWrite", 1},
		{"alternatives with star", "varWrite,parWrite|retWrite*", "varWrite,parWrite|retWrite*", 2},
		{"plus expands", "varWrite+", "varWrite,varWrite*", 2},
		{"whitespace", " varWrite , parWrite | retWrite ", "varWrite,parWrite|retWrite", 2},
		{"duplicate alternatives collapse", "varWrite|varWrite", "varWrite", 1},
		{"default", DefaultPattern, "varWrite|parWrite|retWrite,varWrite|parWrite|retWrite*", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Compile(tt.pattern, false)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, a.String())
			assert.Equal(t, tt.segments, a.Len())
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"empty", ""},
		{"empty segment", "varWrite,,parWrite"},
		{"trailing comma", "varWrite,"},
		{"suffix only", "*"},
		{"double suffix", "varWrite**"},
		{"mixed suffix", "varWrite+*"},
		{"empty alternative", "varWrite||parWrite"},
		{"unknown type", "varWrite,calls"},
		{"repeat shadows plain", "varWrite*,varWrite"},
		{"repeat shadows plus", "varWrite*,varWrite+"},
		{"shadowed through a run", "varWrite|parWrite*,retWrite*,parWrite"},
		{"shadowed backwards", "varWrite,parWrite*,varWrite*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.pattern, false)
			assert.ErrorIs(t, err, ErrInvalidPattern)
		})
	}
}

func TestCompile_GreedyPatternsStayReachable(t *testing.T) {
	vw, pw, rw, vi := graph.EdgeVarWrite, graph.EdgeParWrite, graph.EdgeRetWrite, graph.EdgeVarInfluence
	tests := []struct {
		pattern  string
		sequence []graph.EdgeType
	}{
		{DefaultPattern, []graph.EdgeType{vw, pw, rw}},
		{"varWrite+", []graph.EdgeType{vw, vw, vw}},
		{"varWrite,varWrite*", []graph.EdgeType{vw, vw}},
		{"varWrite*,parWrite,varWrite", []graph.EdgeType{vw, vw, pw, vw}},
		{"varWrite*,parWrite,retWrite+,varInfluence*", []graph.EdgeType{pw, rw, vi}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			forward := MustCompile(tt.pattern, false)
			backward := slices.Clone(tt.sequence)
			slices.Reverse(backward)

			runs := map[*Automaton][]graph.EdgeType{forward: tt.sequence, forward.Reverse(): backward}
			for a, seq := range runs {
				index, terminal := 0, false
				for _, typ := range seq {
					var err error
					index, terminal, err = a.Advance(typ, index)
					require.NoError(t, err)
				}
				assert.True(t, terminal, "%s over %v", a, seq)
			}
		})
	}

	_, err := Compile("varWrite*,varWrite", false)
	assert.ErrorContains(t, err, "always consumed")
}

func TestTypesAt(t *testing.T) {
	a := MustCompile("varWrite*,parWrite*,retWrite,varInfluence", false)

	segs := a.TypesAt(0)
	require.Len(t, segs, 3)
	assert.Equal(t, []graph.EdgeType{graph.EdgeVarWrite}, segs[0].Types)
	assert.Equal(t, []graph.EdgeType{graph.EdgeParWrite}, segs[1].Types)
	assert.Equal(t, []graph.EdgeType{graph.EdgeRetWrite}, segs[2].Types)

	assert.Len(t, a.TypesAt(2), 1)
	assert.Empty(t, a.TypesAt(4), "no segment left after the end")
	assert.Equal(t,
		[]graph.EdgeType{graph.EdgeVarWrite, graph.EdgeParWrite, graph.EdgeRetWrite},
		a.Eligible(0))
}

func TestTypesAt_LoopWrapsThroughTrailingRepeats(t *testing.T) {
	a := MustCompile("varWrite,parWrite*", true)
	segs := a.TypesAt(1)
	require.Len(t, segs, 2)
	assert.Equal(t, []graph.EdgeType{graph.EdgeParWrite}, segs[0].Types)
	assert.Equal(t, []graph.EdgeType{graph.EdgeVarWrite}, segs[1].Types)
}

func TestNextIndex(t *testing.T) {
	a := MustCompile("varWrite,parWrite|retWrite*,varInfluence", false)

	next, err := a.NextIndex(graph.EdgeVarWrite, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	// Repeating segment keeps its position.
	next, err = a.NextIndex(graph.EdgeRetWrite, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	// Skips the repeating segment.
	next, err = a.NextIndex(graph.EdgeVarInfluence, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	_, err = a.NextIndex(graph.EdgeParWrite, 0)
	assert.ErrorIs(t, err, ErrTypeNotEligible)

	_, err = a.NextIndex(graph.EdgeVarWrite, 3)
	assert.ErrorIs(t, err, ErrTypeNotEligible)
}

func TestNextIndex_Loop(t *testing.T) {
	a := MustCompile("varWrite,parWrite", true)

	next, terminal, err := a.Advance(graph.EdgeVarWrite, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
	assert.False(t, terminal)

	next, terminal, err = a.Advance(graph.EdgeParWrite, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, next, "completing the last segment wraps to 0")
	assert.True(t, terminal, "a completed cycle is a valid stopping point")

	next, terminal, err = a.Advance(graph.EdgeVarWrite, next)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
	assert.False(t, terminal)
}

func TestNextIndex_MonotonicWithoutLoop(t *testing.T) {
	a := MustCompile("varWrite*,parWrite,retWrite+,varInfluence*", false)
	sequence := []graph.EdgeType{
		graph.EdgeVarWrite, graph.EdgeVarWrite, graph.EdgeParWrite,
		graph.EdgeRetWrite, graph.EdgeRetWrite, graph.EdgeVarInfluence,
	}

	index := 0
	for _, typ := range sequence {
		next, err := a.NextIndex(typ, index)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, next, index)
		index = next
	}
	assert.True(t, a.IsTerminal(index))
}

func TestIsTerminal(t *testing.T) {
	a := MustCompile("varWrite,parWrite,retWrite*,varInfluence*", false)

	assert.False(t, a.IsTerminal(0))
	assert.False(t, a.IsTerminal(1))
	assert.True(t, a.IsTerminal(2), "inside the trailing run of repeats")
	assert.True(t, a.IsTerminal(3))
	assert.True(t, a.IsTerminal(4), "every segment consumed")
	assert.False(t, a.IsTerminal(5))

	plus := MustCompile("varWrite+", false)
	assert.False(t, plus.IsTerminal(0))
	assert.True(t, plus.IsTerminal(1))
}

func TestReverse(t *testing.T) {
	a := MustCompile("varWrite,parWrite*,retWrite+", false)
	rev := a.Reverse()
	assert.Equal(t, "retWrite,retWrite*,parWrite*,varWrite", rev.String())

	// retWrite retWrite parWrite varWrite read backwards must be accepted.
	index := 0
	terminal := false
	for _, typ := range []graph.EdgeType{graph.EdgeRetWrite, graph.EdgeRetWrite, graph.EdgeParWrite, graph.EdgeVarWrite} {
		var err error
		index, terminal, err = rev.Advance(typ, index)
		require.NoError(t, err)
	}
	assert.True(t, terminal)
}
