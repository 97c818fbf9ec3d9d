package reach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

func TestStack_Persistent(t *testing.T) {
	var empty *Stack
	assert.True(t, empty.Empty())
	assert.Equal(t, 0, empty.Depth())
	assert.Nil(t, empty.Pop())

	a := empty.Push(Frame{Edge: &graph.Edge{ID: "i1"}, Function: "f"})
	b := a.Push(Frame{Edge: &graph.Edge{ID: "i2"}, Function: "g"})
	c := a.Push(Frame{Edge: &graph.Edge{ID: "i3"}, Function: "h"})

	assert.Equal(t, 1, a.Depth(), "pushing does not modify the receiver")
	assert.Equal(t, 2, b.Depth())
	assert.Equal(t, "i1/i2", b.Key())
	assert.Equal(t, "i1/i3", c.Key())

	top, ok := b.Top()
	require.True(t, ok)
	assert.Equal(t, "g", top.Function)
	assert.Same(t, a, b.Pop())

	frames := c.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "f", frames[0].Function)
	assert.Equal(t, "[f h]", c.String())
}

func TestFrontier(t *testing.T) {
	var uncomputed *Frontier
	assert.True(t, uncomputed.Empty())
	assert.Nil(t, uncomputed.Blocks())

	s := (*Stack)(nil).Push(Frame{Edge: &graph.Edge{ID: "i"}, Function: "f"})
	f := NewFrontier(
		State{Block: "Y"},
		State{Block: "X", Stack: s},
		State{Block: "X"},
		State{Block: "Y"},
	)

	assert.Equal(t, []string{"X", "Y"}, f.Blocks())
	assert.Equal(t, 2, f.Len())
	assert.Len(t, f.States(), 3, "duplicate states collapse")
	assert.True(t, f.Contains("Y"))
	assert.Equal(t, "{X, Y}", f.String())
}
