package reach

import (
	"strings"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

// Frame is a pending call transition waiting for its matching counterpart.
type Frame struct {
	Edge     *graph.Edge // nextCFGBlock edge that opened the frame
	Function string      // Identity of the function the frame expects to leave
}

// Stack is a persistent call stack. Push and Pop never modify the receiver,
// so stacks are shared between search branches without copying. The nil
// *Stack is the empty stack.
type Stack struct {
	frame  Frame
	parent *Stack
	depth  int
	key    string
}

// Push returns a new stack with f on top.
func (s *Stack) Push(f Frame) *Stack {
	key := f.Edge.ID
	if s != nil {
		key = s.key + "/" + key
	}
	return &Stack{frame: f, parent: s, depth: s.Depth() + 1, key: key}
}

// Pop returns the stack without its top frame. Popping the empty stack
// returns the empty stack.
func (s *Stack) Pop() *Stack {
	if s == nil {
		return nil
	}
	return s.parent
}

// Top returns the top frame.
func (s *Stack) Top() (Frame, bool) {
	if s == nil {
		return Frame{}, false
	}
	return s.frame, true
}

// Depth returns the number of frames.
func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Empty reports whether the stack has no frames.
func (s *Stack) Empty() bool {
	return s == nil
}

// Key identifies the stack by the ids of its opening edges, bottom first.
// Two stacks with equal keys hold the same frames.
func (s *Stack) Key() string {
	if s == nil {
		return ""
	}
	return s.key
}

// Frames returns the frames from bottom to top.
func (s *Stack) Frames() []Frame {
	frames := make([]Frame, s.Depth())
	for cur, i := s, s.Depth()-1; cur != nil; cur, i = cur.parent, i-1 {
		frames[i] = cur.frame
	}
	return frames
}

func (s *Stack) String() string {
	if s == nil {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range s.Frames() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Function)
	}
	b.WriteByte(']')
	return b.String()
}
