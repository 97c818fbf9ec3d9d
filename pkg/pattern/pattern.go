// Package pattern compiles edge-type sequence patterns such as
// "varWrite,parWrite|retWrite*" into a small automaton that tells the path
// search which edge types may follow at a given position.
//
// A pattern is a comma-separated list of segments. Each segment lists
// alternative edge types separated by '|' and may end with '*' (zero or more)
// or '+' (one or more). A '+' segment is expanded into an exactly-one segment
// followed by a zero-or-more segment, so the automaton only has two kinds of
// segments. A plain segment may not repeat an edge type of the repeating
// segments directly before it, in either reading direction, because matching
// is greedy.
package pattern

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

// DefaultPattern matches any non-empty sequence of write edges.
const DefaultPattern = "varWrite|parWrite|retWrite+"

var (
	// ErrInvalidPattern is returned for malformed pattern strings.
	ErrInvalidPattern = errors.New("invalid edge pattern")

	// ErrTypeNotEligible is returned when advancing with an edge type that
	// cannot follow the current position.
	ErrTypeNotEligible = errors.New("edge type not eligible at position")
)

// Segment is one position of the automaton.
type Segment struct {
	Types   []graph.EdgeType `json:"types"`   // Alternative edge types
	Repeats bool             `json:"repeats"` // Whether the segment may be taken zero or more times
}

// Matches reports whether t is one of the segment's alternatives.
func (s Segment) Matches(t graph.EdgeType) bool {
	return slices.Contains(s.Types, t)
}

func (s Segment) String() string {
	parts := make([]string, len(s.Types))
	for i, t := range s.Types {
		parts[i] = string(t)
	}
	out := strings.Join(parts, "|")
	if s.Repeats {
		out += "*"
	}
	return out
}

// Automaton is a compiled pattern. It is immutable and safe for concurrent use.
type Automaton struct {
	segments []Segment
	loop     bool
}

// Compile parses pattern. When loop is true, completing the last segment
// wraps back to the first one.
func Compile(pattern string, loop bool) (*Automaton, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	var segments []Segment
	for _, raw := range strings.Split(pattern, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPattern, pattern)
		}

		body := raw
		suffix := byte(0)
		if last := raw[len(raw)-1]; last == '*' || last == '+' {
			suffix = last
			body = strings.TrimSpace(raw[:len(raw)-1])
		}
		if body == "" {
			return nil, fmt.Errorf("%w: segment %q has no edge types", ErrInvalidPattern, raw)
		}
		if strings.ContainsAny(body, "*+") {
			return nil, fmt.Errorf("%w: segment %q has more than one repetition suffix", ErrInvalidPattern, raw)
		}

		types, err := parseAlternatives(body)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %q: %v", ErrInvalidPattern, raw, err)
		}

		switch suffix {
		case '*':
			segments = append(segments, Segment{Types: types, Repeats: true})
		case '+':
			segments = append(segments,
				Segment{Types: types},
				Segment{Types: slices.Clone(types), Repeats: true},
			)
		default:
			segments = append(segments, Segment{Types: types})
		}
	}

	a := &Automaton{segments: segments, loop: loop}
	if err := checkShadowed(a.segments); err != nil {
		return nil, err
	}
	if err := checkShadowed(a.Reverse().segments); err != nil {
		return nil, fmt.Errorf("%w (read backwards)", err)
	}
	return a, nil
}

// checkShadowed rejects a plain segment that shares an edge type with one of
// the repeating segments directly before it. Advance consumes the type at the
// repeating segment every time, so the plain segment could never be reached.
func checkShadowed(segments []Segment) error {
	for j, seg := range segments {
		if seg.Repeats {
			continue
		}
		for i := j - 1; i >= 0 && segments[i].Repeats; i-- {
			for _, t := range seg.Types {
				if segments[i].Matches(t) {
					return fmt.Errorf("%w: %s in segment %q is always consumed by %q before it",
						ErrInvalidPattern, t, seg, segments[i])
				}
			}
		}
	}
	return nil
}

// MustCompile is like Compile but panics on error. Intended for constants.
func MustCompile(pattern string, loop bool) *Automaton {
	a, err := Compile(pattern, loop)
	if err != nil {
		panic(err)
	}
	return a
}

// Default returns the automaton for DefaultPattern.
func Default() *Automaton {
	return MustCompile(DefaultPattern, false)
}

func parseAlternatives(body string) ([]graph.EdgeType, error) {
	var types []graph.EdgeType
	for _, alt := range strings.Split(body, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return nil, fmt.Errorf("empty alternative")
		}
		t, err := graph.ParseEdgeType(alt)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	return types, nil
}

// Len returns the number of (expanded) segments.
func (a *Automaton) Len() int {
	return len(a.segments)
}

// Loop reports whether the automaton wraps around after the last segment.
func (a *Automaton) Loop() bool {
	return a.loop
}

// Segments returns a copy of the expanded segments.
func (a *Automaton) Segments() []Segment {
	out := make([]Segment, len(a.segments))
	for i, s := range a.segments {
		out[i] = Segment{Types: slices.Clone(s.Types), Repeats: s.Repeats}
	}
	return out
}

// TypesAt returns the segment at index followed by every segment reachable by
// skipping immediately following repeating segments. The result is ordered by
// segment position. In loop mode the expansion continues past the last
// segment into the first one.
func (a *Automaton) TypesAt(index int) []Segment {
	reach := a.reachable(index)
	out := make([]Segment, len(reach))
	for i, pos := range reach {
		out[i] = a.segments[pos]
	}
	return out
}

// reachable lists the segment positions that may match the next edge.
func (a *Automaton) reachable(index int) []int {
	start := a.normalize(index)
	if start < 0 {
		return nil
	}

	var out []int
	for i, steps := start, 0; steps < len(a.segments); steps++ {
		out = append(out, i)
		if !a.segments[i].Repeats {
			break
		}
		i++
		if i == len(a.segments) {
			if !a.loop {
				break
			}
			i = 0
		}
	}
	return out
}

// Eligible returns the de-duplicated edge types that may be taken at index.
func (a *Automaton) Eligible(index int) []graph.EdgeType {
	var types []graph.EdgeType
	for _, seg := range a.TypesAt(index) {
		for _, t := range seg.Types {
			if !slices.Contains(types, t) {
				types = append(types, t)
			}
		}
	}
	return types
}

// NextIndex returns the position after taking an edge of type t at index.
// The first segment reachable from index that matches t is consumed: a
// repeating segment keeps its position, a plain one advances by one. With
// loop-back enabled, completing the last segment wraps to 0.
func (a *Automaton) NextIndex(t graph.EdgeType, index int) (int, error) {
	next, _, err := a.Advance(t, index)
	return next, err
}

// Advance is NextIndex that also reports whether the resulting position is a
// valid stopping point. A step that wraps around in loop mode completes the
// pattern and is therefore terminal.
func (a *Automaton) Advance(t graph.EdgeType, index int) (next int, terminal bool, err error) {
	for _, i := range a.reachable(index) {
		seg := a.segments[i]
		if !seg.Matches(t) {
			continue
		}
		if seg.Repeats {
			return i, a.IsTerminal(i), nil
		}
		next := i + 1
		if next == len(a.segments) && a.loop {
			return 0, true, nil
		}
		return next, a.IsTerminal(next), nil
	}
	return 0, false, fmt.Errorf("%w: %s at %d", ErrTypeNotEligible, t, index)
}

// IsTerminal reports whether a path may stop at index: either every segment
// has been consumed or only repeating segments remain.
func (a *Automaton) IsTerminal(index int) bool {
	if index < 0 || index > len(a.segments) {
		return false
	}
	for i := index; i < len(a.segments); i++ {
		if !a.segments[i].Repeats {
			return false
		}
	}
	return true
}

// normalize maps the end position to 0 in loop mode and rejects positions
// that have no segment left.
func (a *Automaton) normalize(index int) int {
	if index == len(a.segments) && a.loop {
		return 0
	}
	if index < 0 || index >= len(a.segments) {
		return -1
	}
	return index
}

// Reverse returns an automaton accepting the same sequences read backwards.
// Matching is greedy, so a repeating segment directly followed by a plain
// segment with the same alternatives (the mirror image of a '+' expansion) is
// swapped back into exactly-one then zero-or-more order.
func (a *Automaton) Reverse() *Automaton {
	n := len(a.segments)
	rev := make([]Segment, n)
	for i, s := range a.segments {
		rev[n-1-i] = Segment{Types: slices.Clone(s.Types), Repeats: s.Repeats}
	}
	for i := 0; i+1 < n; i++ {
		if rev[i].Repeats && !rev[i+1].Repeats && slices.Equal(rev[i].Types, rev[i+1].Types) {
			rev[i], rev[i+1] = rev[i+1], rev[i]
			i++
		}
	}
	return &Automaton{segments: rev, loop: a.loop}
}

// String renders the expanded pattern.
func (a *Automaton) String() string {
	parts := make([]string, len(a.segments))
	for i, s := range a.segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}
