package reach

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

// ErrInvalidSetting is returned for CFG settings that cannot be applied.
var ErrInvalidSetting = errors.New("invalid cfg setting")

// Length is the number of nextCFGBlock hops that separate the two CFG blocks
// associated with a dataflow edge.
type Length int

const (
	LengthAny       Length = -1 // Zero or more hops ("*")
	LengthOneOrMore Length = -2 // One or more hops ("+")
)

// Unbounded reports whether the length is a reachability constraint rather
// than an exact hop count.
func (l Length) Unbounded() bool {
	return l < 0
}

// Valid reports whether l is an exact count or one of the two wildcards.
func (l Length) Valid() bool {
	return l >= LengthOneOrMore
}

func (l Length) String() string {
	switch l {
	case LengthAny:
		return "*"
	case LengthOneOrMore:
		return "+"
	default:
		return strconv.Itoa(int(l))
	}
}

// ParseLength accepts a non-negative integer, "*" or "+".
func ParseLength(s string) (Length, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "*":
		return LengthAny, nil
	case "+":
		return LengthOneOrMore, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: length %q", ErrInvalidSetting, s)
	}
	l := Length(n)
	if !l.Valid() {
		return 0, fmt.Errorf("%w: length %d", ErrInvalidSetting, n)
	}
	return l, nil
}

// UnmarshalYAML accepts both integer and string lengths.
func (l *Length) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseLength(value.Value)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalYAML renders wildcards as strings and counts as integers.
func (l Length) MarshalYAML() (interface{}, error) {
	if l.Unbounded() {
		return l.String(), nil
	}
	return int(l), nil
}

// UnmarshalJSON accepts both integer and string lengths.
func (l *Length) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	parsed, err := ParseLength(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalJSON renders wildcards as strings and counts as integers.
func (l Length) MarshalJSON() ([]byte, error) {
	if l.Unbounded() {
		return json.Marshal(l.String())
	}
	return json.Marshal(int(l))
}

// Setting describes how the CFG blocks of a dataflow edge's endpoints are
// related. Name is the dataflow edge type the setting applies to. Empty or
// "*" labels match any node.
type Setting struct {
	Name       string   `yaml:"name" json:"name"`                                 // Dataflow edge type
	StartLabel string   `yaml:"startLabel,omitempty" json:"startLabel,omitempty"` // Label of the edge's source node
	EndLabel   string   `yaml:"endLabel,omitempty" json:"endLabel,omitempty"`     // Label of the edge's target node
	Length     Length   `yaml:"length" json:"length"`                             // Hop count or wildcard
	Attributes []string `yaml:"attribute,omitempty" json:"attribute,omitempty"`   // Flags every hop must carry
}

// EdgeType returns the setting's edge type.
func (s Setting) EdgeType() graph.EdgeType {
	return graph.EdgeType(s.Name)
}

// specificity counts the non-wildcard labels of the setting.
func (s Setting) specificity() int {
	n := 0
	if !isWildcard(s.StartLabel) {
		n++
	}
	if !isWildcard(s.EndLabel) {
		n++
	}
	return n
}

func (s Setting) matches(start []string, t graph.EdgeType, end []string) bool {
	if s.EdgeType() != t {
		return false
	}
	return labelMatches(s.StartLabel, start) && labelMatches(s.EndLabel, end)
}

func (s Setting) key() string {
	return s.Name + "\x00" + normalizeLabel(s.StartLabel) + "\x00" + normalizeLabel(s.EndLabel)
}

func isWildcard(label string) bool {
	return label == "" || label == "*"
}

func normalizeLabel(label string) string {
	if isWildcard(label) {
		return ""
	}
	return label
}

func labelMatches(want string, labels []string) bool {
	if isWildcard(want) {
		return true
	}
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// Settings is the CFG settings table.
type Settings []Setting

// DefaultSettings returns the built-in table covering every dataflow type.
func DefaultSettings() Settings {
	return Settings{
		{Name: string(graph.EdgeVarWrite), Length: 0},
		{Name: string(graph.EdgeParWrite), Length: 1, Attributes: []string{graph.FlagInvoke}},
		{Name: string(graph.EdgeRetWrite), Length: 1, Attributes: []string{graph.FlagReturn}},
		{Name: string(graph.EdgeVarInfFunc), Length: LengthAny},
		{Name: string(graph.EdgeVarInfluence), Length: LengthAny},
		{Name: string(graph.EdgePubVar), Length: 0},
		{Name: string(graph.EdgePubTarget), Length: 0},
	}
}

// Lookup returns the most specific setting matching an edge of type t whose
// source carries start labels and whose target carries end labels. Among
// equally specific settings the first one wins.
func (s Settings) Lookup(start []string, t graph.EdgeType, end []string) (Setting, bool) {
	best := -1
	var found Setting
	for _, setting := range s {
		if !setting.matches(start, t, end) {
			continue
		}
		if spec := setting.specificity(); spec > best {
			best = spec
			found = setting
		}
	}
	return found, best >= 0
}

// Validate checks every setting.
func (s Settings) Validate() error {
	for i, setting := range s {
		if !setting.EdgeType().IsDataflow() {
			return fmt.Errorf("%w: setting %d: %q is not a dataflow edge type", ErrInvalidSetting, i, setting.Name)
		}
		if !setting.Length.Valid() {
			return fmt.Errorf("%w: setting %d: length %d", ErrInvalidSetting, i, setting.Length)
		}
		for _, attr := range setting.Attributes {
			if strings.TrimSpace(attr) == "" {
				return fmt.Errorf("%w: setting %d: empty attribute", ErrInvalidSetting, i)
			}
		}
		if setting.Length.Unbounded() && len(setting.Attributes) > 0 {
			return fmt.Errorf("%w: setting %d: attributes require an exact length", ErrInvalidSetting, i)
		}
	}
	return nil
}

// Merge returns a copy of s in which every override replaces the setting with
// the same edge type and labels; overrides without a counterpart are appended.
func (s Settings) Merge(overrides Settings) Settings {
	out := make(Settings, len(s), len(s)+len(overrides))
	copy(out, s)

	index := make(map[string]int, len(out))
	for i, setting := range out {
		index[setting.key()] = i
	}
	for _, o := range overrides {
		if i, ok := index[o.key()]; ok {
			out[i] = o
			continue
		}
		index[o.key()] = len(out)
		out = append(out, o)
	}
	return out
}
