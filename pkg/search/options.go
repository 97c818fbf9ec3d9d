package search

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-flow-query/internal/log"
	"github.com/l3aro/go-flow-query/pkg/pattern"
	"github.com/l3aro/go-flow-query/pkg/reach"
)

// Options configures an Engine. Start from DefaultOptions and override
// fields: the zero Options disables the CFG check and external entry, which
// both default to true.
type Options struct {
	// CFGCheck validates every step against the control-flow graph. False in
	// the zero value.
	CFGCheck bool

	// RelSequence is the edge-type pattern, always written in program order.
	RelSequence string

	// Repeat lets the pattern wrap around after its last segment.
	Repeat bool

	// Backward follows dataflow edges against their direction.
	Backward bool

	// AllShortestPath returns every shortest path instead of the first one.
	AllShortestPath bool

	// NodeFilter restricts traversable nodes to those carrying one of these
	// labels. Empty means no restriction. The start node is never filtered.
	NodeFilter []string

	// CFGConfiguration overrides or extends the default CFG settings.
	CFGConfiguration reach.Settings

	// MaxDepth bounds the number of edges in a path. 0 means unbounded.
	MaxDepth int

	// MaxResults stops the search once this many paths are accepted.
	// 0 means unbounded.
	MaxResults int

	// ExternalEntry accepts a return with no open call frame. False in the
	// zero value.
	ExternalEntry bool

	MaxCallDepth         int
	FunctionProperty     string
	FunctionDelimiter    string
	AssociationCacheSize int
	MaxStates            int

	Logger log.Logger
}

// DefaultOptions returns the options of a plain forward, first-path search
// over the default dataflow pattern.
func DefaultOptions() Options {
	r := reach.DefaultOptions()
	return Options{
		CFGCheck:             true,
		RelSequence:          pattern.DefaultPattern,
		ExternalEntry:        r.ExternalEntry,
		MaxCallDepth:         r.MaxCallDepth,
		FunctionProperty:     r.FunctionProperty,
		FunctionDelimiter:    r.FunctionDelimiter,
		AssociationCacheSize: r.CacheSize,
		MaxStates:            r.MaxStates,
	}
}

// Validate checks the options that can be checked without a graph.
func (o Options) Validate() error {
	if o.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth must be non-negative, got %d", ErrInvalidOptions, o.MaxDepth)
	}
	if o.MaxResults < 0 {
		return fmt.Errorf("%w: max results must be non-negative, got %d", ErrInvalidOptions, o.MaxResults)
	}
	if o.MaxCallDepth < 0 {
		return fmt.Errorf("%w: max call depth must be non-negative, got %d", ErrInvalidOptions, o.MaxCallDepth)
	}
	return nil
}

func (o Options) checkerOptions() reach.Options {
	return reach.Options{
		Backward:          o.Backward,
		ExternalEntry:     o.ExternalEntry,
		MaxCallDepth:      o.MaxCallDepth,
		FunctionProperty:  o.FunctionProperty,
		FunctionDelimiter: o.FunctionDelimiter,
		CacheSize:         o.AssociationCacheSize,
		MaxStates:         o.MaxStates,
		Settings:          reach.DefaultSettings().Merge(o.CFGConfiguration),
	}
}

// ParseNodeFilter splits a comma-separated label list.
func ParseNodeFilter(s string) []string {
	var labels []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}
