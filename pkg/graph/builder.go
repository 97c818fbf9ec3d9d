package graph

// Builder assembles a MemGraph fluently, remembering the first error.
type Builder struct {
	g   *MemGraph
	err error
}

// NewBuilder creates a builder over an empty graph.
func NewBuilder() *Builder {
	return &Builder{g: NewMemGraph()}
}

// Node adds a node with the given labels.
func (b *Builder) Node(id string, labels ...string) *Builder {
	return b.NodeProps(id, nil, labels...)
}

// NodeProps adds a node with properties and labels.
func (b *Builder) NodeProps(id string, props map[string]string, labels ...string) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.g.AddNode(&Node{ID: id, Labels: labels, Props: props})
	return b
}

// Edge adds an edge. props is a list of key/value pairs.
func (b *Builder) Edge(id string, t EdgeType, from, to string, props ...string) *Builder {
	if b.err != nil {
		return b
	}
	var bag map[string]string
	if len(props) > 0 {
		bag = make(map[string]string, len(props)/2)
		for i := 0; i+1 < len(props); i += 2 {
			bag[props[i]] = props[i+1]
		}
	}
	b.err = b.g.AddEdge(&Edge{ID: id, Type: t, From: from, To: to, Props: bag})
	return b
}

// Build freezes and returns the graph, or the first error encountered.
func (b *Builder) Build() (*MemGraph, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.g.Freeze()
	return b.g, nil
}
