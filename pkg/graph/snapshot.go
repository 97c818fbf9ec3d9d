package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format identifies a snapshot encoding.
type Format string

const (
	FormatJSON    Format = "json"    // Indented JSON document
	FormatMsgpack Format = "msgpack" // Binary msgpack document
	FormatYAML    Format = "yaml"    // YAML document
)

// Snapshot is the serializable form of a graph.
type Snapshot struct {
	Version int     `json:"version" yaml:"version" msgpack:"version"`
	Nodes   []*Node `json:"nodes" yaml:"nodes" msgpack:"nodes"`
	Edges   []*Edge `json:"edges" yaml:"edges" msgpack:"edges"`
}

const snapshotVersion = 1

// FormatFromPath infers the snapshot format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".mp":
		return FormatMsgpack, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// ToSnapshot captures the graph contents in insertion order.
func (g *MemGraph) ToSnapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := &Snapshot{
		Version: snapshotVersion,
		Nodes:   make([]*Node, 0, len(g.order)),
		Edges:   make([]*Edge, 0, len(g.eorder)),
	}
	for _, id := range g.order {
		s.Nodes = append(s.Nodes, g.nodes[id])
	}
	for _, id := range g.eorder {
		s.Edges = append(s.Edges, g.edges[id])
	}
	return s
}

// FromSnapshot builds a frozen graph from a snapshot.
func FromSnapshot(s *Snapshot) (*MemGraph, error) {
	g := NewMemGraph()
	for _, n := range s.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range s.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	g.Freeze()
	return g, nil
}

// Encode writes the graph to w in the given format.
func Encode(w io.Writer, format Format, g *MemGraph) error {
	s := g.ToSnapshot()
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%s: %w", format, ErrUnknownFormat)
	}
}

// Decode reads a graph from r in the given format. The result is frozen.
func Decode(r io.Reader, format Format) (*MemGraph, error) {
	var s Snapshot
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&s)
	case FormatMsgpack:
		err = msgpack.NewDecoder(r).Decode(&s)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&s)
	default:
		return nil, fmt.Errorf("%s: %w", format, ErrUnknownFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s snapshot: %w", format, err)
	}
	if s.Version > snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return FromSnapshot(&s)
}

// LoadSnapshot reads a graph snapshot file, choosing the format by extension.
func LoadSnapshot(path string) (*MemGraph, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	g, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// WriteSnapshot writes g to path, choosing the format by extension.
func WriteSnapshot(path string, g *MemGraph) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	return encodeAndClose(f, format, g)
}

// encodeAndClose encodes g into w and closes it. A close failure is reported
// when encoding succeeded.
func encodeAndClose(w io.WriteCloser, format Format, g *MemGraph) error {
	if err := Encode(w, format, g); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	return nil
}
