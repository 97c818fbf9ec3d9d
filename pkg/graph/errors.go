package graph

import "errors"

// Sentinel errors for graph store operations.
var (
	// ErrNodeNotFound is returned when a node id is not present in the store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when an edge id is not present in the store.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrDuplicateID is returned when adding a node or edge whose id already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrFrozen is returned when mutating a graph after Freeze.
	ErrFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrSnapshotClosed is returned by every read once the snapshot has been closed.
	// Searches propagate it instead of emitting partial results.
	ErrSnapshotClosed = errors.New("graph snapshot is closed")

	// ErrUnknownFormat is returned for snapshot files with an unrecognized extension.
	ErrUnknownFormat = errors.New("unknown snapshot format")
)
