package search

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Pair is one independent search of a batch.
type Pair struct {
	Start Anchor `json:"start" yaml:"start"`
	End   Anchor `json:"end,omitempty" yaml:"end,omitempty"`
}

// VisitedSet is an insert-only set shared by the searches of one batch.
// Insert is an atomic check-and-insert, so two workers never both claim a
// key, but which worker wins depends on scheduling.
type VisitedSet struct {
	keys sync.Map
	size atomic.Int64
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{}
}

// Insert adds key and reports whether it was absent.
func (s *VisitedSet) Insert(key string) bool {
	if _, loaded := s.keys.LoadOrStore(key, struct{}{}); loaded {
		return false
	}
	s.size.Add(1)
	return true
}

// Contains reports whether key was inserted.
func (s *VisitedSet) Contains(key string) bool {
	_, ok := s.keys.Load(key)
	return ok
}

// Len returns the number of keys.
func (s *VisitedSet) Len() int {
	return int(s.size.Load())
}

// BatchResult collects the results of a batch in pair order.
type BatchResult struct {
	BatchID   string    `json:"batch_id"`            // Identifies the batch in logs and traces
	Results   []*Result `json:"results"`             // One result per pair
	Paths     []Path    `json:"paths"`               // All paths, concatenated in pair order
	Truncated bool      `json:"truncated,omitempty"` // At least one search was truncated
}

// SearchAll runs one search per pair on at most workers goroutines (0 means
// GOMAXPROCS). When shared is non-nil every search claims visited edges in
// it, so edges explored by one search are skipped by the others; paths may
// then be missed or found twice, and callers must tolerate both.
//
// The first failing search cancels the rest and its error is returned.
func (e *Engine) SearchAll(ctx context.Context, pairs []Pair, workers int, shared *VisitedSet) (*BatchResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	batch := &BatchResult{
		BatchID: uuid.NewString(),
		Results: make([]*Result, len(pairs)),
		Paths:   []Path{},
	}

	ctx, span := tracer.Start(ctx, "search.SearchAll",
		trace.WithAttributes(
			attribute.String("batch_id", batch.BatchID),
			attribute.Int("pairs", len(pairs)),
			attribute.Int("workers", workers),
			attribute.Bool("shared_visited", shared != nil),
		),
	)
	defer span.End()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			res, err := e.search(gCtx, pair.Start, pair.End, shared)
			if err != nil {
				return fmt.Errorf("search %d (%s -> %s): %w", i, pair.Start, pair.End, err)
			}
			batch.Results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, res := range batch.Results {
		batch.Paths = append(batch.Paths, res.Paths...)
		batch.Truncated = batch.Truncated || res.Truncated
	}
	span.SetAttributes(attribute.Int("paths", len(batch.Paths)))
	e.logger.Debug("batch finished", "batch_id", batch.BatchID, "pairs", len(pairs), "paths", len(batch.Paths))
	return batch, nil
}
