package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("gfq.search")

var (
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gfq_search_total",
		Help: "Total searches by outcome",
	}, []string{"outcome"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gfq_search_duration_seconds",
		Help:    "Search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	}, []string{"mode"})

	cfgChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gfq_cfg_checks_total",
		Help: "Total CFG checks by result",
	}, []string{"result"})

	pathsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gfq_paths_emitted_total",
		Help: "Total dataflow paths accepted",
	})
)

// Search outcomes.
const (
	outcomeFound     = "found"
	outcomeEmpty     = "empty"
	outcomeTruncated = "truncated"
	outcomeError     = "error"
)

func modeLabel(opts Options) string {
	mode := "first"
	if opts.AllShortestPath {
		mode = "all_shortest"
	}
	if opts.Backward {
		return "backward_" + mode
	}
	return "forward_" + mode
}
