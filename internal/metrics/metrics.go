package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainmap_source_fetches_total",
			Help: "Total time series fetches by data source and outcome",
		},
		[]string{"source", "status"},
	)

	SourceFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rainmap_source_fetch_latency_seconds",
			Help:    "Time series fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SeriesLength = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rainmap_series_points",
			Help:    "Number of points returned per fetch",
			Buckets: []float64{0, 1, 10, 100, 365, 1000, 8760, 100000},
		},
		[]string{"source"},
	)

	IndexComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainmap_index_computations_total",
			Help: "Total climate index computations by index and outcome",
		},
		[]string{"index", "status"},
	)
)
