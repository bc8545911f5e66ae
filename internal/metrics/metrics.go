package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_cache_hits_total",
		Help: "Total number of queries answered from the object cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_cache_misses_total",
		Help: "Total number of queries that had to compute their view.",
	})

	UploadsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_uploads_enqueued_total",
		Help: "Total number of computed views queued for persistence.",
	})

	UploadsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_uploads_dropped_total",
		Help: "Total number of uploads dropped because the queue was full.",
	})

	UploadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_uploads_failed_total",
		Help: "Total number of object-store writes that failed.",
	})

	UpstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventquery_upstream_fetches_total",
		Help: "Total number of upstream archive fetches, labelled by outcome.",
	}, []string{"outcome"})

	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventquery_request_duration_ms",
		Help:    "End-to-end query latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventquery_upload_queue_utilization_ratio",
		Help: "Current upload queue utilization (0–1).",
	})
)
