package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricSet struct {
	apiLatency          *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	originFetches       *prometheus.CounterVec
	originLatency       *prometheus.HistogramVec
	commits             *prometheus.CounterVec
	committedBytes      *prometheus.CounterVec
	evictedObjects      *prometheus.CounterVec
	evictedBytes        *prometheus.CounterVec
	maintenanceRuns     *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	maintenanceLastRun  *prometheus.GaugeVec
}

func newMetricSet(namespace string) *metricSet {
	buckets := prometheus.DefBuckets

	return &metricSet{
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "HTTP handler latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Blob store lookups by category and result",
			},
			[]string{"category", "result"},
		),
		originFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "origin_fetches_total",
				Help:      "Origin requests by kind (full, range, warm) and status class",
			},
			[]string{"kind", "status"},
		),
		originLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "origin_header_latency_seconds",
				Help:      "Time until the origin returned response headers",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_commits_total",
				Help:      "Background cache population results",
			},
			[]string{"category", "result"},
		),
		committedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_committed_bytes_total",
				Help:      "Bytes written to the blob store by successful commits",
			},
			[]string{"category"},
		),
		evictedObjects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "eviction_deleted_total",
				Help:      "Objects deleted by the eviction engine",
			},
			[]string{"phase", "category"},
		),
		evictedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "eviction_freed_bytes_total",
				Help:      "Bytes reclaimed by the eviction engine",
			},
			[]string{"phase", "category"},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_runs_total",
				Help:      "Maintenance job executions",
			},
			[]string{"job", "result"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Maintenance job duration",
				Buckets:   buckets,
			},
			[]string{"job"},
		),
		maintenanceLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maintenance_last_success_timestamp",
				Help:      "Timestamp of the last successful maintenance run (seconds since epoch)",
			},
			[]string{"job"},
		),
	}
}

func (c *metricSet) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.apiLatency,
		c.cacheLookups,
		c.originFetches,
		c.originLatency,
		c.commits,
		c.committedBytes,
		c.evictedObjects,
		c.evictedBytes,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}

func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
