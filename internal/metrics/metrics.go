package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcome label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector holds the refresh and snapshot metrics. A nil *Collector
// is valid and records nothing.
type Collector struct {
	refreshTotal     *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	snapshotSites    prometheus.Gauge
	snapshotLoadedAt prometheus.Gauge
	rowsRejected     prometheus.Counter
	trendPoints      prometheus.Counter
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_refresh_total",
			Help: "Refresh attempts by result",
		}, []string{"result"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitepulse_refresh_duration_seconds",
			Help:    "Duration of the load, derive and aggregate pipeline",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		snapshotSites: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sitepulse_snapshot_sites",
			Help: "Sites in the live snapshot",
		}),
		snapshotLoadedAt: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sitepulse_snapshot_loaded_timestamp_seconds",
			Help: "Unix time the live snapshot was loaded",
		}),
		rowsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitepulse_rows_rejected_total",
			Help: "Raw rows skipped during cleaning",
		}),
		trendPoints: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitepulse_trend_points_total",
			Help: "Trend points appended",
		}),
	}
}

// ObserveRefresh records the outcome of one refresh pipeline run
func (c *Collector) ObserveRefresh(success bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	c.refreshTotal.WithLabelValues(result).Inc()
	c.refreshDuration.Observe(elapsed.Seconds())
}

// ObserveSnapshot records the size and load time of a published snapshot
func (c *Collector) ObserveSnapshot(sites int, loadedAt time.Time) {
	if c == nil {
		return
	}
	c.snapshotSites.Set(float64(sites))
	c.snapshotLoadedAt.Set(float64(loadedAt.Unix()))
}

// ObserveRejectedRows counts rows dropped by cleaning, whether or not the
// refresh went on to publish
func (c *Collector) ObserveRejectedRows(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsRejected.Add(float64(n))
}

// ObserveTrendPoint counts an appended trend point
func (c *Collector) ObserveTrendPoint() {
	if c == nil {
		return
	}
	c.trendPoints.Inc()
}
