// Package metrics exposes upload pipeline counters for Prometheus. All
// methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	UploadsStarted   prometheus.Counter
	UploadsSucceeded prometheus.Counter
	UploadsFailed    *prometheus.CounterVec
	BytesUploaded    *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	QueueDepth       prometheus.Gauge
	StoreErrors      prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UploadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetsync_uploads_started_total",
			Help: "Total number of upload runs started",
		}),
		UploadsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetsync_uploads_succeeded_total",
			Help: "Total number of upload runs that uploaded every variant",
		}),
		UploadsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_uploads_failed_total",
			Help: "Total number of failed upload runs by reason",
		}, []string{"reason"}),
		BytesUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_bytes_uploaded_total",
			Help: "Total number of bytes accepted by destinations",
		}, []string{"variant"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assetsync_step_duration_seconds",
			Help:    "Derive plus transfer time of one variant",
			Buckets: prometheus.DefBuckets,
		}, []string{"variant"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assetsync_queue_depth",
			Help: "Number of queued uploads not yet released",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetsync_store_errors_total",
			Help: "Total number of failed terminal-state writes",
		}),
	}

	reg.MustRegister(
		m.UploadsStarted,
		m.UploadsSucceeded,
		m.UploadsFailed,
		m.BytesUploaded,
		m.StepDuration,
		m.QueueDepth,
		m.StoreErrors,
	)
	return m
}

func (m *Metrics) Started() {
	if m == nil {
		return
	}
	m.UploadsStarted.Inc()
}

func (m *Metrics) Succeeded() {
	if m == nil {
		return
	}
	m.UploadsSucceeded.Inc()
}

func (m *Metrics) Failed(reason string) {
	if m == nil {
		return
	}
	m.UploadsFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) Step(variant string, bytes int, took time.Duration) {
	if m == nil {
		return
	}
	m.BytesUploaded.WithLabelValues(variant).Add(float64(bytes))
	m.StepDuration.WithLabelValues(variant).Observe(took.Seconds())
}

func (m *Metrics) Queue(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) StoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}
