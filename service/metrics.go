package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics 是 Recommender 的 Prometheus 指标，注册到构建时给定的 Registerer。
type metrics struct {
	requests        *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	profileCache    *prometheus.CounterVec
	factorize       prometheus.Histogram
	snapshotVersion prometheus.Gauge
	skipped         prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bookrec",
				Name:      "requests_total",
				Help:      "Total number of recommendation requests by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bookrec",
				Name:      "fallbacks_total",
				Help:      "Total number of popularity fallbacks by failure reason",
			},
			[]string{"reason"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bookrec",
				Name:      "request_duration_seconds",
				Help:      "Duration of recommendation requests in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"strategy"},
		),
		profileCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bookrec",
				Name:      "profile_cache_total",
				Help:      "User profile cache lookups by result",
			},
			[]string{"result"},
		),
		factorize: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "bookrec",
				Name:      "factorize_duration_seconds",
				Help:      "Duration of snapshot builds (rating matrix, SVD, popularity) in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		snapshotVersion: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "bookrec",
				Name:      "snapshot_version",
				Help:      "Version of the currently published model snapshot",
			},
		),
		skipped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "bookrec",
				Name:      "skipped_interactions_total",
				Help:      "Interactions skipped at snapshot build because their item is not in the catalog",
			},
		),
	}
}

func (m *metrics) observeRequest(strategy Strategy, outcome string, start time.Time) {
	m.requests.WithLabelValues(string(strategy), outcome).Inc()
	m.latency.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
}

func (m *metrics) observeSnapshot(s *Snapshot, d time.Duration) {
	m.factorize.Observe(d.Seconds())
	m.snapshotVersion.Set(float64(s.Version))
	m.skipped.Add(float64(s.Skipped))
}
