package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "economy"

// Metrics holds the collectors for the account cache and its flush tasks.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AccountsCached prometheus.Gauge
	QueueDepth     *prometheus.GaugeVec
	FlushRows      *prometheus.CounterVec
	FlushDuration  *prometheus.HistogramVec
	LeaderboardDur prometheus.Histogram
	LeaderboardLen prometheus.Gauge
	Mutations      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		AccountsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "accounts",
			Help:      "Accounts currently held in the registry.",
		}),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "writebehind",
			Name:      "queue_depth",
			Help:      "Entries captured by the last flush, per queue.",
		}, []string{"queue"}),

		FlushRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writebehind",
			Name:      "rows_total",
			Help:      "Rows handled by flush tasks by queue and outcome.",
		}, []string{"queue", "outcome"}),

		FlushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "writebehind",
			Name:      "flush_duration_seconds",
			Help:      "Duration of one flush pass.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"queue"}),

		LeaderboardDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of one leaderboard aggregation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),

		LeaderboardLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "entries",
			Help:      "Entries in the published leaderboard.",
		}),

		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "mutations_total",
			Help:      "Balance mutations requested through the service layer.",
		}, []string{"operation", "outcome"}),
	}

	reg.MustRegister(
		m.AccountsCached,
		m.QueueDepth,
		m.FlushRows,
		m.FlushDuration,
		m.LeaderboardDur,
		m.LeaderboardLen,
		m.Mutations,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	return m
}

// Handler exposes the registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveFlush(queue string, seconds float64, captured, written, skipped, failed int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(queue).Set(float64(captured))
	m.FlushDuration.WithLabelValues(queue).Observe(seconds)
	m.FlushRows.WithLabelValues(queue, "written").Add(float64(written))
	m.FlushRows.WithLabelValues(queue, "skipped").Add(float64(skipped))
	m.FlushRows.WithLabelValues(queue, "failed").Add(float64(failed))
}

func (m *Metrics) ObserveLeaderboard(seconds float64, entries int) {
	if m == nil {
		return
	}
	m.LeaderboardDur.Observe(seconds)
	m.LeaderboardLen.Set(float64(entries))
}

func (m *Metrics) SetAccounts(n int) {
	if m == nil {
		return
	}
	m.AccountsCached.Set(float64(n))
}

func (m *Metrics) CountMutation(operation string, ok bool) {
	if m == nil {
		return
	}
	outcome := "applied"
	if !ok {
		outcome = "rejected"
	}
	m.Mutations.WithLabelValues(operation, outcome).Inc()
}
