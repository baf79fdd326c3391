// Package metrics exposes the monitor's prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

const namespace = "pingmonitor"

type Metrics struct {
	reg *prometheus.Registry

	probes        *prometheus.CounterVec
	latency       prometheus.Histogram
	up            prometheus.Gauge
	streak        prometheus.Gauge
	notifications *prometheus.CounterVec
	skipped       prometheus.Counter
	persistErrors prometheus.Counter
	pruned        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Committed probe results by status.",
		}, []string{"status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "TCP handshake latency of successful probes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Whether the last probe succeeded (1) or failed (0).",
		}),
		streak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Current run of consecutive failed probes.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Dispatched notifications by kind and result.",
		}, []string{"kind", "result"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_ticks_skipped_total",
			Help:      "Ticks skipped because every probe slot was busy.",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Probe results that could not be stored.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_rows_total",
			Help:      "Rows removed by retention.",
		}),
	}
	m.reg.MustRegister(
		m.probes, m.latency, m.up, m.streak, m.notifications,
		m.skipped, m.persistErrors, m.pruned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterFeed exposes live-feed gauges read on scrape.
func (m *Metrics) RegisterFeed(subscribers func() int, dropped func() uint64) {
	if m == nil {
		return
	}
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscribers",
			Help:      "Connected live-feed viewers.",
		}, func() float64 { return float64(subscribers()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_dropped_total",
			Help:      "Live messages dropped for lagging viewers.",
		}, func() float64 { return float64(dropped()) }),
	)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveProbe(r domain.ProbeResult) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(string(r.Status)).Inc()
	if r.Status == domain.Success && r.LatencyMS != nil {
		m.up.Set(1)
		m.latency.Observe(*r.LatencyMS / 1000)
		return
	}
	m.up.Set(0)
}

func (m *Metrics) SetStreak(n int) {
	if m == nil {
		return
	}
	m.streak.Set(float64(n))
}

func (m *Metrics) Notified(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) TickSkipped() {
	if m != nil {
		m.skipped.Inc()
	}
}

func (m *Metrics) PersistError() {
	if m != nil {
		m.persistErrors.Inc()
	}
}

func (m *Metrics) Pruned(n int64) {
	if m != nil {
		m.pruned.Add(float64(n))
	}
}
