package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datallboy/gomodpack/internal/domain"
)

const namespace = "gomodpack"

// Metrics holds the download counters on a private registry so tests and
// multiple installers in one process never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	downloads   *prometheus.CounterVec
	retries     prometheus.Counter
	bytes       prometheus.Counter
	runDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Mod files processed, by final status.",
		}, []string{"status"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Items re-dispatched after a failed attempt.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes published to disk.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full modpack install.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.downloads,
		m.retries,
		m.bytes,
		m.runDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe implements domain.Observer.
func (m *Metrics) Observe(e domain.Event) {
	switch e.Kind {
	case domain.EventDownloaded:
		m.downloads.WithLabelValues(string(domain.StatusDownloaded)).Inc()
		m.bytes.Add(float64(e.Bytes))
	case domain.EventCacheHit:
		m.downloads.WithLabelValues(string(domain.StatusCached)).Inc()
	case domain.EventHashMismatch:
		if !e.Fresh {
			m.downloads.WithLabelValues(string(domain.StatusStale)).Inc()
		}
	case domain.EventRetry:
		m.retries.Inc()
	case domain.EventGaveUp:
		m.downloads.WithLabelValues(string(domain.StatusFailed)).Inc()
	}
}

func (m *Metrics) ObserveRun(d time.Duration) {
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
