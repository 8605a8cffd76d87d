package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scgrab/internal/core"
)

// Metrics holds the download pipeline collectors on a private registry and
// implements core.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	DownloadsTotal   *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	BytesTotal       *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
	InFlight         prometheus.Gauge
}

var _ core.Recorder = (*Metrics)(nil)

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scgrab_downloads_total",
				Help: "Total number of track downloads by result",
			},
			[]string{"result"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scgrab_errors_total",
				Help: "Total number of failed downloads by error kind",
			},
			[]string{"kind"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scgrab_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"stage"},
		),
		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scgrab_bytes_total",
				Help: "Total number of bytes downloaded by content kind",
			},
			[]string{"kind"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scgrab_rate_limited_total",
				Help: "Total number of download requests rejected by the rate limiter",
			},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scgrab_downloads_in_flight",
				Help: "Number of downloads currently running",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.DownloadsTotal,
		m.ErrorsTotal,
		m.StageDuration,
		m.BytesTotal,
		m.RateLimitedTotal,
		m.InFlight,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordDownload(result string) {
	m.DownloadsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordError(kind string) {
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *Metrics) AddBytes(kind string, n int) {
	m.BytesTotal.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}
