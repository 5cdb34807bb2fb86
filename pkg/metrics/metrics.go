package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ProbesTotal         *prometheus.CounterVec
	EnrichmentsTotal    *prometheus.CounterVec
	EnrichDuration      prometheus.Histogram
	CollectionsBuilt    prometheus.Counter
	CollectionSize      prometheus.Histogram
	ArchivesTotal       *prometheus.CounterVec
	PageLoadDuration    *prometheus.HistogramVec
}

// New registers the metrics against reg. Tests pass a fresh
// prometheus.NewRegistry(); the server uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ProbesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagegrab_probes_total",
				Help: "Total number of size probes.",
			},
			[]string{"outcome"}, // known, unknown
		),
		EnrichmentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagegrab_enrichments_total",
				Help: "Total number of image enrichments.",
			},
			[]string{"status"}, // success, failure
		),
		EnrichDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "imagegrab_enrich_duration_seconds",
				Help:    "Duration of a single image enrichment.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
		),
		CollectionsBuilt: f.NewCounter(
			prometheus.CounterOpts{
				Name: "imagegrab_collections_built_total",
				Help: "Total number of collections built.",
			},
		),
		CollectionSize: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "imagegrab_collection_size",
				Help:    "Number of descriptors in a built collection.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		ArchivesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagegrab_archives_total",
				Help: "Total number of archive builds.",
			},
			[]string{"status"}, // success, failure
		),
		PageLoadDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imagegrab_page_load_duration_seconds",
				Help:    "Duration of page image extraction.",
				Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
			},
			[]string{"source"},
		),
	}
}

func (m *Metrics) IncProbe(known bool) {
	outcome := "unknown"
	if known {
		outcome = "known"
	}
	m.ProbesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncEnrichment(ok bool) {
	m.EnrichmentsTotal.WithLabelValues(status(ok)).Inc()
}

func (m *Metrics) IncArchive(ok bool) {
	m.ArchivesTotal.WithLabelValues(status(ok)).Inc()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
