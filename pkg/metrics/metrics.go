package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	URLsInQueue         prometheus.Gauge

	CataloguesTotal   *prometheus.CounterVec
	CatalogueDuration *prometheus.HistogramVec
	CooldownsTotal    prometheus.Counter
	CRMRecordsSynced  *prometheus.CounterVec
)

func Init() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	URLsInQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "urls_in_queue",
			Help: "Current number of URLs awaiting cataloguing.",
		},
	)

	CataloguesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogues_total",
			Help: "Total number of catalogue attempts.",
		},
		[]string{"outcome"}, // ok, skipped, failed
	)

	CatalogueDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogue_duration_seconds",
			Help:    "Duration of catalogue operations per page.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"domain"},
	)

	CooldownsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogue_cooldowns_total",
			Help: "Times the batch driver paused after a failure burst.",
		},
	)

	CRMRecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_records_synced_total",
			Help: "CRM records processed by the sync job.",
		},
		[]string{"action"}, // placeholder_created, status_updated, unchanged
	)
}
