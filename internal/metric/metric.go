package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Holiday fetch outcomes.
const (
	FetchFresh         = "fresh"
	FetchNotModified   = "not_modified"
	FetchCacheFallback = "cache_fallback"
	FetchError         = "error"
)

var (
	HolidayFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visitcal_holiday_fetch_total",
		Help: "Holiday feed fetches by outcome",
	}, []string{"result"})

	HolidaysKnown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visitcal_holidays_known",
		Help: "Number of dates in the current holiday snapshot",
	})

	OccurrenceQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visitcal_occurrence_queries_total",
		Help: "Occurrence resolutions served, by view",
	}, []string{"view"})

	OccurrenceQuerySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visitcal_occurrence_query_seconds",
		Help:    "Latency of occurrence resolution including the store read",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"view"})

	VisitsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visitcal_visits_stored",
		Help: "Number of visit definitions in the store",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
