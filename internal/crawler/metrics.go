package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scraper's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	attempts     *prometheus.CounterVec
	items        *prometheus.CounterVec
	inFlight     prometheus.Gauge
	latency      prometheus.Histogram
	listingPages *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_fetch_attempts_total",
			Help: "Article extraction attempts by result.",
		}, []string{"result"}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_items_total",
			Help: "Links that reached a terminal state.",
		}, []string{"state"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_fetches_in_flight",
			Help: "Article extractions currently running.",
		}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Duration of a single extraction attempt.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		listingPages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_listing_pages_total",
			Help: "Listing pages visited by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) attempt(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
	m.latency.Observe(d.Seconds())
}

func (m *Metrics) terminal(state string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(state).Inc()
}

func (m *Metrics) begin() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) end() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *Metrics) listingPage(result string) {
	if m == nil {
		return
	}
	m.listingPages.WithLabelValues(result).Inc()
}
