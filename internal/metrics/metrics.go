package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
	)

	BillingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "billing_events_total", Help: "Processed billing webhook events"},
		[]string{"type", "outcome"},
	)
	AccessGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "billing_access_grants_total", Help: "Premium access grants by path"},
		[]string{"path"},
	)
)

func MustRegister() {
	prometheus.MustRegister(RequestsTotal, ReqDuration, InFlight, BillingEventsTotal, AccessGrantsTotal)
}
