package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LinksIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magiclink_links_issued_total",
			Help: "Total number of magic link issuance attempts.",
		},
		[]string{"result"},
	)

	LinkVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magiclink_link_verifications_total",
			Help: "Total number of magic link verification attempts by outcome.",
		},
		[]string{"result"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magiclink_notifications_total",
			Help: "Total number of magic link deliveries by transport and outcome.",
		},
		[]string{"transport", "result"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "magiclink_rate_limited_total",
			Help: "Total number of requests rejected by the auth rate limiter.",
		},
	)
)

// MustRegister registers all collectors on reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		LinksIssuedTotal,
		LinkVerificationsTotal,
		NotificationsTotal,
		RateLimitedTotal,
	)
}
