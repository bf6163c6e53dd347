package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ciata", Name: "logins_total", Help: "Login attempts by outcome."},
		[]string{"outcome"},
	)
	DocumentWrites = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "ciata", Name: "document_writes_total", Help: "Successful document writes."},
	)
	Uploads = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "ciata", Name: "image_uploads_total", Help: "Successful image uploads."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ciata", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ciata", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Logins)
	reg.MustRegister(DocumentWrites)
	reg.MustRegister(Uploads)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
