package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — счётчики конвейера запросов.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	refresh  *prometheus.CounterVec
	replays  prometheus.Counter
}

// Исходы эпизода обновления токена (метка outcome).
const (
	refreshSuccess  = "success"
	refreshNoToken  = "no_refresh_token"
	refreshRejected = "rejected"
	refreshNetwork  = "transport_error"
	refreshInvalid  = "invalid_response"
)

// NewMetrics создаёт коллекторы и регистрирует их в reg.
// reg == nil — коллекторы работают, но нигде не зарегистрированы.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aihub_client_requests_total",
			Help: "Outbound HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aihub_client_request_duration_seconds",
			Help:    "Outbound HTTP request latencies in seconds (until response headers).",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		refresh: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aihub_client_refresh_total",
			Help: "Token refresh episodes by outcome.",
		}, []string{"outcome"}),
		replays: f.NewCounter(prometheus.CounterOpts{
			Name: "aihub_client_replays_total",
			Help: "Requests replayed after a token refresh.",
		}),
	}
}
