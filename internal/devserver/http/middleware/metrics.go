package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instrument считает запросы и их длительность по шаблону маршрута chi.
// reg == nil — метрики не регистрируются.
func Instrument(reg prometheus.Registerer) Middleware {
	f := promauto.With(reg)

	requests := f.NewCounterVec(prometheus.CounterOpts{
		Name: "aihub_devserver_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	duration := f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aihub_devserver_http_request_duration_seconds",
		Help:    "HTTP request duration by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()

			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}

			requests.WithLabelValues(r.Method, route, strconv.Itoa(sw.Status())).Inc()
			duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
