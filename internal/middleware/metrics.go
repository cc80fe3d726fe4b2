package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the guestbook
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	likeToggles prometheus.Counter
	hubClients  prometheus.Gauge
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guestbook_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guestbook_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		likeToggles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guestbook_like_toggles_total",
			Help: "Successful like toggles.",
		}),
		hubClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guestbook_live_feed_clients",
			Help: "Connected live feed websocket clients.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.likeToggles, m.hubClients)
	return m
}

// Middleware records a request under its route template, e.g. /posts/edit/{postId:[0-9]+}.
// It must run inside the router so the matched route is known.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorderFor(w)
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.Status())).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) LikeToggled() {
	m.likeToggles.Inc()
}

func (m *Metrics) SetHubClients(n int) {
	m.hubClients.Set(float64(n))
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
