package proxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeRewritten = "rewritten"
	outcomePartial   = "partial"
	outcomeUnmatched = "unmatched"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

type metrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pages      *prometheus.CounterVec
	transforms *prometheus.CounterVec
	workflows  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adminmedia_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adminmedia_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		pages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adminmedia_pages_total",
			Help: "HTML pages seen by the rewriter, by page kind and outcome.",
		}, []string{"kind", "outcome"}),
		transforms: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adminmedia_transforms_total",
			Help: "Transforms applied to served pages.",
		}, []string{"transform"}),
		workflows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adminmedia_workflows_total",
			Help: "Export workflows by final result.",
		}, []string{"result"}),
	}
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unrouted"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		m.requests.WithLabelValues(labels...).Inc()
		m.duration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}
