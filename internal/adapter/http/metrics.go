package adapthttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

type metrics struct {
	registry       *prometheus.Registry
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	guardDecisions *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	authResults    *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		registry: reg,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trimfit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trimfit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trimfit",
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Route guard outcomes by route class",
		}, []string{"class", "decision"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trimfit",
			Subsystem: "auth",
			Name:      "rate_limited_total",
			Help:      "Number of rate-limited auth form submissions",
		}, []string{"route"}),
		authResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trimfit",
			Subsystem: "auth",
			Name:      "results_total",
			Help:      "Outcomes of sign-in and sign-up attempts",
		}, []string{"action", "result"}),
	}
	reg.MustRegister(m.requestTotal, m.requestLatency, m.guardDecisions, m.rateLimited, m.authResults)
	return m
}

// middleware records request counts and latency. The route label is the
// matched mux pattern so that ids in paths do not explode cardinality.
func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec, ok := w.(*statusRecorder)
		if !ok {
			rec = &statusRecorder{ResponseWriter: w}
		}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(rec.code()),
		}
		m.requestTotal.With(labels).Inc()
		m.requestLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}
