package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	leadsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_delivered_total",
			Help: "Total number of leads successfully delivered to the CRM",
		},
		[]string{"location"},
	)

	deliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_delivery_failures_total",
			Help: "Total number of failed delivery attempts by reason",
		},
		[]string{"reason"},
	)

	deadLetters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_dead_letters_total",
			Help: "Total number of leads that exhausted all retries",
		},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monitor_cycle_duration_seconds",
			Help:    "Duration of one monitor cycle in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	pendingRetries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lead_pending_retries",
			Help: "Current number of pending retry-queue entries",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

func RecordLeadDelivered(location string) {
	leadsDelivered.WithLabelValues(location).Inc()
}

func RecordDeliveryFailure(reason string) {
	deliveryFailures.WithLabelValues(reason).Inc()
}

func RecordDeadLetter() {
	deadLetters.Inc()
}

func RecordCycle(d time.Duration) {
	cycleDuration.Observe(d.Seconds())
}

func SetPendingRetries(n int) {
	pendingRetries.Set(float64(n))
}
