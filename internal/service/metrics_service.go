package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submissionTotal *prometheus.CounterVec
	moderationTotal *prometheus.CounterVec
	rateFetchTotal  *prometheus.CounterVec
	fraudFlagged    prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salary_submissions_total",
		Help: "Salary submissions received, labelled by outcome",
	}, []string{"outcome"})

	moderationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_actions_total",
		Help: "Moderation transitions applied",
	}, []string{"action"})

	rateFetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_rate_fetches_total",
		Help: "Remote exchange rate fetches, labelled by result",
	}, []string{"result"})

	fraudFlagged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fraud_flagged_submissions_total",
		Help: "Submissions carrying at least one fraud signal",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissionTotal, moderationTotal, rateFetchTotal, fraudFlagged, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submissionTotal: submissionTotal,
		moderationTotal: moderationTotal,
		rateFetchTotal:  rateFetchTotal,
		fraudFlagged:    fraudFlagged,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records per-route latency and volume.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordSubmission counts an intake attempt by outcome (accepted/rejected).
func (m *MetricsService) RecordSubmission(outcome string, flagged bool) {
	if m == nil {
		return
	}
	m.submissionTotal.WithLabelValues(outcome).Inc()
	if flagged {
		m.fraudFlagged.Inc()
	}
}

// RecordModeration counts an applied moderation transition.
func (m *MetricsService) RecordModeration(action string) {
	if m == nil {
		return
	}
	m.moderationTotal.WithLabelValues(action).Inc()
}

// RecordRateFetch counts a remote exchange rate fetch by result.
func (m *MetricsService) RecordRateFetch(result string) {
	if m == nil {
		return
	}
	m.rateFetchTotal.WithLabelValues(result).Inc()
}
