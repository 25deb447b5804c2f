package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling
// engine: HTTP traffic plus booking outcomes, conflicts, and lock contention.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	conflictsTotal  *prometheus.CounterVec
	transitionTotal *prometheus.CounterVec
	lockContention  prometheus.Counter
	slotDuration    prometheus.Observer
	expansionsTotal *prometheus.CounterVec
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

	bookingsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_total",
		Help: "Booking attempts by outcome",
	}, []string{"outcome"})

	conflictsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Detected booking conflicts by kind",
	}, []string{"kind"})

	transitionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_transitions_total",
		Help: "Session lifecycle transitions by target status",
	}, []string{"status"})

	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_lock_contention_total",
		Help: "Booking attempts that lost the per-teacher lock",
	})

	slotDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slot_computation_seconds",
		Help:    "Duration of slot availability computations",
		Buckets: prometheus.DefBuckets,
	})

	expansionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "template_expansions_total",
		Help: "Sessions produced or skipped during template expansion",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, bookingsTotal, conflictsTotal, transitionTotal, lockContention, slotDuration, expansionsTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		bookingsTotal:   bookingsTotal,
		conflictsTotal:  conflictsTotal,
		transitionTotal: transitionTotal,
		lockContention:  lockContention,
		slotDuration:    slotDuration,
		expansionsTotal: expansionsTotal,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordBooking counts a booking attempt by outcome (created, conflict,
// policy_violation, lock_contention).
func (m *MetricsService) RecordBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	if outcome == "lock_contention" {
		m.lockContention.Inc()
	}
}

// RecordConflict counts a detected conflict by kind.
func (m *MetricsService) RecordConflict(kind string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(kind).Inc()
}

// RecordTransition counts a lifecycle transition by target status.
func (m *MetricsService) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.transitionTotal.WithLabelValues(status).Inc()
}

// ObserveSlotComputation records the duration of one slot calculation.
func (m *MetricsService) ObserveSlotComputation(duration time.Duration) {
	if m == nil {
		return
	}
	m.slotDuration.Observe(duration.Seconds())
}

// RecordExpansion counts template expansion results (created, skipped,
// conflict).
func (m *MetricsService) RecordExpansion(result string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.expansionsTotal.WithLabelValues(result).Add(float64(count))
}
