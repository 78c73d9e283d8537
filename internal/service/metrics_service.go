package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. A nil *MetricsService is a no-op.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Histogram
	cacheWrite         prometheus.Histogram
	cacheLookups       *prometheus.CounterVec
	enrollmentsCreated *prometheus.CounterVec
	paymentsSubmitted  *prometheus.CounterVec
	paymentReviews     *prometheus.CounterVec
	ledgerAdjustments  *prometheus.CounterVec
	approvedAmount     prometheus.Counter
	auditDropped       prometheus.Counter
}

// NewMetricsService registers the HTTP, cache and ledger collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		enrollmentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollments_created_total",
			Help: "Enrollments created by student type",
		}, []string{"student_type"}),
		paymentsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_submitted_total",
			Help: "Payment vouchers submitted by concept kind",
		}, []string{"kind"}),
		paymentReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_reviews_total",
			Help: "Payment review decisions",
		}, []string{"decision"}),
		ledgerAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_adjustments_total",
			Help: "Compensating ledger entries by kind",
		}, []string{"kind"}),
		approvedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payments_approved_amount_total",
			Help: "Sum of approved payment amounts",
		}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_entries_dropped_total",
			Help: "Audit entries that could not be queued",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.enrollmentsCreated, m.paymentsSubmitted, m.paymentReviews, m.ledgerAdjustments,
		m.approvedAmount, m.auditDropped, goroutines)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// EnrollmentCreated counts a new enrollment.
func (m *MetricsService) EnrollmentCreated(studentType string) {
	if m == nil {
		return
	}
	m.enrollmentsCreated.WithLabelValues(studentType).Inc()
}

// PaymentSubmitted counts a voucher submission. kind is "down_payment" or "installment".
func (m *MetricsService) PaymentSubmitted(kind string) {
	if m == nil {
		return
	}
	m.paymentsSubmitted.WithLabelValues(kind).Inc()
}

// PaymentReviewed counts an approval or rejection and accumulates approved amounts.
func (m *MetricsService) PaymentReviewed(decision string, amount float64) {
	if m == nil {
		return
	}
	m.paymentReviews.WithLabelValues(decision).Inc()
	if amount > 0 {
		m.approvedAmount.Add(amount)
	}
}

// LedgerAdjusted counts a compensating entry.
func (m *MetricsService) LedgerAdjusted(kind string) {
	if m == nil {
		return
	}
	m.ledgerAdjustments.WithLabelValues(kind).Inc()
}

// AuditDropped counts an audit entry that could not be dispatched.
func (m *MetricsService) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
