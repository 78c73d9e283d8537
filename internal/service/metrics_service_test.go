package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.PaymentSubmitted("installment")
	m.PaymentReviewed("approved", 500)
	m.PaymentReviewed("rejected", 0)
	m.LedgerAdjusted("REVERSAL")
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.paymentsSubmitted.WithLabelValues("installment")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.paymentReviews.WithLabelValues("approved")))
	assert.Equal(t, float64(500), testutil.ToFloat64(m.approvedAmount))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_reviews_total")
}

func TestNilMetricsServiceIsNoop(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.PaymentSubmitted("installment")
		m.PaymentReviewed("approved", 10)
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
		m.AuditDropped()
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
