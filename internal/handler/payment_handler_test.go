package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type paymentServiceMock struct {
	submitReq     dto.SubmitPaymentRequest
	submitVoucher []byte
	submitActor   models.Actor
	submitErr     error
	rejectReq     dto.RejectPaymentRequest
	listFilter    models.PaymentFilter
}

func (m *paymentServiceMock) Submit(ctx context.Context, actor models.Actor, enrollmentID string, req dto.SubmitPaymentRequest, voucher *service.DocumentUpload) (*models.Payment, error) {
	m.submitActor = actor
	m.submitReq = req
	if voucher != nil {
		m.submitVoucher, _ = io.ReadAll(voucher.Content)
	}
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &models.Payment{ID: "pay-1", EnrollmentID: enrollmentID, TransactionNumber: req.TransactionNumber, Status: models.PaymentStatusPending}, nil
}

func (m *paymentServiceMock) Approve(ctx context.Context, actor models.Actor, paymentID string) (*models.Payment, error) {
	return &models.Payment{ID: paymentID, Status: models.PaymentStatusApproved}, nil
}

func (m *paymentServiceMock) Reject(ctx context.Context, actor models.Actor, paymentID string, req dto.RejectPaymentRequest) (*models.Payment, error) {
	m.rejectReq = req
	return &models.Payment{ID: paymentID, Status: models.PaymentStatusRejected}, nil
}

func (m *paymentServiceMock) Reverse(ctx context.Context, actor models.Actor, paymentID string, req dto.ReversePaymentRequest) (*models.LedgerAdjustment, error) {
	return &models.LedgerAdjustment{ID: "adj-1"}, nil
}

func (m *paymentServiceMock) Get(ctx context.Context, actor models.Actor, id string) (*models.Payment, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
}

func (m *paymentServiceMock) List(ctx context.Context, actor models.Actor, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	m.listFilter = filter
	return []models.Payment{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (m *paymentServiceMock) ListForEnrollment(ctx context.Context, actor models.Actor, enrollmentID string) ([]models.Payment, error) {
	return []models.Payment{}, nil
}

func paymentRouter(svc *paymentServiceMock, actor *models.Actor) *gin.Engine {
	h := NewPaymentHandler(svc)
	router := withActor(actor)
	router.POST("/enrollments/:id/payments", h.Submit)
	router.GET("/payments", h.List)
	router.GET("/payments/:id", h.Get)
	router.POST("/payments/:id/approve", h.Approve)
	router.POST("/payments/:id/reject", h.Reject)
	return router
}

func TestPaymentHandlerSubmitMultipart(t *testing.T) {
	svc := &paymentServiceMock{}
	router := paymentRouter(svc, &testStudent)

	body, contentType := multipartBody(t, "voucher", "voucher.png", []byte("png-bytes"), map[string]string{"transaction_number": "TX-77", "concept": "Matrícula"})
	req := httptest.NewRequest(http.MethodPost, "/enrollments/enr-1/payments", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "TX-77", svc.submitReq.TransactionNumber)
	assert.Equal(t, "Matrícula", svc.submitReq.Concept)
	assert.Equal(t, []byte("png-bytes"), svc.submitVoucher)
	assert.Equal(t, testStudent, svc.submitActor)

	var envelope struct {
		Data models.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "pay-1", envelope.Data.ID)
}

func TestPaymentHandlerSubmitMapsConflicts(t *testing.T) {
	svc := &paymentServiceMock{submitErr: appErrors.Clone(appErrors.ErrDuplicateObligation, "already covered")}
	router := paymentRouter(svc, &testStudent)

	body, contentType := multipartBody(t, "", "", nil, map[string]string{"transaction_number": "TX-1"})
	req := httptest.NewRequest(http.MethodPost, "/enrollments/enr-1/payments", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrDuplicateObligation.Code)
	assert.Nil(t, svc.submitVoucher)
}

func TestPaymentHandlerRequiresActor(t *testing.T) {
	router := paymentRouter(&paymentServiceMock{}, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments/pay-1/approve", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandlerRejectAndList(t *testing.T) {
	svc := &paymentServiceMock{}
	router := paymentRouter(svc, &testAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/pay-1/reject", bytes.NewBufferString(`{"reason":"monto ilegible"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "monto ilegible", svc.rejectReq.Reason)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments?status=pending&page=2&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PaymentStatusPending, svc.listFilter.Status)
	assert.Equal(t, 2, svc.listFilter.Page)
	assert.Equal(t, 5, svc.listFilter.PageSize)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
