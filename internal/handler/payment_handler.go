package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
	"github.com/noah-isme/enrollment-finance-api/pkg/response"
)

type paymentService interface {
	Submit(ctx context.Context, actor models.Actor, enrollmentID string, req dto.SubmitPaymentRequest, voucher *service.DocumentUpload) (*models.Payment, error)
	Approve(ctx context.Context, actor models.Actor, paymentID string) (*models.Payment, error)
	Reject(ctx context.Context, actor models.Actor, paymentID string, req dto.RejectPaymentRequest) (*models.Payment, error)
	Reverse(ctx context.Context, actor models.Actor, paymentID string, req dto.ReversePaymentRequest) (*models.LedgerAdjustment, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Payment, error)
	List(ctx context.Context, actor models.Actor, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error)
	ListForEnrollment(ctx context.Context, actor models.Actor, enrollmentID string) ([]models.Payment, error)
}

// PaymentHandler exposes voucher submission and the approval workflow.
type PaymentHandler struct {
	payments paymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Submit godoc
// @Summary Submit a payment voucher
// @Description The amount and concept are resolved by the server from the enrollment ledger.
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param transaction_number formData string true "Bank transaction number"
// @Param concept formData string false "Expected concept"
// @Param voucher formData file false "Voucher image or PDF"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/payments [post]
func (h *PaymentHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitPaymentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment form"))
		return
	}
	voucher, closer, err := formUpload(c, "voucher")
	if err != nil {
		response.Error(c, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	payment, err := h.payments.Submit(c.Request.Context(), actor, c.Param("id"), req, voucher)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// ListForEnrollment godoc
// @Summary Payment history of an enrollment
// @Tags Payments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/payments [get]
func (h *PaymentHandler) ListForEnrollment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payments, err := h.payments.ListForEnrollment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param enrollmentId query string false "Filter by enrollment"
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.PaymentFilter{
		EnrollmentID: c.Query("enrollmentId"),
		StudentID:    c.Query("studentId"),
		CourseID:     c.Query("courseId"),
		Status:       models.PaymentStatus(strings.ToUpper(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)
	payments, pagination, err := h.payments.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payment, err := h.payments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Approve godoc
// @Summary Approve a pending payment
// @Description Applies the amount to the enrollment ledger atomically.
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/approve [post]
func (h *PaymentHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payment, err := h.payments.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Reject godoc
// @Summary Reject a pending payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.RejectPaymentRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/reject [post]
func (h *PaymentHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RejectPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.Reject(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Reverse godoc
// @Summary Reverse an approved payment
// @Description Records a compensating ledger entry; the payment row is kept.
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.ReversePaymentRequest true "Reason"
// @Success 201 {object} response.Envelope
// @Router /payments/{id}/reverse [post]
func (h *PaymentHandler) Reverse(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReversePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	adjustment, err := h.payments.Reverse(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, adjustment)
}
