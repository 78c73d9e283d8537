package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateEnrollmentRequest) (*models.EnrollmentDetail, error)
	NextObligation(ctx context.Context, actor models.Actor, id string) (*dto.NextObligationResponse, error)
	Schedule(ctx context.Context, actor models.Actor, id string) ([]models.ScheduledObligation, error)
	RequisitoSummary(ctx context.Context, actor models.Actor, id string) (*models.RequisitoSummary, error)
	PaymentSummary(ctx context.Context, actor models.Actor, id string) (*models.PaymentSummary, error)
	ListAdjustments(ctx context.Context, actor models.Actor, id string) ([]models.LedgerAdjustment, error)
	Statement(ctx context.Context, actor models.Actor, id string) (*dto.EnrollmentStatement, error)
	UpdateStudentDiscount(ctx context.Context, actor models.Actor, id string, req dto.UpdateStudentDiscountRequest) (*models.EnrollmentDetail, error)
	ChangeStatus(ctx context.Context, actor models.Actor, id string, req dto.ChangeEnrollmentStatusRequest) (*models.EnrollmentDetail, error)
	SetFinalGrade(ctx context.Context, actor models.Actor, id string, req dto.SetFinalGradeRequest) (*models.EnrollmentDetail, error)
	AdjustBalance(ctx context.Context, actor models.Actor, id string, req dto.AdjustBalanceRequest) (*models.LedgerAdjustment, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Description Students only see their own enrollments.
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	filter.Status = models.EnrollmentStatus(strings.ToUpper(c.Query("status")))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// ListForStudent godoc
// @Summary List enrollments of one student
// @Tags Enrollments
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/enrollments [get]
func (h *EnrollmentHandler) ListForStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{StudentID: c.Param("studentId")}
	filter.Page, filter.PageSize = pageParams(c)
	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Create godoc
// @Summary Enroll student in a course
// @Description Freezes the course price table into the enrollment.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// NextObligation godoc
// @Summary Next payable obligation
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/next-obligation [get]
func (h *EnrollmentHandler) NextObligation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	next, err := h.enrollments.NextObligation(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, next, nil)
}

// Schedule godoc
// @Summary Payment plan with coverage
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/schedule [get]
func (h *EnrollmentHandler) Schedule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	schedule, err := h.enrollments.Schedule(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// RequisitoSummary godoc
// @Summary Requisito completion summary
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/requisitos/summary [get]
func (h *EnrollmentHandler) RequisitoSummary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.enrollments.RequisitoSummary(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// PaymentSummary godoc
// @Summary Payment history summary
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/payments/summary [get]
func (h *EnrollmentHandler) PaymentSummary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.enrollments.PaymentSummary(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Adjustments godoc
// @Summary Ledger adjustments
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/adjustments [get]
func (h *EnrollmentHandler) Adjustments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	adjustments, err := h.enrollments.ListAdjustments(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, adjustments, nil)
}

// Statement godoc
// @Summary Account statement
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/statement [get]
func (h *EnrollmentHandler) Statement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	statement, err := h.enrollments.Statement(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statement, nil)
}

// UpdateStudentDiscount godoc
// @Summary Replace the student discount
// @Description Reprices the frozen snapshot. Admin only.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpdateStudentDiscountRequest true "Discount payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/discount [put]
func (h *EnrollmentHandler) UpdateStudentDiscount(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateStudentDiscountRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.UpdateStudentDiscount(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ChangeStatus godoc
// @Summary Suspend, reactivate or cancel an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.ChangeEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [put]
func (h *EnrollmentHandler) ChangeStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ChangeEnrollmentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Status = models.EnrollmentStatus(strings.ToUpper(string(req.Status)))
	enrollment, err := h.enrollments.ChangeStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// SetFinalGrade godoc
// @Summary Record the final grade
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.SetFinalGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grade [put]
func (h *EnrollmentHandler) SetFinalGrade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SetFinalGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.SetFinalGrade(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// AdjustBalance godoc
// @Summary Grant a credit against the balance
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.AdjustBalanceRequest true "Credit payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/adjustments [post]
func (h *EnrollmentHandler) AdjustBalance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AdjustBalanceRequest
	if !bindJSON(c, &req) {
		return
	}
	adjustment, err := h.enrollments.AdjustBalance(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, adjustment)
}
