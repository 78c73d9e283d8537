package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/pkg/response"
)

type discountService interface {
	List(ctx context.Context, actor models.Actor, filter models.DiscountFilter) ([]models.Discount, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Discount, error)
	Create(ctx context.Context, actor models.Actor, req dto.DiscountRequest) (*models.Discount, error)
	SetActive(ctx context.Context, actor models.Actor, id string, req dto.DiscountActiveRequest) (*models.Discount, error)
	AddStudent(ctx context.Context, actor models.Actor, id string, req dto.DiscountStudentRequest) (*models.Discount, error)
	RemoveStudent(ctx context.Context, actor models.Actor, id, studentID string) (*models.Discount, error)
}

// DiscountHandler manages reusable discounts.
type DiscountHandler struct {
	discounts discountService
}

// NewDiscountHandler constructs DiscountHandler.
func NewDiscountHandler(discounts discountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// List godoc
// @Summary List discounts
// @Tags Discounts
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param active query bool false "Filter by active flag"
// @Success 200 {object} response.Envelope
// @Router /discounts [get]
func (h *DiscountHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.DiscountFilter{CourseID: c.Query("courseId"), Active: boolQuery(c, "active")}
	filter.Page, filter.PageSize = pageParams(c)
	discounts, pagination, err := h.discounts.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discounts, pagination)
}

// Get godoc
// @Summary Get discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 200 {object} response.Envelope
// @Router /discounts/{id} [get]
func (h *DiscountHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	discount, err := h.discounts.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// Create godoc
// @Summary Create discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param payload body dto.DiscountRequest true "Discount payload"
// @Success 201 {object} response.Envelope
// @Router /discounts [post]
func (h *DiscountHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.DiscountRequest
	if !bindJSON(c, &req) {
		return
	}
	discount, err := h.discounts.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, discount)
}

// SetActive godoc
// @Summary Enable or disable a discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param id path string true "Discount ID"
// @Param payload body dto.DiscountActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /discounts/{id}/active [put]
func (h *DiscountHandler) SetActive(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.DiscountActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	discount, err := h.discounts.SetActive(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// AddStudent godoc
// @Summary Allow a student to use a discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param id path string true "Discount ID"
// @Param payload body dto.DiscountStudentRequest true "Student"
// @Success 200 {object} response.Envelope
// @Router /discounts/{id}/students [post]
func (h *DiscountHandler) AddStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.DiscountStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	discount, err := h.discounts.AddStudent(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// RemoveStudent godoc
// @Summary Remove a student from a discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /discounts/{id}/students/{studentId} [delete]
func (h *DiscountHandler) RemoveStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	discount, err := h.discounts.RemoveStudent(c.Request.Context(), actor, c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}
