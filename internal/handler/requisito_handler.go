package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
	"github.com/noah-isme/enrollment-finance-api/pkg/response"
)

type requisitoService interface {
	List(ctx context.Context, actor models.Actor, enrollmentID string) (models.Requisitos, error)
	Upload(ctx context.Context, actor models.Actor, enrollmentID string, index int, req dto.UploadRequisitoRequest, file *service.DocumentUpload) (*models.Requisito, error)
	Approve(ctx context.Context, actor models.Actor, enrollmentID string, index int) (*models.Requisito, error)
	Reject(ctx context.Context, actor models.Actor, enrollmentID string, index int, req dto.RejectRequisitoRequest) (*models.Requisito, error)
}

// RequisitoHandler exposes the admission document checklist of an enrollment.
type RequisitoHandler struct {
	requisitos requisitoService
}

// NewRequisitoHandler constructs RequisitoHandler.
func NewRequisitoHandler(requisitos requisitoService) *RequisitoHandler {
	return &RequisitoHandler{requisitos: requisitos}
}

// List godoc
// @Summary List requisitos
// @Tags Requisitos
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/requisitos [get]
func (h *RequisitoHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	list, err := h.requisitos.List(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Upload godoc
// @Summary Upload a requisito document
// @Description Accepts either a file or a hosted document_url.
// @Tags Requisitos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param index path int true "Requisito index"
// @Param file formData file false "Document"
// @Param document_url formData string false "Hosted document URL"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/requisitos/{index} [put]
func (h *RequisitoHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req dto.UploadRequisitoRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid requisito form"))
		return
	}
	file, closer, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	item, err := h.requisitos.Upload(c.Request.Context(), actor, c.Param("id"), index, req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Approve godoc
// @Summary Approve a requisito
// @Tags Requisitos
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param index path int true "Requisito index"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/requisitos/{index}/approve [post]
func (h *RequisitoHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		return
	}
	item, err := h.requisitos.Approve(c.Request.Context(), actor, c.Param("id"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Reject godoc
// @Summary Reject a requisito
// @Tags Requisitos
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param index path int true "Requisito index"
// @Param payload body dto.RejectRequisitoRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/requisitos/{index}/reject [post]
func (h *RequisitoHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req dto.RejectRequisitoRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.requisitos.Reject(c.Request.Context(), actor, c.Param("id"), index, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
