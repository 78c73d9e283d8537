package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/internal/service"
	"github.com/noah-isme/enrollment-finance-api/pkg/response"
)

type exportService interface {
	Statement(ctx context.Context, actor models.Actor, enrollmentID, format string) (*service.ExportFile, error)
}

// ExportHandler streams generated account statements.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Statement godoc
// @Summary Download account statement
// @Tags Enrollments
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Enrollment ID"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Router /enrollments/{id}/statement/export [get]
func (h *ExportHandler) Statement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.exports.Statement(c.Request.Context(), actor, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
