package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/pkg/response"
	"github.com/noah-isme/enrollment-finance-api/pkg/storage"
)

type documentOpener interface {
	Open(ctx context.Context, token string) (*storage.Object, error)
}

// DocumentHandler serves vouchers and requisito files behind signed links.
type DocumentHandler struct {
	documents documentOpener
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents documentOpener) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Download godoc
// @Summary Download a stored document
// @Description The token is the signed link returned with the payment or requisito.
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed document token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /documents/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	obj, err := h.documents.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if obj.RedirectURL != "" {
		c.Redirect(http.StatusFound, obj.RedirectURL)
		return
	}
	defer obj.Body.Close()

	size := obj.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, obj.ContentType, obj.Body, map[string]string{
		"Cache-Control": "private, max-age=300",
	})
}
