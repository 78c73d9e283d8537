package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/middleware"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
	"github.com/noah-isme/enrollment-finance-api/pkg/response"
)

// actorFromContext returns the authenticated actor or writes a 401 and reports false.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func pageParams(c *gin.Context) (int, int) {
	page, size := 1, 20
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		size = v
	}
	return page, size
}

func boolQuery(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "requisito index must be a number"))
		return 0, false
	}
	return index, true
}

// formUpload opens the multipart file under field. A missing file yields nil, nil; the
// returned closer must be called once the upload has been consumed.
func formUpload(c *gin.Context, field string) (*service.DocumentUpload, io.Closer, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form")
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	return uploadFrom(header, file), file, nil
}

func uploadFrom(header *multipart.FileHeader, file multipart.File) *service.DocumentUpload {
	return &service.DocumentUpload{Filename: header.Filename, Size: header.Size, Content: file}
}
