package handler

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-finance-api/internal/middleware"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

var (
	testAdmin   = models.Actor{Kind: models.ActorAdmin, ID: "admin-1", Role: models.RoleAdmin}
	testStudent = models.Actor{Kind: models.ActorStudent, ID: "stu-1", Role: models.RoleStudent}
)

// withActor builds a router whose first middleware injects actor, standing in for JWT.
func withActor(actor *models.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.ContextActorKey, *actor)
		}
		c.Next()
	})
	return router
}

// multipartBody encodes fields and, when field is set, one file part.
func multipartBody(t *testing.T, field, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}
