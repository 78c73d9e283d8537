package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
	"github.com/noah-isme/enrollment-finance-api/pkg/storage"
)

type documentOpenerStub map[string]*storage.Object

func (s documentOpenerStub) Open(ctx context.Context, token string) (*storage.Object, error) {
	if obj, ok := s[token]; ok {
		return obj, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired document link")
}

func TestDocumentHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewDocumentHandler(documentOpenerStub{
		"local":  {Body: io.NopCloser(strings.NewReader("voucher")), ContentType: "image/png", Size: 7},
		"remote": {RedirectURL: "https://bucket.example.com/vouchers/a.png?sig=1"},
	})
	router := gin.New()
	router.GET("/documents/:token", h.Download)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/local", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "voucher", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/remote", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://bucket.example.com/vouchers/a.png?sig=1", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/forged", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
