package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
	"github.com/noah-isme/enrollment-finance-api/pkg/storage"
)

func newTestDocuments(t *testing.T) *DocumentService {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	docs := storage.NewDocuments(local, storage.NewSignedURLSigner("secret", 0), "http://files.test/documents")
	return NewDocumentService(docs, DocumentServiceConfig{MaxFileSize: 1024}, nil)
}

func TestDocumentServiceSaveAndOpen(t *testing.T) {
	svc := newTestDocuments(t)
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n%%EOF\n")

	doc, err := svc.Save(context.Background(), DocumentFolderVouchers, "enr-1", DocumentUpload{
		Filename: "boleta.pdf",
		Size:     int64(len(pdf)),
		Content:  bytes.NewReader(pdf),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, strings.HasPrefix(doc.Key, "vouchers/enr-1/"))
	assert.True(t, strings.HasSuffix(doc.Key, ".pdf"))
	require.True(t, strings.HasPrefix(doc.URL, "http://files.test/documents/"))

	token := strings.TrimPrefix(doc.URL, "http://files.test/documents/")
	obj, err := svc.Open(context.Background(), token)
	require.NoError(t, err)
	defer obj.Body.Close()
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, pdf, body)
}

func TestDocumentServiceRejectsDisallowedType(t *testing.T) {
	svc := newTestDocuments(t)
	text := []byte("just some notes")

	_, err := svc.Save(context.Background(), DocumentFolderRequisitos, "enr-1", DocumentUpload{
		Size:    int64(len(text)),
		Content: bytes.NewReader(text),
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestDocumentServiceRejectsOversizedAndEmpty(t *testing.T) {
	svc := newTestDocuments(t)

	_, err := svc.Save(context.Background(), DocumentFolderVouchers, "enr-1", DocumentUpload{Size: 4096, Content: bytes.NewReader(make([]byte, 4096))})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Save(context.Background(), DocumentFolderVouchers, "enr-1", DocumentUpload{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestDocumentServiceOpenForgedToken(t *testing.T) {
	svc := newTestDocuments(t)

	_, err := svc.Open(context.Background(), "Zm9v.0.deadbeef")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
}
