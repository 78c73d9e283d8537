package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "payments/enr-1/voucher.pdf", "application/pdf", strings.NewReader("%PDF-1.4"), 8))

	obj, err := store.Get(ctx, "payments/enr-1/voucher.pdf")
	require.NoError(t, err)
	defer obj.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(body))
	require.Equal(t, "application/pdf", obj.ContentType)
	require.Equal(t, int64(8), obj.Size)

	require.NoError(t, store.Delete(ctx, "payments/enr-1/voucher.pdf"))
	_, err = store.Get(ctx, "payments/enr-1/voucher.pdf")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	err = store.Put(context.Background(), "../escape.txt", "text/plain", strings.NewReader("x"), 1)
	require.Error(t, err)
}

func TestDocumentsStoreAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	docs := NewDocuments(store, NewSignedURLSigner("secret", time.Hour), "http://api.local/documents")
	ctx := context.Background()

	url, err := docs.Store(ctx, "requisitos/enr-1/0/cv.pdf", "application/pdf", strings.NewReader("cv"), 2)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://api.local/documents/"))

	obj, err := docs.Open(ctx, strings.TrimPrefix(url, "http://api.local/documents/"))
	require.NoError(t, err)
	defer obj.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.Equal(t, "cv", string(body))
}
