package storage

import (
	"context"
	"fmt"
	"io"
)

// Documents stores uploads in an ObjectStore and hands out opaque, signed URLs
// that the download endpoint resolves back to storage keys.
type Documents struct {
	store   ObjectStore
	signer  *SignedURLSigner
	baseURL string
}

// NewDocuments wires a backend with the URL signer.
func NewDocuments(store ObjectStore, signer *SignedURLSigner, baseURL string) *Documents {
	return &Documents{store: store, signer: signer, baseURL: baseURL}
}

// Store writes the document and returns its public URL.
func (d *Documents) Store(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if err := d.store.Put(ctx, key, contentType, body, size); err != nil {
		return "", err
	}
	token, _, err := d.signer.Generate(key)
	if err != nil {
		_ = d.store.Delete(ctx, key)
		return "", fmt.Errorf("sign document url: %w", err)
	}
	return d.baseURL + "/" + token, nil
}

// Open resolves a token produced by Store.
func (d *Documents) Open(ctx context.Context, token string) (*Object, error) {
	key, err := d.signer.Parse(token)
	if err != nil {
		return nil, err
	}
	return d.store.Get(ctx, key)
}

// Delete removes the object behind key.
func (d *Documents) Delete(ctx context.Context, key string) error {
	return d.store.Delete(ctx, key)
}
