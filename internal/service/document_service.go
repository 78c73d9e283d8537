package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
	"github.com/noah-isme/enrollment-finance-api/pkg/storage"
)

type documentStore interface {
	Store(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Open(ctx context.Context, token string) (*storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// Document folders.
const (
	DocumentFolderVouchers   = "vouchers"
	DocumentFolderRequisitos = "requisitos"
	DocumentFolderSettings   = "settings"
)

// DocumentUpload carries an uploaded file.
type DocumentUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// StoredDocument describes a persisted upload.
type StoredDocument struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// DocumentServiceConfig holds upload validation parameters.
type DocumentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// DocumentService validates uploads and stores them behind signed URLs.
type DocumentService struct {
	store   documentStore
	logger  *zap.Logger
	cfg     DocumentServiceConfig
	mimeSet map[string]struct{}
	now     func() time.Time
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(store documentStore, cfg DocumentServiceConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png", "image/webp"}
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &DocumentService{store: store, logger: logger, cfg: cfg, mimeSet: mimeSet, now: time.Now}
}

// Save validates and stores an upload under folder/owner.
func (s *DocumentService) Save(ctx context.Context, folder, owner string, upload DocumentUpload) (*StoredDocument, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	detected, err := mimetype.DetectReader(upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	contentType := strings.ToLower(strings.SplitN(detected.String(), ";", 2)[0])
	if _, allowed := s.mimeSet[contentType]; !allowed {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "file type not allowed"),
			map[string]interface{}{"content_type": contentType},
		)
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}

	key := s.objectKey(folder, owner, detected.Extension())
	url, err := s.store.Store(ctx, key, contentType, upload.Content, upload.Size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	return &StoredDocument{Key: key, URL: url, ContentType: contentType, Size: upload.Size}, nil
}

// Discard removes a stored document whose owning write failed.
func (s *DocumentService) Discard(ctx context.Context, doc *StoredDocument) {
	if doc == nil {
		return
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), doc.Key); err != nil {
		s.logger.Warn("failed to discard document", zap.String("key", doc.Key), zap.Error(err))
	}
}

// Open resolves a signed document token.
func (s *DocumentService) Open(ctx context.Context, token string) (*storage.Object, error) {
	obj, err := s.store.Open(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		if errors.Is(err, storage.ErrInvalidToken) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired document link")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return obj, nil
}

func (s *DocumentService) objectKey(folder, owner, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	owner = sanitizeKeySegment(owner)
	if owner == "" {
		owner = "shared"
	}
	return path.Join(folder, owner, fmt.Sprintf("%d_%s%s", s.now().UTC().Unix(), randomSuffix(), ext))
}

func sanitizeKeySegment(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func randomSuffix() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
