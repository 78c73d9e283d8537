package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/internal/repository"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

// RequisitoService persists requisito transitions under the enrollment lock.
type RequisitoService struct {
	enrollments enrollmentReader
	store       enrollmentLocker
	documents   documentSaver
	now         func() time.Time
	logger      *zap.Logger
}

// NewRequisitoService constructs RequisitoService. documents may be nil when only hosted
// document URLs are accepted.
func NewRequisitoService(enrollments enrollmentReader, store enrollmentLocker, documents documentSaver, logger *zap.Logger) *RequisitoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequisitoService{enrollments: enrollments, store: store, documents: documents, now: time.Now, logger: logger}
}

// List returns the requisitos of an enrollment in template order.
func (s *RequisitoService) List(ctx context.Context, actor models.Actor, enrollmentID string) (models.Requisitos, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, loadError(err, "enrollment")
	}
	if err := authorizeStudentResource(actor, enrollment.StudentID); err != nil {
		return nil, err
	}
	return enrollment.Requisitos, nil
}

// Upload attaches a document to requisito index, either a stored file or a hosted URL.
// Students may not replace a document that was already approved.
func (s *RequisitoService) Upload(ctx context.Context, actor models.Actor, enrollmentID string, index int, req dto.UploadRequisitoRequest, file *DocumentUpload) (*models.Requisito, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, loadError(err, "enrollment")
	}
	if err := authorizeStudentResource(actor, enrollment.StudentID); err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment is cancelled")
	}
	if err := checkRequisitoIndex(enrollment.Requisitos, index); err != nil {
		return nil, err
	}

	url := strings.TrimSpace(req.DocumentURL)
	var doc *StoredDocument
	if file != nil {
		if s.documents == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "document uploads are not enabled")
		}
		doc, err = s.documents.Save(ctx, DocumentFolderRequisitos, enrollment.StudentID, *file)
		if err != nil {
			return nil, err
		}
		url = doc.URL
	}
	if url == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document file or url is required")
	}

	var updated models.Requisito
	err = s.store.WithEnrollmentLock(ctx, enrollmentID, func(tx repository.EnrollmentTx) error {
		locked := tx.Enrollment()
		if locked.Status == models.EnrollmentStatusCancelled {
			return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is cancelled")
		}
		if err := checkRequisitoIndex(locked.Requisitos, index); err != nil {
			return err
		}
		if !actor.IsAdmin() && locked.Requisitos[index].Status == models.RequisitoAprobado {
			return appErrors.Clone(appErrors.ErrInvalidState, "requisito is already approved")
		}
		if err := UploadRequisito(locked.Requisitos, index, url, s.now().UTC()); err != nil {
			return err
		}
		updated = locked.Requisitos[index]
		return s.persist(ctx, tx, actor, models.AuditActionRequisitoUpload, index)
	})
	if err != nil {
		if s.documents != nil {
			s.documents.Discard(ctx, doc)
		}
		return nil, lockError(err, "upload requisito")
	}
	return &updated, nil
}

// Approve accepts the document at index.
func (s *RequisitoService) Approve(ctx context.Context, actor models.Actor, enrollmentID string, index int) (*models.Requisito, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var updated models.Requisito
	err := s.store.WithEnrollmentLock(ctx, enrollmentID, func(tx repository.EnrollmentTx) error {
		enrollment := tx.Enrollment()
		if err := ApproveRequisito(enrollment.Requisitos, index, actor.ID, s.now().UTC()); err != nil {
			return err
		}
		updated = enrollment.Requisitos[index]
		return s.persist(ctx, tx, actor, models.AuditActionRequisitoApprove, index)
	})
	if err != nil {
		return nil, lockError(err, "approve requisito")
	}
	return &updated, nil
}

// Reject returns the document at index to the student with a reason.
func (s *RequisitoService) Reject(ctx context.Context, actor models.Actor, enrollmentID string, index int, req dto.RejectRequisitoRequest) (*models.Requisito, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	var updated models.Requisito
	err := s.store.WithEnrollmentLock(ctx, enrollmentID, func(tx repository.EnrollmentTx) error {
		enrollment := tx.Enrollment()
		if err := RejectRequisito(enrollment.Requisitos, index, actor.ID, req.Reason, s.now().UTC()); err != nil {
			return err
		}
		updated = enrollment.Requisitos[index]
		return s.persist(ctx, tx, actor, models.AuditActionRequisitoReject, index)
	})
	if err != nil {
		return nil, lockError(err, "reject requisito")
	}
	return &updated, nil
}

func (s *RequisitoService) persist(ctx context.Context, tx repository.EnrollmentTx, actor models.Actor, action string, index int) error {
	enrollment := tx.Enrollment()
	if err := tx.UpdateEnrollment(ctx); err != nil {
		return err
	}
	return tx.InsertAuditLog(ctx, newAuditLog(ctx, AuditEntry{
		Actor:      actor,
		Action:     action,
		Resource:   "enrollment",
		ResourceID: enrollment.ID,
		NewValues:  map[string]interface{}{"index": index, "requisito": enrollment.Requisitos[index]},
	}, s.logger))
}
