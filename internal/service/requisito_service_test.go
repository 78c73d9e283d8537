package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

func TestRequisitoServiceReviewCycle(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")
	ctx := context.Background()

	uploaded, err := f.requisitos.Upload(ctx, studentActor, enrollment.ID, 0, dto.UploadRequisitoRequest{DocumentURL: "https://files.example/dpi.jpg"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoEnProceso, uploaded.Status)

	rejected, err := f.requisitos.Reject(ctx, adminActor, enrollment.ID, 0, dto.RejectRequisitoRequest{Reason: "blurry"})
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoRechazado, rejected.Status)
	assert.Equal(t, "blurry", *rejected.RejectionReason)

	reuploaded, err := f.requisitos.Upload(ctx, studentActor, enrollment.ID, 0, dto.UploadRequisitoRequest{DocumentURL: "https://files.example/dpi-2.jpg"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoEnProceso, reuploaded.Status)
	assert.Nil(t, reuploaded.RejectionReason)

	approved, err := f.requisitos.Approve(ctx, adminActor, enrollment.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoAprobado, approved.Status)
	assert.Nil(t, approved.RejectionReason)
	assert.Equal(t, "admin-1", *approved.ReviewedBy)

	list, err := f.requisitos.List(ctx, studentActor, enrollment.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.RequisitoAprobado, list[0].Status)
	assert.Equal(t, models.RequisitoPendiente, list[1].Status)

	summary, err := f.enrollments.RequisitoSummary(ctx, adminActor, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoSummary{Total: 2, Pendientes: 1, Aprobados: 1}, *summary)

	assert.Equal(t, []string{
		models.AuditActionRequisitoUpload,
		models.AuditActionRequisitoReject,
		models.AuditActionRequisitoUpload,
		models.AuditActionRequisitoApprove,
	}, f.ledger.auditActions())
}

func TestRequisitoServiceAuthorization(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")
	ctx := context.Background()
	doc := dto.UploadRequisitoRequest{DocumentURL: "https://files.example/dpi.jpg"}

	_, err := f.requisitos.Upload(ctx, otherStudent, enrollment.ID, 0, doc, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrOwnershipViolation.Code))

	_, err = f.requisitos.Upload(ctx, studentActor, enrollment.ID, 0, doc, nil)
	require.NoError(t, err)

	_, err = f.requisitos.Approve(ctx, studentActor, enrollment.ID, 0)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
	_, err = f.requisitos.Reject(ctx, studentActor, enrollment.ID, 0, dto.RejectRequisitoRequest{Reason: "x"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	_, err = f.requisitos.Approve(ctx, adminActor, enrollment.ID, 0)
	require.NoError(t, err)
	_, err = f.requisitos.Upload(ctx, studentActor, enrollment.ID, 0, doc, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState.Code))

	replaced, err := f.requisitos.Upload(ctx, adminActor, enrollment.ID, 0, doc, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoEnProceso, replaced.Status)
}

func TestRequisitoServiceValidation(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")
	ctx := context.Background()

	_, err := f.requisitos.Upload(ctx, studentActor, enrollment.ID, 5, dto.UploadRequisitoRequest{DocumentURL: "https://files.example/x.jpg"}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.requisitos.Upload(ctx, studentActor, enrollment.ID, 0, dto.UploadRequisitoRequest{}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.requisitos.Reject(ctx, adminActor, enrollment.ID, 0, dto.RejectRequisitoRequest{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.requisitos.Approve(ctx, adminActor, enrollment.ID, 1)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState.Code))

	_, err = f.requisitos.Approve(ctx, adminActor, "missing", 0)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	assert.Empty(t, f.ledger.auditActions())
}

func TestRequisitoServiceStoresUploadedFile(t *testing.T) {
	f := newFinanceFixture()
	docs := &recordingDocuments{}
	f.requisitos = NewRequisitoService(f.ledger, f.ledger, docs, nil)
	enrollment := f.enroll(t, "stu-1")
	file := &DocumentUpload{Filename: "titulo.pdf", Size: 4, Content: bytes.NewReader([]byte("%PDF"))}

	r, err := f.requisitos.Upload(context.Background(), studentActor, enrollment.ID, 1, dto.UploadRequisitoRequest{}, file)
	require.NoError(t, err)
	require.NotNil(t, r.DocumentURL)
	assert.Equal(t, "http://files.test/requisitos/stu-1/titulo.pdf", *r.DocumentURL)

	_, err = f.enrollments.ChangeStatus(context.Background(), adminActor, enrollment.ID, dto.ChangeEnrollmentStatusRequest{Status: models.EnrollmentStatusCancelled})
	require.NoError(t, err)
	_, err = f.requisitos.Upload(context.Background(), studentActor, enrollment.ID, 0, dto.UploadRequisitoRequest{}, file)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState.Code))
	assert.Len(t, docs.saved, 1)
}
