package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

// UploadRequisito attaches a document at index and moves it to review.
// Any previous document, reviewer and rejection reason are replaced.
func UploadRequisito(list models.Requisitos, index int, documentURL string, at time.Time) error {
	if err := checkRequisitoIndex(list, index); err != nil {
		return err
	}
	if strings.TrimSpace(documentURL) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "document url is required")
	}
	r := &list[index]
	url := documentURL
	uploaded := at
	r.DocumentURL = &url
	r.UploadedAt = &uploaded
	r.Status = models.RequisitoEnProceso
	r.RejectionReason = nil
	r.ReviewedBy = nil
	r.ReviewedAt = nil
	return nil
}

// ApproveRequisito accepts a document that is in review or was previously rejected.
func ApproveRequisito(list models.Requisitos, index int, reviewer string, at time.Time) error {
	if err := checkRequisitoIndex(list, index); err != nil {
		return err
	}
	r := &list[index]
	if r.DocumentURL == nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "requisito has no document")
	}
	if r.Status != models.RequisitoEnProceso && r.Status != models.RequisitoRechazado {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("requisito is %s and cannot be approved", r.Status))
	}
	reviewed := at
	who := reviewer
	r.Status = models.RequisitoAprobado
	r.ReviewedBy = &who
	r.ReviewedAt = &reviewed
	r.RejectionReason = nil
	return nil
}

// RejectRequisito sends a document in review back to the student with a reason.
func RejectRequisito(list models.Requisitos, index int, reviewer, reason string, at time.Time) error {
	if err := checkRequisitoIndex(list, index); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	r := &list[index]
	if r.DocumentURL == nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "requisito has no document")
	}
	if r.Status != models.RequisitoEnProceso {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("requisito is %s and cannot be rejected", r.Status))
	}
	reviewed := at
	who := reviewer
	r.Status = models.RequisitoRechazado
	r.ReviewedBy = &who
	r.ReviewedAt = &reviewed
	r.RejectionReason = &reason
	return nil
}

// SummarizeRequisitos counts requisitos by state.
func SummarizeRequisitos(list models.Requisitos) models.RequisitoSummary {
	summary := models.RequisitoSummary{Total: len(list)}
	for _, r := range list {
		switch r.Status {
		case models.RequisitoEnProceso:
			summary.EnProceso++
		case models.RequisitoAprobado:
			summary.Aprobados++
		case models.RequisitoRechazado:
			summary.Rechazados++
		default:
			summary.Pendientes++
		}
	}
	return summary
}

func checkRequisitoIndex(list models.Requisitos, index int) error {
	if index < 0 || index >= len(list) {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("requisito index %d out of range", index)),
			map[string]interface{}{"index": index, "total": len(list)},
		)
	}
	return nil
}
