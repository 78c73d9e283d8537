package service

import (
	"database/sql"
	"errors"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

func requireAdmin(actor models.Actor) error {
	switch actor.Kind {
	case models.ActorAdmin:
		return nil
	case models.ActorStudent:
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	default:
		return appErrors.ErrUnauthorized
	}
}

// authorizeStudentResource lets admins through and students only onto their own records.
func authorizeStudentResource(actor models.Actor, studentID string) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.Kind != models.ActorStudent || actor.ID == "":
		return appErrors.ErrUnauthorized
	case actor.Owns(studentID):
		return nil
	default:
		return appErrors.ErrOwnershipViolation
	}
}

// loadError maps repository read errors to API errors.
func loadError(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+resource)
}

// lockError maps errors returned from WithEnrollmentLock. Errors already typed by the
// callback pass through unchanged.
func lockError(err error, action string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+action)
}
