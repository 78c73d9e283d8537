package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

// CreateEnrollmentRequest enrolls a student in a course. DiscountID and DiscountPercentage
// describe the student level discount; the course level one comes from the course.
type CreateEnrollmentRequest struct {
	StudentID          string              `json:"student_id" validate:"required"`
	CourseID           string              `json:"course_id" validate:"required"`
	DiscountID         *string             `json:"discount_id"`
	DiscountPercentage decimal.NullDecimal `json:"discount_percentage"`
}

// UpdateStudentDiscountRequest replaces the student level discount of an enrollment.
type UpdateStudentDiscountRequest struct {
	DiscountID         *string             `json:"discount_id"`
	DiscountPercentage decimal.NullDecimal `json:"discount_percentage"`
}

// ChangeEnrollmentStatusRequest moves an enrollment between administrative states.
type ChangeEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED CANCELLED"`
	Reason string                  `json:"reason"`
}

// SetFinalGradeRequest records the final grade of an enrollment.
type SetFinalGradeRequest struct {
	Grade decimal.Decimal `json:"grade"`
}

// AdjustBalanceRequest grants a credit against the amount due.
type AdjustBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required"`
}

// NextObligationResponse wraps the next payable obligation, nil when nothing is due.
type NextObligationResponse struct {
	EnrollmentID string             `json:"enrollment_id"`
	Obligation   *models.Obligation `json:"obligation"`
	BalanceDue   decimal.Decimal    `json:"balance_due"`
}

// EnrollmentStatement bundles everything shown on an account statement.
type EnrollmentStatement struct {
	Enrollment  models.EnrollmentDetail      `json:"enrollment"`
	Schedule    []models.ScheduledObligation `json:"schedule"`
	Payments    []models.Payment             `json:"payments"`
	Adjustments []models.LedgerAdjustment    `json:"adjustments"`
}
