package service

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

// ApplyPayment books an approved payment. It is the only writer of TotalPaid.
func ApplyPayment(enrollment *models.Enrollment, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return appErrors.Clone(appErrors.ErrValidation, "payment amount must be positive")
	}
	enrollment.TotalPaid = models.RoundMoney(enrollment.TotalPaid.Add(amount))
	RecomputeBalance(enrollment)

	if enrollment.Status == models.EnrollmentStatusPendingPayment {
		enrollment.Status = models.EnrollmentStatusActive
	}
	if models.IsSettled(enrollment.BalanceDue) {
		enrollment.Status = models.EnrollmentStatusCompleted
	}
	return nil
}

// RecomputeBalance derives TotalDue and BalanceDue from the snapshot, adjustments and
// payments. It is the only writer of BalanceDue.
func RecomputeBalance(enrollment *models.Enrollment) {
	enrollment.TotalDue = models.ClampZero(models.RoundMoney(enrollment.FinalPrice.Add(enrollment.AdjustmentsTotal)))
	enrollment.BalanceDue = models.ClampZero(models.RoundMoney(enrollment.TotalDue.Sub(enrollment.TotalPaid)))
}

// ApplyAdjustment books a compensating entry against the amount due.
func ApplyAdjustment(enrollment *models.Enrollment, adjustment models.LedgerAdjustment) error {
	if !adjustment.Amount.IsPositive() {
		return appErrors.Clone(appErrors.ErrValidation, "adjustment amount must be positive")
	}
	switch adjustment.Kind {
	case models.AdjustmentReversal:
	case models.AdjustmentCredit:
		due := enrollment.FinalPrice.Add(enrollment.AdjustmentsTotal)
		if adjustment.Amount.GreaterThan(due) {
			return appErrors.Clone(appErrors.ErrValidation, "credit exceeds the amount due")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown adjustment kind")
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is cancelled")
	}

	enrollment.AdjustmentsTotal = models.RoundMoney(enrollment.AdjustmentsTotal.Add(adjustment.Delta()))
	RecomputeBalance(enrollment)
	reconcileStatus(enrollment)
	return nil
}

// ApplyRepricing replaces the pricing snapshot and recomputes the balance from the
// stored TotalPaid.
func ApplyRepricing(enrollment *models.Enrollment, snapshot models.PricingSnapshot) error {
	if snapshot.FinalPrice.Add(enrollment.AdjustmentsTotal).IsNegative() {
		return appErrors.Clone(appErrors.ErrValidation, "new price is below the credits already granted")
	}
	enrollment.PricingSnapshot = snapshot
	RecomputeBalance(enrollment)
	reconcileStatus(enrollment)
	return nil
}

// reconcileStatus moves an enrollment between COMPLETED and the open states when the
// balance changes for reasons other than a payment.
func reconcileStatus(enrollment *models.Enrollment) {
	switch enrollment.Status {
	case models.EnrollmentStatusCancelled, models.EnrollmentStatusSuspended:
		return
	case models.EnrollmentStatusCompleted:
		if models.IsSettled(enrollment.BalanceDue) {
			return
		}
		if enrollment.TotalPaid.IsPositive() {
			enrollment.Status = models.EnrollmentStatusActive
		} else {
			enrollment.Status = models.EnrollmentStatusPendingPayment
		}
	default:
		if models.IsSettled(enrollment.BalanceDue) {
			enrollment.Status = models.EnrollmentStatusCompleted
		}
	}
}
