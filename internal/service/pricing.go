package service

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

// BuildPricingSnapshot prices an enrollment for the given student type. Discounts cascade:
// the course discount applies to the base cost and the student discount to the result.
func BuildPricingSnapshot(course models.Course, studentType models.StudentType, coursePct, studentPct decimal.Decimal) (models.PricingSnapshot, error) {
	if !studentType.Valid() {
		return models.PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "unknown student type")
	}
	return priceSnapshot(models.PricingSnapshot{
		StudentType:        studentType,
		BaseCost:           course.CostFor(studentType),
		DownPayment:        course.DownPaymentFor(studentType),
		InstallmentCount:   course.InstallmentCount,
		CourseDiscountPct:  coursePct,
		StudentDiscountPct: studentPct,
	})
}

// RepriceSnapshot recomputes a stored snapshot with a new student discount. The frozen base
// cost, course discount and schedule are kept.
func RepriceSnapshot(snapshot models.PricingSnapshot, studentPct decimal.Decimal) (models.PricingSnapshot, error) {
	snapshot.StudentDiscountPct = studentPct
	return priceSnapshot(snapshot)
}

func priceSnapshot(in models.PricingSnapshot) (models.PricingSnapshot, error) {
	if err := validatePercentage(in.CourseDiscountPct); err != nil {
		return models.PricingSnapshot{}, err
	}
	if err := validatePercentage(in.StudentDiscountPct); err != nil {
		return models.PricingSnapshot{}, err
	}
	if in.BaseCost.IsNegative() || in.DownPayment.IsNegative() {
		return models.PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "course prices must not be negative")
	}
	if in.InstallmentCount < 0 {
		return models.PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "installment count must not be negative")
	}

	base := models.RoundMoney(in.BaseCost)
	afterCourse := base.Mul(decimal.NewFromInt(1).Sub(in.CourseDiscountPct.Div(hundred)))
	final := models.RoundMoney(afterCourse.Mul(decimal.NewFromInt(1).Sub(in.StudentDiscountPct.Div(hundred))))
	down := models.RoundMoney(in.DownPayment)
	if down.GreaterThan(final) {
		return models.PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "down payment exceeds the discounted price")
	}

	installment := decimal.Zero
	if in.InstallmentCount >= 1 {
		installment = models.RoundMoney(final.Sub(down).Div(decimal.NewFromInt(int64(in.InstallmentCount))))
	}

	return models.PricingSnapshot{
		StudentType:        in.StudentType,
		BaseCost:           base,
		CourseDiscountPct:  models.RoundMoney(in.CourseDiscountPct),
		StudentDiscountPct: models.RoundMoney(in.StudentDiscountPct),
		FinalPrice:         final,
		DownPayment:        down,
		InstallmentCount:   in.InstallmentCount,
		InstallmentAmount:  installment,
	}, nil
}

// InstallmentAmountFor returns the scheduled amount of installment n (1-based). The last
// installment absorbs the rounding residue so the schedule adds up to the final price.
func InstallmentAmountFor(snapshot models.PricingSnapshot, n int) decimal.Decimal {
	if n < 1 || n > snapshot.InstallmentCount {
		return decimal.Zero
	}
	if n < snapshot.InstallmentCount {
		return snapshot.InstallmentAmount
	}
	previous := snapshot.InstallmentAmount.Mul(decimal.NewFromInt(int64(snapshot.InstallmentCount - 1)))
	return models.ClampZero(models.RoundMoney(snapshot.FinalPrice.Sub(snapshot.DownPayment).Sub(previous)))
}
