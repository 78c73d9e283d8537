package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

func TestBuildPricingSnapshotCascadesDiscounts(t *testing.T) {
	course := models.Course{CostInternal: dec("3000"), CostExternal: dec("3500")}

	snapshot, err := BuildPricingSnapshot(course, models.StudentTypeInternal, dec("10"), dec("5"))
	require.NoError(t, err)
	assert.Equal(t, "2565.00", snapshot.FinalPrice.StringFixed(2))
	assert.True(t, snapshot.BaseCost.Equal(dec("3000")))
	assert.True(t, snapshot.InstallmentAmount.IsZero())

	external, err := BuildPricingSnapshot(course, models.StudentTypeExternal, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, external.FinalPrice.Equal(dec("3500")))
}

func TestBuildPricingSnapshotInstallments(t *testing.T) {
	course := models.Course{CostInternal: dec("1000"), DownPaymentInternal: dec("200"), InstallmentCount: 4}

	snapshot, err := BuildPricingSnapshot(course, models.StudentTypeInternal, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, snapshot.FinalPrice.Equal(dec("1000")))
	assert.True(t, snapshot.DownPayment.Equal(dec("200")))
	assert.True(t, snapshot.InstallmentAmount.Equal(dec("200")))
	for i := 1; i <= 4; i++ {
		assert.True(t, InstallmentAmountFor(snapshot, i).Equal(dec("200")), "installment %d", i)
	}
	assert.True(t, InstallmentAmountFor(snapshot, 5).IsZero())
}

func TestInstallmentAmountForAbsorbsResidue(t *testing.T) {
	course := models.Course{CostInternal: dec("1000"), InstallmentCount: 3}
	snapshot, err := BuildPricingSnapshot(course, models.StudentTypeInternal, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, "333.33", snapshot.InstallmentAmount.StringFixed(2))
	total := decimal.Zero
	for i := 1; i <= 3; i++ {
		total = total.Add(InstallmentAmountFor(snapshot, i))
	}
	assert.Equal(t, "333.34", InstallmentAmountFor(snapshot, 3).StringFixed(2))
	assert.True(t, total.Equal(snapshot.FinalPrice))
}

func TestBuildPricingSnapshotRoundsHalfAwayFromZero(t *testing.T) {
	course := models.Course{CostInternal: dec("100.05")}
	snapshot, err := BuildPricingSnapshot(course, models.StudentTypeInternal, dec("50"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "50.03", snapshot.FinalPrice.StringFixed(2))
}

func TestBuildPricingSnapshotRejectsInvalidInput(t *testing.T) {
	cases := map[string]struct {
		course      models.Course
		studentType models.StudentType
		coursePct   decimal.Decimal
		studentPct  decimal.Decimal
	}{
		"down payment above final": {
			course:      models.Course{CostInternal: dec("1000"), DownPaymentInternal: dec("900")},
			studentType: models.StudentTypeInternal,
			coursePct:   dec("20"),
			studentPct:  decimal.Zero,
		},
		"percentage above 100": {
			course:      models.Course{CostInternal: dec("1000")},
			studentType: models.StudentTypeInternal,
			coursePct:   dec("101"),
			studentPct:  decimal.Zero,
		},
		"negative percentage": {
			course:      models.Course{CostInternal: dec("1000")},
			studentType: models.StudentTypeInternal,
			coursePct:   decimal.Zero,
			studentPct:  dec("-1"),
		},
		"unknown student type": {
			course:      models.Course{CostInternal: dec("1000")},
			studentType: models.StudentType("OTHER"),
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildPricingSnapshot(tc.course, tc.studentType, tc.coursePct, tc.studentPct)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
		})
	}
}

func TestRepriceSnapshotKeepsFrozenValues(t *testing.T) {
	course := models.Course{CostInternal: dec("1000"), DownPaymentInternal: dec("100"), InstallmentCount: 3}
	original, err := BuildPricingSnapshot(course, models.StudentTypeInternal, dec("10"), decimal.Zero)
	require.NoError(t, err)

	repriced, err := RepriceSnapshot(original, dec("10"))
	require.NoError(t, err)
	assert.True(t, repriced.BaseCost.Equal(original.BaseCost))
	assert.True(t, repriced.CourseDiscountPct.Equal(dec("10")))
	assert.Equal(t, "810.00", repriced.FinalPrice.StringFixed(2))
	assert.Equal(t, "236.67", repriced.InstallmentAmount.StringFixed(2))
	assert.Equal(t, 3, repriced.InstallmentCount)
}
