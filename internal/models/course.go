package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Course carries the price table and requirement template read by the enrollment engine.
type Course struct {
	ID                  string              `db:"id" json:"id"`
	Name                string              `db:"name" json:"name"`
	Description         *string             `db:"description" json:"description,omitempty"`
	CostInternal        decimal.Decimal     `db:"cost_internal" json:"cost_internal"`
	CostExternal        decimal.Decimal     `db:"cost_external" json:"cost_external"`
	DownPaymentInternal decimal.Decimal     `db:"down_payment_internal" json:"down_payment_internal"`
	DownPaymentExternal decimal.Decimal     `db:"down_payment_external" json:"down_payment_external"`
	InstallmentCount    int                 `db:"installment_count" json:"installment_count"`
	DiscountID          *string             `db:"discount_id" json:"discount_id,omitempty"`
	DiscountPercentage  decimal.NullDecimal `db:"discount_percentage" json:"discount_percentage"`
	RequirementLabels   pq.StringArray      `db:"requirement_labels" json:"requirement_labels"`
	Active              bool                `db:"active" json:"active"`
	StartDate           *time.Time          `db:"start_date" json:"start_date,omitempty"`
	EndDate             *time.Time          `db:"end_date" json:"end_date,omitempty"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

// CostFor returns the base price for the student type.
func (c Course) CostFor(t StudentType) decimal.Decimal {
	if t == StudentTypeExternal {
		return c.CostExternal
	}
	return c.CostInternal
}

// DownPaymentFor returns the matrícula amount for the student type.
func (c Course) DownPaymentFor(t StudentType) decimal.Decimal {
	if t == StudentTypeExternal {
		return c.DownPaymentExternal
	}
	return c.DownPaymentInternal
}

// DiscountSource returns the course level discount reference and literal.
func (c Course) DiscountSource() DiscountSource {
	return DiscountSource{DiscountID: c.DiscountID, Percentage: c.DiscountPercentage}
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}

// RosterEntry is one enrolled student in a course roster with payment progress.
type RosterEntry struct {
	EnrollmentID    string           `db:"enrollment_id" json:"enrollment_id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	StudentName     string           `db:"student_name" json:"student_name"`
	StudentCarnet   string           `db:"student_carnet" json:"student_carnet"`
	StudentType     StudentType      `db:"student_type" json:"student_type"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	TotalDue        decimal.Decimal  `db:"total_due" json:"total_due"`
	TotalPaid       decimal.Decimal  `db:"total_paid" json:"total_paid"`
	BalanceDue      decimal.Decimal  `db:"balance_due" json:"balance_due"`
	PaymentProgress decimal.Decimal  `db:"-" json:"payment_progress"`
}
