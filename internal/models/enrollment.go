package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPendingPayment EnrollmentStatus = "PENDING_PAYMENT"
	EnrollmentStatusActive         EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted      EnrollmentStatus = "COMPLETED"
	EnrollmentStatusSuspended      EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusCancelled      EnrollmentStatus = "CANCELLED"
)

// PricingSnapshot freezes the price of an enrollment at creation time.
type PricingSnapshot struct {
	StudentType        StudentType     `db:"student_type" json:"student_type"`
	BaseCost           decimal.Decimal `db:"base_cost" json:"base_cost"`
	CourseDiscountPct  decimal.Decimal `db:"course_discount_pct" json:"course_discount_pct"`
	StudentDiscountPct decimal.Decimal `db:"student_discount_pct" json:"student_discount_pct"`
	FinalPrice         decimal.Decimal `db:"final_price" json:"final_price"`
	DownPayment        decimal.Decimal `db:"down_payment" json:"down_payment"`
	InstallmentCount   int             `db:"installment_count" json:"installment_count"`
	InstallmentAmount  decimal.Decimal `db:"installment_amount" json:"installment_amount"`
}

// Enrollment links a student to a course together with its pricing snapshot and ledger.
//
// TotalDue is FinalPrice plus AdjustmentsTotal. TotalPaid only grows through approved
// payments, and BalanceDue is always max(0, TotalDue - TotalPaid).
type Enrollment struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	CourseID  string `db:"course_id" json:"course_id"`
	PricingSnapshot

	CourseDiscountID       *string             `db:"course_discount_id" json:"course_discount_id,omitempty"`
	CourseDiscountLiteral  decimal.NullDecimal `db:"course_discount_literal" json:"course_discount_literal"`
	StudentDiscountID      *string             `db:"student_discount_id" json:"student_discount_id,omitempty"`
	StudentDiscountLiteral decimal.NullDecimal `db:"student_discount_literal" json:"student_discount_literal"`

	AdjustmentsTotal decimal.Decimal `db:"adjustments_total" json:"adjustments_total"`
	TotalDue         decimal.Decimal `db:"total_due" json:"total_due"`
	TotalPaid        decimal.Decimal `db:"total_paid" json:"total_paid"`
	BalanceDue       decimal.Decimal `db:"balance_due" json:"balance_due"`

	Status     EnrollmentStatus    `db:"status" json:"status"`
	FinalGrade decimal.NullDecimal `db:"final_grade" json:"final_grade"`
	Requisitos Requisitos          `db:"requisitos" json:"requisitos"`

	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDiscountSource returns the course level discount captured at enrollment.
func (e Enrollment) CourseDiscountSource() DiscountSource {
	return DiscountSource{DiscountID: e.CourseDiscountID, Percentage: e.CourseDiscountLiteral}
}

// StudentDiscountSource returns the student level discount captured at enrollment.
func (e Enrollment) StudentDiscountSource() DiscountSource {
	return DiscountSource{DiscountID: e.StudentDiscountID, Percentage: e.StudentDiscountLiteral}
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string `db:"student_name" json:"student_name"`
	StudentCarnet string `db:"student_carnet" json:"student_carnet"`
	CourseName    string `db:"course_name" json:"course_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PaymentSummary aggregates the payment history of one enrollment.
type PaymentSummary struct {
	EnrollmentID   string          `json:"enrollment_id"`
	TotalPayments  int             `json:"total_payments"`
	Pending        int             `json:"pending"`
	Approved       int             `json:"approved"`
	Rejected       int             `json:"rejected"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	TotalDue       decimal.Decimal `json:"total_due"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
}
