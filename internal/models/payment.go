package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the review state of a submitted voucher.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// ConceptDownPayment labels the matrícula obligation.
const ConceptDownPayment = "Matrícula"

// InstallmentConcept labels installment n.
func InstallmentConcept(n int) string {
	return fmt.Sprintf("Cuota %d", n)
}

// Payment is one student submitted voucher for a single obligation of an enrollment.
// StudentID and CourseID are denormalized for filtering only.
type Payment struct {
	ID                string          `db:"id" json:"id"`
	EnrollmentID      string          `db:"enrollment_id" json:"enrollment_id"`
	StudentID         string          `db:"student_id" json:"student_id"`
	CourseID          string          `db:"course_id" json:"course_id"`
	Concept           string          `db:"concept" json:"concept"`
	InstallmentNumber *int            `db:"installment_number" json:"installment_number,omitempty"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`

	TransactionNumber  string              `db:"transaction_number" json:"transaction_number"`
	VoucherURL         *string             `db:"voucher_url" json:"voucher_url,omitempty"`
	DeclaredSender     *string             `db:"declared_sender" json:"declared_sender,omitempty"`
	DeclaredBank       *string             `db:"declared_bank" json:"declared_bank,omitempty"`
	DeclaredAmount     decimal.NullDecimal `db:"declared_amount" json:"declared_amount"`
	DeclaredDate       *time.Time          `db:"declared_date" json:"declared_date,omitempty"`
	DestinationAccount *string             `db:"destination_account" json:"destination_account,omitempty"`
	Notes              *string             `db:"notes" json:"notes,omitempty"`

	Status          PaymentStatus `db:"status" json:"status"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time     `db:"submitted_at" json:"submitted_at"`
	ReviewedBy      *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReversalID      *string       `db:"reversal_id" json:"reversal_id,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// ObligationKey identifies the obligation a payment covers.
func (p Payment) ObligationKey() ObligationKey {
	key := ObligationKey{Concept: p.Concept}
	if p.InstallmentNumber != nil {
		key.Installment = *p.InstallmentNumber
	}
	return key
}

// Covers reports whether the payment currently occupies its obligation slot.
func (p Payment) Covers() bool {
	if p.ReversalID != nil {
		return false
	}
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusApproved
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	EnrollmentID string
	StudentID    string
	CourseID     string
	Status       PaymentStatus
	Page         int
	PageSize     int
}

// ObligationKey is the (concept, installment) tuple. Installment is 0 for the matrícula.
type ObligationKey struct {
	Concept     string
	Installment int
}

// Obligation is an amount the student owes for one concept.
type Obligation struct {
	Concept           string          `json:"concept"`
	InstallmentNumber *int            `json:"installment_number,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
}

// Key returns the obligation's identity.
func (o Obligation) Key() ObligationKey {
	key := ObligationKey{Concept: o.Concept}
	if o.InstallmentNumber != nil {
		key.Installment = *o.InstallmentNumber
	}
	return key
}

// ScheduledObligation is an obligation annotated with its coverage in the payment history.
type ScheduledObligation struct {
	Obligation
	Status    string  `json:"status"`
	PaymentID *string `json:"payment_id,omitempty"`
}

// Coverage states reported by the obligation schedule.
const (
	ObligationOpen     = "OPEN"
	ObligationPending  = "PENDING"
	ObligationApproved = "APPROVED"
)
