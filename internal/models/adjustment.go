package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentKind classifies a compensating ledger entry.
type AdjustmentKind string

const (
	// AdjustmentReversal reopens the obligation of an approved payment and adds its amount back to the balance.
	AdjustmentReversal AdjustmentKind = "REVERSAL"
	// AdjustmentCredit waives part of the amount due.
	AdjustmentCredit AdjustmentKind = "CREDIT"
)

// LedgerAdjustment is an append-only compensating entry on an enrollment's amount due.
// Amount is always positive; Delta gives its signed effect on TotalDue.
type LedgerAdjustment struct {
	ID           string          `db:"id" json:"id"`
	EnrollmentID string          `db:"enrollment_id" json:"enrollment_id"`
	PaymentID    *string         `db:"payment_id" json:"payment_id,omitempty"`
	Kind         AdjustmentKind  `db:"kind" json:"kind"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Reason       string          `db:"reason" json:"reason"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Delta is the signed change applied to the enrollment's amount due.
func (a LedgerAdjustment) Delta() decimal.Decimal {
	if a.Kind == AdjustmentCredit {
		return a.Amount.Neg()
	}
	return a.Amount
}
