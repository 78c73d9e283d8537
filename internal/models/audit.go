package models

import "time"

// Audit actions recorded by the finance services.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionEnrollmentCreate   = "ENROLLMENT_CREATE"
	AuditActionEnrollmentStatus   = "ENROLLMENT_STATUS_CHANGE"
	AuditActionEnrollmentDiscount = "ENROLLMENT_DISCOUNT_UPDATE"
	AuditActionEnrollmentGrade    = "ENROLLMENT_GRADE_SET"
	AuditActionPaymentSubmit      = "PAYMENT_SUBMIT"
	AuditActionPaymentApprove     = "PAYMENT_APPROVE"
	AuditActionPaymentReject      = "PAYMENT_REJECT"
	AuditActionLedgerAdjustment   = "LEDGER_ADJUSTMENT"
	AuditActionRequisitoUpload    = "REQUISITO_UPLOAD"
	AuditActionRequisitoApprove   = "REQUISITO_APPROVE"
	AuditActionRequisitoReject    = "REQUISITO_REJECT"
	AuditActionSettingsUpdate     = "PAYMENT_SETTINGS_UPDATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	ActorKind  string    `db:"actor_kind" json:"actor_kind"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
