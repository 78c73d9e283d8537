package dto

// SubmitPaymentRequest is the multipart form a student posts with a voucher. The amount is
// computed by the server; DeclaredAmount is kept for reconciliation only. Concept, when set,
// must match the obligation the server resolves.
type SubmitPaymentRequest struct {
	TransactionNumber  string `form:"transaction_number" json:"transaction_number" validate:"required,max=100"`
	Concept            string `form:"concept" json:"concept"`
	DeclaredSender     string `form:"declared_sender" json:"declared_sender" validate:"max=200"`
	DeclaredBank       string `form:"declared_bank" json:"declared_bank" validate:"max=200"`
	DeclaredAmount     string `form:"declared_amount" json:"declared_amount" validate:"omitempty,numeric"`
	DeclaredDate       string `form:"declared_date" json:"declared_date" validate:"omitempty,datetime=2006-01-02"`
	DestinationAccount string `form:"destination_account" json:"destination_account" validate:"max=100"`
	Notes              string `form:"notes" json:"notes" validate:"max=1000"`
}

// RejectPaymentRequest carries the mandatory rejection reason.
type RejectPaymentRequest struct {
	Reason string `json:"reason"`
}

// ReversePaymentRequest carries the reason for reversing an approved payment.
type ReversePaymentRequest struct {
	Reason string `json:"reason"`
}
