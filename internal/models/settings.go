package models

import "time"

// PaymentSettings is the singleton describing where students transfer money.
type PaymentSettings struct {
	BankName      string    `db:"bank_name" json:"bank_name"`
	AccountNumber string    `db:"account_number" json:"account_number"`
	AccountHolder string    `db:"account_holder" json:"account_holder"`
	AccountType   *string   `db:"account_type" json:"account_type,omitempty"`
	QRImageURL    *string   `db:"qr_image_url" json:"qr_image_url,omitempty"`
	Instructions  *string   `db:"instructions" json:"instructions,omitempty"`
	UpdatedBy     *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
