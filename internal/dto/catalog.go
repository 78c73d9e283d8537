package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

// CourseRequest creates or replaces a course price table.
type CourseRequest struct {
	Name                string              `json:"name" validate:"required,max=200"`
	Description         *string             `json:"description"`
	CostInternal        decimal.Decimal     `json:"cost_internal"`
	CostExternal        decimal.Decimal     `json:"cost_external"`
	DownPaymentInternal decimal.Decimal     `json:"down_payment_internal"`
	DownPaymentExternal decimal.Decimal     `json:"down_payment_external"`
	InstallmentCount    int                 `json:"installment_count" validate:"gte=0,lte=60"`
	DiscountID          *string             `json:"discount_id"`
	DiscountPercentage  decimal.NullDecimal `json:"discount_percentage"`
	RequirementLabels   []string            `json:"requirement_labels" validate:"dive,required"`
	Active              *bool               `json:"active"`
	StartDate           *time.Time          `json:"start_date"`
	EndDate             *time.Time          `json:"end_date"`
}

// DiscountRequest creates a reusable discount.
type DiscountRequest struct {
	Name       string          `json:"name" validate:"required,max=200"`
	Percentage decimal.Decimal `json:"percentage"`
	CourseID   *string         `json:"course_id"`
	StudentIDs []string        `json:"student_ids"`
	ValidFrom  *time.Time      `json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until"`
}

// DiscountActiveRequest toggles a discount.
type DiscountActiveRequest struct {
	Active bool `json:"active"`
}

// DiscountStudentRequest adds a student to a discount allow-list.
type DiscountStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// CreateStudentRequest registers a student account.
type CreateStudentRequest struct {
	Carnet      string             `json:"carnet" validate:"required,max=50"`
	FullName    string             `json:"full_name" validate:"required,max=200"`
	Email       *string            `json:"email" validate:"omitempty,email"`
	Phone       *string            `json:"phone"`
	StudentType models.StudentType `json:"student_type" validate:"required,oneof=INTERNO EXTERNO"`
	Password    string             `json:"password" validate:"required,min=8"`
}

// PaymentSettingsRequest replaces the payment destination settings.
type PaymentSettingsRequest struct {
	BankName      string  `json:"bank_name" validate:"required"`
	AccountNumber string  `json:"account_number" validate:"required"`
	AccountHolder string  `json:"account_holder" validate:"required"`
	AccountType   *string `json:"account_type"`
	QRImageURL    *string `json:"qr_image_url" validate:"omitempty,url"`
	Instructions  *string `json:"instructions"`
}
