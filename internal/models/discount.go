package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Discount is a reusable percentage discount that enrollments may reference.
type Discount struct {
	ID         string          `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Percentage decimal.Decimal `db:"percentage" json:"percentage"`
	CourseID   *string         `db:"course_id" json:"course_id,omitempty"`
	StudentIDs pq.StringArray  `db:"student_ids" json:"student_ids"`
	ValidFrom  *time.Time      `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil *time.Time      `db:"valid_until" json:"valid_until,omitempty"`
	Active     bool            `db:"active" json:"active"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ValidOn reports whether at falls inside the validity window, compared by calendar date.
func (d Discount) ValidOn(at time.Time) bool {
	day := DateOnly(at)
	if d.ValidFrom != nil && day.Before(DateOnly(*d.ValidFrom)) {
		return false
	}
	if d.ValidUntil != nil && day.After(DateOnly(*d.ValidUntil)) {
		return false
	}
	return true
}

// AppliesToCourse reports whether the discount is unscoped or scoped to courseID.
func (d Discount) AppliesToCourse(courseID string) bool {
	return d.CourseID == nil || *d.CourseID == courseID
}

// AllowsStudent reports whether studentID passes the allow-list. An empty list allows everyone.
func (d Discount) AllowsStudent(studentID string) bool {
	if len(d.StudentIDs) == 0 {
		return true
	}
	for _, id := range d.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// DiscountSource is either a reference to a Discount, a literal percentage, both, or neither.
type DiscountSource struct {
	DiscountID *string             `json:"discount_id,omitempty"`
	Percentage decimal.NullDecimal `json:"percentage"`
}

// DiscountFilter captures filtering criteria for listing discounts.
type DiscountFilter struct {
	CourseID string
	Active   *bool
	Page     int
	PageSize int
}

// DateOnly truncates t to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
