package models

import "time"

// StudentType selects which price list applies to a student.
type StudentType string

const (
	StudentTypeInternal StudentType = "INTERNO"
	StudentTypeExternal StudentType = "EXTERNO"
)

// Valid reports whether the type is one of the known price lists.
func (t StudentType) Valid() bool {
	return t == StudentTypeInternal || t == StudentTypeExternal
}

// Student is a learner who can enroll in courses and log in with a carnet.
type Student struct {
	ID           string      `db:"id" json:"id"`
	Carnet       string      `db:"carnet" json:"carnet"`
	FullName     string      `db:"full_name" json:"full_name"`
	Email        *string     `db:"email" json:"email,omitempty"`
	Phone        *string     `db:"phone" json:"phone,omitempty"`
	StudentType  StudentType `db:"student_type" json:"student_type"`
	PasswordHash string      `db:"password_hash" json:"-"`
	Active       bool        `db:"active" json:"active"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	Search      string
	StudentType StudentType
	Page        int
	PageSize    int
}
