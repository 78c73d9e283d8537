package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RequisitoStatus is the review state of one required document.
type RequisitoStatus string

const (
	RequisitoPendiente RequisitoStatus = "PENDIENTE"
	RequisitoEnProceso RequisitoStatus = "EN_PROCESO"
	RequisitoAprobado  RequisitoStatus = "APROBADO"
	RequisitoRechazado RequisitoStatus = "RECHAZADO"
)

// Requisito is a required supporting document addressed by its position in the enrollment.
type Requisito struct {
	Label           string          `json:"label"`
	DocumentURL     *string         `json:"document_url,omitempty"`
	Status          RequisitoStatus `json:"status"`
	UploadedAt      *time.Time      `json:"uploaded_at,omitempty"`
	ReviewedBy      *string         `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
}

// Requisitos is stored as a JSONB array. Its length is fixed when the enrollment is created.
type Requisitos []Requisito

// NewRequisitos seeds a pending requisito per label, preserving order.
func NewRequisitos(labels []string) Requisitos {
	out := make(Requisitos, len(labels))
	for i, label := range labels {
		out[i] = Requisito{Label: label, Status: RequisitoPendiente}
	}
	return out
}

// Value implements driver.Valuer.
func (r Requisitos) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (r *Requisitos) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Requisitos{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("requisitos: unsupported scan type %T", src)
	}
	out := Requisitos{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("requisitos: %w", err)
	}
	*r = out
	return nil
}

// RequisitoSummary counts requisitos by state.
type RequisitoSummary struct {
	Total      int `json:"total"`
	Pendientes int `json:"pendientes"`
	EnProceso  int `json:"en_proceso"`
	Aprobados  int `json:"aprobados"`
	Rechazados int `json:"rechazados"`
}
