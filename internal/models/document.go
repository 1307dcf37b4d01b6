package models

import "time"

// DocumentType represents a document offered by the registrar.
type DocumentType struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	FeeCents       int64     `db:"fee_cents" json:"fee_cents"`
	ProcessingDays int       `db:"processing_days" json:"processing_days"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentTypeInput is the payload for creating or updating a document type.
type DocumentTypeInput struct {
	Name           string `json:"name" validate:"required,min=3,max=120"`
	Description    string `json:"description" validate:"max=500"`
	FeeCents       int64  `json:"fee_cents" validate:"min=0"`
	ProcessingDays int    `json:"processing_days" validate:"min=1,max=60"`
}

// DocumentDemand pairs a document type with how many requests reference it.
type DocumentDemand struct {
	DocumentTypeID string `db:"document_type_id" json:"document_type_id"`
	Name           string `db:"name" json:"name"`
	RequestCount   int    `db:"request_count" json:"request_count"`
}
