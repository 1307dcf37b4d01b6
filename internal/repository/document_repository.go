package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wilddocs/wilddocs-api/internal/models"
)

// DocumentRepository manages the registrar's document catalog.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// List returns document types, optionally including inactive entries.
func (r *DocumentRepository) List(ctx context.Context, includeInactive bool) ([]models.DocumentType, error) {
	query := `SELECT id, name, description, fee_cents, processing_days, active, created_at, updated_at FROM document_types`
	if !includeInactive {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`
	var docs []models.DocumentType
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	return docs, nil
}

// FindByID fetches a document type by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.DocumentType, error) {
	const query = `SELECT id, name, description, fee_cents, processing_days, active, created_at, updated_at FROM document_types WHERE id = $1 LIMIT 1`
	var doc models.DocumentType
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document type: %w", err)
	}
	return &doc, nil
}

// FindByName fetches a document type by its case-insensitive name.
func (r *DocumentRepository) FindByName(ctx context.Context, name string) (*models.DocumentType, error) {
	const query = `SELECT id, name, description, fee_cents, processing_days, active, created_at, updated_at FROM document_types WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var doc models.DocumentType
	if err := r.db.GetContext(ctx, &doc, query, strings.TrimSpace(name)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document type by name: %w", err)
	}
	return &doc, nil
}

// Create inserts a new document type.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.DocumentType) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	const query = `INSERT INTO document_types (id, name, description, fee_cents, processing_days, active, created_at, updated_at) VALUES (:id, :name, :description, :fee_cents, :processing_days, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document type: %w", err)
	}
	return nil
}

// Update updates mutable fields of a document type.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.DocumentType) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE document_types SET name = :name, description = :description, fee_cents = :fee_cents, processing_days = :processing_days, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("update document type: %w", err)
	}
	return nil
}

// Deactivate marks a document type as unavailable without removing it.
func (r *DocumentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE document_types SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate document type: %w", err)
	}
	return nil
}

// TopByDemand returns the most requested document types.
func (r *DocumentRepository) TopByDemand(ctx context.Context, limit int) ([]models.DocumentDemand, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT dt.id AS document_type_id, dt.name, COUNT(dr.id) AS request_count
        FROM document_types dt
        LEFT JOIN document_requests dr ON dr.document_type_id = dt.id
        GROUP BY dt.id, dt.name
        ORDER BY request_count DESC, dt.name ASC
        LIMIT %d`, limit)
	var demand []models.DocumentDemand
	if err := r.db.SelectContext(ctx, &demand, query); err != nil {
		return nil, fmt.Errorf("document demand: %w", err)
	}
	return demand, nil
}
