package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wilddocs/wilddocs-api/internal/models"
)

// CommentRepository manages request discussion threads.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs a CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create appends a comment to a request's thread.
func (r *CommentRepository) Create(ctx context.Context, comment *models.RequestComment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO request_comments (id, request_id, author_id, body, internal, created_at) VALUES (:id, :request_id, :author_id, :body, :internal, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListByRequest returns a request's comments newest first, insertion order
// breaking timestamp ties.
func (r *CommentRepository) ListByRequest(ctx context.Context, requestID string) ([]models.CommentDetail, error) {
	const query = `SELECT c.id, c.request_id, c.author_id, c.body, c.internal, c.created_at,
        u.full_name AS author_name, u.role AS author_role
        FROM request_comments c
        JOIN users u ON u.id = c.author_id
        WHERE c.request_id = $1
        ORDER BY c.created_at DESC, c.id ASC`
	var comments []models.CommentDetail
	if err := r.db.SelectContext(ctx, &comments, query, requestID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
