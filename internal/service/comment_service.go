package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
)

type commentRepository interface {
	Create(ctx context.Context, comment *models.RequestComment) error
	ListByRequest(ctx context.Context, requestID string) ([]models.CommentDetail, error)
}

type commentRequestReader interface {
	FindDetail(ctx context.Context, id string) (*models.RequestDetail, error)
}

type commentNotifier interface {
	NotifyComment(ctx context.Context, req *models.RequestDetail, author *models.JWTClaims, body string)
}

// CommentService manages request discussion threads.
type CommentService struct {
	repo      commentRepository
	requests  commentRequestReader
	notifier  commentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs the comment service.
func NewCommentService(repo commentRepository, requests commentRequestReader, notifier commentNotifier, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{repo: repo, requests: requests, notifier: notifier, validator: validate, logger: logger}
}

// Create posts a comment on a request's thread. Students may only comment on
// their own requests.
func (s *CommentService) Create(ctx context.Context, requestID string, author *models.JWTClaims, input models.CreateCommentInput) (*models.CommentDetail, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	body := strings.TrimSpace(input.Body)
	if utf8.RuneCountInString(body) < 5 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment must be at least 5 characters")
	}
	if utf8.RuneCountInString(body) > 1000 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment must not exceed 1000 characters")
	}

	req, err := s.requests.FindDetail(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if author.Role == models.RoleStudent && req.StudentID != author.ProfileID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}

	comment := &models.RequestComment{
		RequestID: requestID,
		AuthorID:  author.UserID,
		Body:      body,
		Internal:  input.Internal && author.Role != models.RoleStudent,
	}
	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to post comment")
	}

	if s.notifier != nil && !comment.Internal {
		s.notifier.NotifyComment(ctx, req, author, body)
	}

	return &models.CommentDetail{
		RequestComment: *comment,
		AuthorName:     author.FullName,
		AuthorRole:     author.Role,
	}, nil
}

// List returns the thread for a request, newest first. Students may only read
// their own threads and never see internal comments.
func (s *CommentService) List(ctx context.Context, requestID string, viewer *models.JWTClaims) ([]models.CommentDetail, error) {
	req, err := s.requests.FindDetail(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if viewer.Role == models.RoleStudent && req.StudentID != viewer.ProfileID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}

	comments, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	if viewer.Role != models.RoleStudent {
		return comments, nil
	}
	visible := make([]models.CommentDetail, 0, len(comments))
	for _, comment := range comments {
		if !comment.Internal {
			visible = append(visible, comment)
		}
	}
	return visible, nil
}
