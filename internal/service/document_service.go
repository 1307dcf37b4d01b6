package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
)

type documentRepository interface {
	List(ctx context.Context, includeInactive bool) ([]models.DocumentType, error)
	FindByID(ctx context.Context, id string) (*models.DocumentType, error)
	FindByName(ctx context.Context, name string) (*models.DocumentType, error)
	Create(ctx context.Context, doc *models.DocumentType) error
	Update(ctx context.Context, doc *models.DocumentType) error
	Deactivate(ctx context.Context, id string) error
	TopByDemand(ctx context.Context, limit int) ([]models.DocumentDemand, error)
}

// DocumentService manages the registrar's document catalog.
type DocumentService struct {
	repo            documentRepository
	validator       *validator.Validate
	logger          *zap.Logger
	defaultFeeCents int64
}

// NewDocumentService constructs the document catalog service.
func NewDocumentService(repo documentRepository, validate *validator.Validate, logger *zap.Logger, defaultFeeCents int64) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultFeeCents <= 0 {
		defaultFeeCents = 10000
	}
	return &DocumentService{repo: repo, validator: validate, logger: logger, defaultFeeCents: defaultFeeCents}
}

// List returns catalog entries. Staff may include inactive documents.
func (s *DocumentService) List(ctx context.Context, includeInactive bool) ([]models.DocumentType, error) {
	docs, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document types")
	}
	return docs, nil
}

// Get returns a single catalog entry.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.DocumentType, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document type")
	}
	return doc, nil
}

// Create adds a new catalog entry.
func (s *DocumentService) Create(ctx context.Context, input models.DocumentTypeInput) (*models.DocumentType, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	name := strings.TrimSpace(input.Name)
	if existing, err := s.repo.FindByName(ctx, name); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "document type already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check document name")
	}

	doc := &models.DocumentType{
		Name:           name,
		Description:    strings.TrimSpace(input.Description),
		FeeCents:       input.FeeCents,
		ProcessingDays: input.ProcessingDays,
		Active:         true,
	}
	if doc.FeeCents == 0 {
		doc.FeeCents = s.defaultFeeCents
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document type")
	}
	return doc, nil
}

// Update modifies an existing catalog entry.
func (s *DocumentService) Update(ctx context.Context, id string, input models.DocumentTypeInput) (*models.DocumentType, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document type")
	}

	doc.Name = strings.TrimSpace(input.Name)
	doc.Description = strings.TrimSpace(input.Description)
	doc.FeeCents = input.FeeCents
	doc.ProcessingDays = input.ProcessingDays
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document type")
	}
	return doc, nil
}

// Deactivate retires a catalog entry without deleting historical requests.
func (s *DocumentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document type")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate document type")
	}
	return nil
}

// TopDemand returns the most requested document kinds.
func (s *DocumentService) TopDemand(ctx context.Context, limit int) ([]models.DocumentDemand, error) {
	demand, err := s.repo.TopByDemand(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document demand")
	}
	return demand, nil
}

// ResolveByName fetches a catalog entry by name, creating it with default
// pricing when the portal has not seen that document before.
func (s *DocumentService) ResolveByName(ctx context.Context, name string) (*models.DocumentType, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document name is required")
	}

	doc, err := s.repo.FindByName(ctx, trimmed)
	if err == nil {
		if !doc.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "document type is no longer offered")
		}
		return doc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up document type")
	}

	doc = &models.DocumentType{
		Name:           trimmed,
		FeeCents:       s.defaultFeeCents,
		ProcessingDays: 7,
		Active:         true,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register document type")
	}
	s.logger.Info("registered new document type", zap.String("name", doc.Name), zap.Int64("fee_cents", doc.FeeCents))
	return doc, nil
}
