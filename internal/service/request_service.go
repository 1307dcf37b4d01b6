package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
)

// urgentDocuments get a fixed priority boost regardless of age.
var urgentDocuments = map[string]bool{
	"Transcript of Records":     true,
	"Diploma":                   true,
	"Certificate of Enrollment": true,
}

type requestRepository interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, id string) (*models.Request, error)
	FindDetail(ctx context.Context, id string) (*models.RequestDetail, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, int, error)
	Transition(ctx context.Context, id string, to models.RequestStatus, allowedFrom []models.RequestStatus, changedBy, remarks string) (models.RequestStatus, error)
	Assign(ctx context.Context, id, staffID string) error
	Statistics(ctx context.Context, studentID string) (*models.RequestStatistics, error)
	CountsByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountAll(ctx context.Context) (int, error)
	OverdueApproved(ctx context.Context, cutoff time.Time) ([]models.RequestDetail, error)
}

type requestHistoryRepository interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.TimelineEntry, error)
}

type documentResolver interface {
	Get(ctx context.Context, id string) (*models.DocumentType, error)
	ResolveByName(ctx context.Context, name string) (*models.DocumentType, error)
	TopDemand(ctx context.Context, limit int) ([]models.DocumentDemand, error)
}

type activeStudentCounter interface {
	CountActiveStudents(ctx context.Context) (int, error)
}

// statusNotifier receives lifecycle events. Implementations must not block
// and must never surface failures back into the transition path.
type statusNotifier interface {
	NotifyStatusChange(ctx context.Context, req *models.RequestDetail, from, to models.RequestStatus)
}

type lifecycleMetrics interface {
	IncRequestFiled()
	IncTransition(to string)
}

type statisticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RequestService drives the document request lifecycle.
type RequestService struct {
	repo        requestRepository
	history     requestHistoryRepository
	documents   documentResolver
	students    activeStudentCounter
	notifier    statusNotifier
	metrics     lifecycleMetrics
	cache       statisticsCache
	cacheTTL    time.Duration
	overdueDays int
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewRequestService constructs the lifecycle service.
func NewRequestService(repo requestRepository, history requestHistoryRepository, documents documentResolver, students activeStudentCounter, notifier statusNotifier, metrics lifecycleMetrics, cache statisticsCache, cacheTTL time.Duration, overdueDays int, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if overdueDays <= 0 {
		overdueDays = 30
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &RequestService{
		repo:        repo,
		history:     history,
		documents:   documents,
		students:    students,
		notifier:    notifier,
		metrics:     metrics,
		cache:       cache,
		cacheTTL:    cacheTTL,
		overdueDays: overdueDays,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create files a new request for a student. The request opens in PENDING
// with its first ledger entry written in the same transaction.
func (s *RequestService) Create(ctx context.Context, studentID string, input models.CreateRequestInput) (*models.RequestDetail, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student profile required")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if input.Copies < 1 || input.Copies > 10 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "copies must be between 1 and 10")
	}

	purpose := strings.TrimSpace(input.Purpose)
	if utf8.RuneCountInString(purpose) < 10 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purpose must be at least 10 characters")
	}
	if utf8.RuneCountInString(purpose) > 500 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purpose must not exceed 500 characters")
	}

	doc, err := s.resolveDocument(ctx, input)
	if err != nil {
		return nil, err
	}

	req := &models.Request{
		StudentID:      studentID,
		DocumentTypeID: doc.ID,
		Copies:         input.Copies,
		Purpose:        purpose,
		FeeCents:       doc.FeeCents * int64(input.Copies),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file request")
	}

	s.invalidateStats(ctx, studentID)
	if s.metrics != nil {
		s.metrics.IncRequestFiled()
	}
	s.logger.Info("request filed",
		zap.String("request_id", req.ID),
		zap.String("request_number", req.RequestNumber),
		zap.String("student_id", studentID),
		zap.String("document", doc.Name))

	return s.detail(ctx, req.ID)
}

func (s *RequestService) resolveDocument(ctx context.Context, input models.CreateRequestInput) (*models.DocumentType, error) {
	if input.DocumentTypeID != "" {
		doc, err := s.documents.Get(ctx, input.DocumentTypeID)
		if err != nil {
			return nil, err
		}
		if !doc.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "document type is no longer offered")
		}
		return doc, nil
	}
	if input.DocumentName != "" {
		return s.documents.ResolveByName(ctx, input.DocumentName)
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "document_type_id or document_name is required")
}

// Get returns a request detail, enforcing student ownership when studentID is set.
func (s *RequestService) Get(ctx context.Context, id, studentID string) (*models.RequestDetail, error) {
	detail, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if studentID != "" && detail.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	return detail, nil
}

// List returns requests matching the filter with pagination metadata.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Approve moves a PENDING request to APPROVED.
func (s *RequestService) Approve(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error) {
	return s.transition(ctx, id, models.StatusApproved, []models.RequestStatus{models.StatusPending}, staffUserID, remarks)
}

// Reject moves a PENDING request to REJECTED.
func (s *RequestService) Reject(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error) {
	return s.transition(ctx, id, models.StatusRejected, []models.RequestStatus{models.StatusPending}, staffUserID, remarks)
}

// Complete moves an APPROVED request to COMPLETED.
func (s *RequestService) Complete(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error) {
	return s.transition(ctx, id, models.StatusCompleted, []models.RequestStatus{models.StatusApproved}, staffUserID, remarks)
}

// Cancel lets the owning student withdraw a PENDING request. A request that
// has already left PENDING, including an earlier cancellation, is rejected.
func (s *RequestService) Cancel(ctx context.Context, id, studentID, reason string) (*models.RequestDetail, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if current.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	if utf8.RuneCountInString(reason) > 500 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancellation reason must not exceed 500 characters")
	}
	return s.transition(ctx, id, models.StatusCancelled, []models.RequestStatus{models.StatusPending}, studentID, strings.TrimSpace(reason))
}

func (s *RequestService) transition(ctx context.Context, id string, to models.RequestStatus, allowedFrom []models.RequestStatus, changedBy, remarks string) (*models.RequestDetail, error) {
	from, err := s.repo.Transition(ctx, id, to, allowedFrom, changedBy, remarks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	detail, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, detail.StudentID)
	if s.metrics != nil {
		s.metrics.IncTransition(string(to))
	}
	s.logger.Info("request transitioned",
		zap.String("request_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("changed_by", changedBy))

	if s.notifier != nil {
		s.notifier.NotifyStatusChange(ctx, detail, from, to)
	}
	return detail, nil
}

// Assign hands a request to a staff member for processing.
func (s *RequestService) Assign(ctx context.Context, id, staffID string) (*models.RequestDetail, error) {
	if err := s.repo.Assign(ctx, id, staffID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign request")
	}
	return s.detail(ctx, id)
}

// Timeline returns the request's full status ledger, newest change first.
func (s *RequestService) Timeline(ctx context.Context, id, studentID string) ([]models.TimelineEntry, error) {
	if _, err := s.Get(ctx, id, studentID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRequest(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	return entries, nil
}

// Statistics summarizes a student's requests by outcome, served from cache
// when available.
func (s *RequestService) Statistics(ctx context.Context, studentID string) (*models.RequestStatistics, error) {
	key := statsCacheKey(studentID)
	if s.cache != nil {
		var cached models.RequestStatistics
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("statistics cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.Statistics(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute statistics")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("statistics cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// StudentSummary condenses a student's request history: outcome counts, the
// five most recent requests, the document they ask for most, and the average
// completion turnaround in days.
func (s *RequestService) StudentSummary(ctx context.Context, studentID string) (*models.StudentSummary, error) {
	stats, err := s.Statistics(ctx, studentID)
	if err != nil {
		return nil, err
	}
	requests, _, err := s.repo.List(ctx, models.RequestFilter{StudentID: studentID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}

	summary := &models.StudentSummary{Statistics: *stats, Recent: requests}
	if len(requests) > 5 {
		summary.Recent = requests[:5]
	}

	demand := make(map[string]int)
	var processingDays float64
	completed := 0
	for i := range requests {
		demand[requests[i].DocumentName]++
		if requests[i].Status == models.StatusCompleted {
			processingDays += requests[i].UpdatedAt.Sub(requests[i].CreatedAt).Hours() / 24
			completed++
		}
	}
	best := 0
	for name, count := range demand {
		if count > best || (count == best && name < summary.MostRequestedDocument) {
			best = count
			summary.MostRequestedDocument = name
		}
	}
	if completed > 0 {
		summary.AvgProcessingDays = processingDays / float64(completed)
	}
	return summary, nil
}

// Overdue returns approved requests that have been waiting for pickup longer
// than the configured threshold. Age is measured from filing time.
func (s *RequestService) Overdue(ctx context.Context, days int) ([]models.RequestDetail, error) {
	if days <= 0 {
		days = s.overdueDays
	}
	cutoff := s.now().AddDate(0, 0, -days)
	requests, err := s.repo.OverdueApproved(ctx, cutoff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue requests")
	}
	return requests, nil
}

// Summary aggregates registrar-wide counters for the admin dashboard.
func (s *RequestService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	byStatus, err := s.repo.CountsByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests by status")
	}
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}

	summary := &models.DashboardSummary{
		ByStatus:      byStatus,
		TotalRequests: total,
	}

	if s.documents != nil {
		top, err := s.documents.TopDemand(ctx, 5)
		if err != nil {
			s.logger.Warn("failed to load document demand", zap.Error(err))
		} else {
			summary.TopDocuments = top
		}
	}
	if s.students != nil {
		active, err := s.students.CountActiveStudents(ctx)
		if err != nil {
			s.logger.Warn("failed to count active students", zap.Error(err))
		} else {
			summary.ActiveStudents = active
		}
	}

	overdue, err := s.Overdue(ctx, 0)
	if err != nil {
		s.logger.Warn("failed to compute overdue count", zap.Error(err))
	} else {
		summary.OverdueCount = len(overdue)
	}
	return summary, nil
}

// PriorityScore ranks a request for the staff triage queue. Older requests
// score higher up to a cap, urgent document kinds get a fixed boost, and
// small jobs get a nudge so quick wins surface.
func (s *RequestService) PriorityScore(req *models.RequestDetail) int {
	daysOld := int(s.now().Sub(req.CreatedAt).Hours() / 24)
	if daysOld < 0 {
		daysOld = 0
	}
	score := daysOld * 2
	if score > 20 {
		score = 20
	}
	if urgentDocuments[req.DocumentName] {
		score += 15
	}
	if req.Copies <= 2 {
		score += 5
	}
	return score
}

func (s *RequestService) detail(ctx context.Context, id string) (*models.RequestDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return detail, nil
}

func (s *RequestService) invalidateStats(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, statsCacheKey(studentID)); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.String("student_id", studentID), zap.Error(err))
	}
}

func statsCacheKey(studentID string) string {
	return fmt.Sprintf("wilddocs:stats:%s", studentID)
}
