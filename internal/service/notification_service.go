package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
	"github.com/wilddocs/wilddocs-api/pkg/jobs"
	"github.com/wilddocs/wilddocs-api/pkg/mailer"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type notificationStudentReader interface {
	FindStudentByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type overdueRequestLister interface {
	OverdueApproved(ctx context.Context, cutoff time.Time) ([]models.RequestDetail, error)
}

type dispatchMetrics interface {
	IncNotificationDispatchFailure()
	AddRemindersSent(n int)
}

// NotificationConfig tunes the dispatcher and its mail relay.
type NotificationConfig struct {
	From         string
	QueueWorkers int
	QueueRetries int
	RetryDelay   time.Duration
	ReminderDays int
}

// NotificationService persists in-app notifications and relays them by mail.
// Dispatch is strictly best-effort: a failure is logged and counted, never
// propagated back into the lifecycle path that triggered it.
type NotificationService struct {
	repo     notificationRepository
	students notificationStudentReader
	requests overdueRequestLister
	sink     mailer.Sink
	metrics  dispatchMetrics
	queue    *jobs.Queue
	config   NotificationConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewNotificationService constructs the dispatcher and its relay queue.
func NewNotificationService(repo notificationRepository, students notificationStudentReader, requests overdueRequestLister, sink mailer.Sink, metrics dispatchMetrics, config NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = mailer.NewNoopSink()
	}
	if config.ReminderDays <= 0 {
		config.ReminderDays = 14
	}

	s := &NotificationService{
		repo:     repo,
		students: students,
		requests: requests,
		sink:     sink,
		metrics:  metrics,
		config:   config,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}

	s.queue = jobs.NewQueue("notification-relay", s.relayMail, jobs.QueueConfig{
		Workers:    config.QueueWorkers,
		MaxRetries: config.QueueRetries,
		RetryDelay: config.RetryDelay,
		Logger:     logger,
	})
	s.queue.OnDropped(func(job jobs.Job, err error) {
		if s.metrics != nil {
			s.metrics.IncNotificationDispatchFailure()
		}
		s.logger.Error("notification relay dropped",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Error(err))
	})
	return s
}

// Start launches the relay workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the relay workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

func (s *NotificationService) relayMail(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		return fmt.Errorf("unexpected relay payload %T", job.Payload)
	}
	return s.sink.Send(ctx, msg)
}

// NotifyStatusChange records a status-change notification for the request's
// owner and relays it by mail. Never returns an error.
func (s *NotificationService) NotifyStatusChange(ctx context.Context, req *models.RequestDetail, from, to models.RequestStatus) {
	message := fmt.Sprintf("Your request #%s for %s has been updated from %s to %s.",
		req.RequestNumber, req.DocumentName, statusLabel(from), statusLabel(to))
	switch to {
	case models.StatusApproved:
		message += " Please visit the Registrar's Office to claim your document."
	case models.StatusCompleted:
		message += " Thank you for using WildDocs!"
	}

	title := fmt.Sprintf("Request %s %s", req.RequestNumber, statusLabel(to))
	s.dispatch(ctx, req, models.NotificationStatusChange, title, message)
}

// NotifyComment records a comment notification for the request's owner when
// someone else posts on their thread. Never returns an error.
func (s *NotificationService) NotifyComment(ctx context.Context, req *models.RequestDetail, author *models.JWTClaims, body string) {
	if author.Role == models.RoleStudent {
		return
	}
	title := fmt.Sprintf("New comment on request %s", req.RequestNumber)
	message := fmt.Sprintf("%s commented on your request #%s for %s: %s", author.FullName, req.RequestNumber, req.DocumentName, body)
	s.dispatch(ctx, req, models.NotificationComment, title, message)
}

// RunReminderSweep nudges students whose approved requests have sat uncollected
// past the configured threshold. Returns the number of reminders sent.
func (s *NotificationService) RunReminderSweep(ctx context.Context) (int, error) {
	cutoff := s.now().AddDate(0, 0, -s.config.ReminderDays)
	overdue, err := s.requests.OverdueApproved(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list overdue requests: %w", err)
	}

	sent := 0
	for i := range overdue {
		req := &overdue[i]
		message := fmt.Sprintf("Reminder: Your approved request #%s for %s is ready for pickup at the Registrar's Office. Please claim it within 30 days of approval.",
			req.RequestNumber, req.DocumentName)
		title := fmt.Sprintf("Pickup reminder for request %s", req.RequestNumber)
		s.dispatch(ctx, req, models.NotificationReminder, title, message)
		sent++
	}

	if s.metrics != nil && sent > 0 {
		s.metrics.AddRemindersSent(sent)
	}
	s.logger.Info("reminder sweep finished", zap.Int("reminders", sent), zap.Int("threshold_days", s.config.ReminderDays))
	return sent, nil
}

func (s *NotificationService) dispatch(ctx context.Context, req *models.RequestDetail, kind models.NotificationKind, title, message string) {
	student, err := s.students.FindStudentByID(ctx, req.StudentID)
	if err != nil {
		s.countFailure()
		s.logger.Error("notification dispatch failed: student lookup",
			zap.String("request_id", req.ID),
			zap.String("student_id", req.StudentID),
			zap.Error(err))
		return
	}

	notification := &models.Notification{
		UserID:    student.UserID,
		RequestID: &req.ID,
		Kind:      kind,
		Title:     title,
		Message:   message,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.countFailure()
		s.logger.Error("notification dispatch failed: persist",
			zap.String("request_id", req.ID),
			zap.String("user_id", student.UserID),
			zap.Error(err))
		return
	}

	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: string(kind),
		Payload: mailer.Message{
			To:      []string{student.Email},
			Subject: title,
			Body:    message,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.countFailure()
		s.logger.Warn("notification relay enqueue failed",
			zap.String("request_id", req.ID),
			zap.Error(err))
	}
}

func (s *NotificationService) countFailure() {
	if s.metrics != nil {
		s.metrics.IncNotificationDispatchFailure()
	}
}

// ListForUser returns a user's notifications with pagination metadata.
func (s *NotificationService) ListForUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UnreadCount returns the user's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead flags all of the user's notifications as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return updated, nil
}

func statusLabel(status models.RequestStatus) string {
	switch status {
	case models.StatusPending:
		return "Pending"
	case models.StatusApproved:
		return "Approved"
	case models.StatusCompleted:
		return "Completed"
	case models.StatusRejected:
		return "Rejected"
	case models.StatusCancelled:
		return "Cancelled"
	}
	return string(status)
}
