package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
	"github.com/wilddocs/wilddocs-api/pkg/mailer"
)

type notificationRepoStub struct {
	created   []*models.Notification
	createErr error
	markErr   error
}

func (s *notificationRepoStub) Create(ctx context.Context, n *models.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, n)
	return nil
}

func (s *notificationRepoStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	return nil, 0, nil
}

func (s *notificationRepoStub) CountUnread(ctx context.Context, userID string) (int, error) {
	return len(s.created), nil
}

func (s *notificationRepoStub) MarkRead(ctx context.Context, id, userID string) error {
	return s.markErr
}

func (s *notificationRepoStub) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return len(s.created), nil
}

type studentReaderStub struct {
	students map[string]*models.StudentDetail
	err      error
}

func (s studentReaderStub) FindStudentByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	if student, ok := s.students[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

type overdueListerStub struct {
	requests []models.RequestDetail
	cutoff   time.Time
}

func (s *overdueListerStub) OverdueApproved(ctx context.Context, cutoff time.Time) ([]models.RequestDetail, error) {
	s.cutoff = cutoff
	return s.requests, nil
}

type dispatchMetricsStub struct {
	failures  int
	reminders int
}

func (s *dispatchMetricsStub) IncNotificationDispatchFailure() {
	s.failures++
}

func (s *dispatchMetricsStub) AddRemindersSent(n int) {
	s.reminders += n
}

type chanSink struct {
	messages chan mailer.Message
}

func (s *chanSink) Send(ctx context.Context, msg mailer.Message) error {
	s.messages <- msg
	return nil
}

func knownStudents() studentReaderStub {
	return studentReaderStub{students: map[string]*models.StudentDetail{
		"student-1": {
			StudentProfile: models.StudentProfile{ID: "student-1", UserID: "user-1"},
			Email:          "juana@cit.edu",
			FullName:       "Juana Dela Cruz",
		},
	}}
}

func notifierRequest(number, document string) *models.RequestDetail {
	return &models.RequestDetail{
		Request:      models.Request{ID: "req-1", RequestNumber: number, StudentID: "student-1", Status: models.StatusApproved},
		DocumentName: document,
	}
}

func TestNotificationServiceStatusChangeCopy(t *testing.T) {
	cases := []struct {
		name string
		from models.RequestStatus
		to   models.RequestStatus
		want string
	}{
		{
			name: "approved adds pickup instructions",
			from: models.StatusPending,
			to:   models.StatusApproved,
			want: "Your request #WD-2026-000042 for Transcript of Records has been updated from Pending to Approved. Please visit the Registrar's Office to claim your document.",
		},
		{
			name: "completed adds thanks",
			from: models.StatusApproved,
			to:   models.StatusCompleted,
			want: "Your request #WD-2026-000042 for Transcript of Records has been updated from Approved to Completed. Thank you for using WildDocs!",
		},
		{
			name: "rejected has no suffix",
			from: models.StatusPending,
			to:   models.StatusRejected,
			want: "Your request #WD-2026-000042 for Transcript of Records has been updated from Pending to Rejected.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &notificationRepoStub{}
			svc := NewNotificationService(repo, knownStudents(), &overdueListerStub{}, mailer.NewNoopSink(), nil, NotificationConfig{}, zap.NewNop())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			svc.Start(ctx)
			defer svc.Stop()

			svc.NotifyStatusChange(ctx, notifierRequest("WD-2026-000042", "Transcript of Records"), tc.from, tc.to)
			require.Len(t, repo.created, 1)
			assert.Equal(t, tc.want, repo.created[0].Message)
			assert.Equal(t, models.NotificationStatusChange, repo.created[0].Kind)
			assert.Equal(t, "user-1", repo.created[0].UserID)
		})
	}
}

func TestNotificationServicePersistFailureIsCountedNotRaised(t *testing.T) {
	repo := &notificationRepoStub{createErr: sql.ErrConnDone}
	metrics := &dispatchMetricsStub{}
	svc := NewNotificationService(repo, knownStudents(), &overdueListerStub{}, mailer.NewNoopSink(), metrics, NotificationConfig{}, zap.NewNop())

	svc.NotifyStatusChange(context.Background(), notifierRequest("WD-2026-000001", "Diploma"), models.StatusPending, models.StatusApproved)
	assert.Equal(t, 1, metrics.failures)
	assert.Empty(t, repo.created)
}

func TestNotificationServiceUnknownStudentIsCountedNotRaised(t *testing.T) {
	repo := &notificationRepoStub{}
	metrics := &dispatchMetricsStub{}
	svc := NewNotificationService(repo, studentReaderStub{}, &overdueListerStub{}, mailer.NewNoopSink(), metrics, NotificationConfig{}, zap.NewNop())

	svc.NotifyStatusChange(context.Background(), notifierRequest("WD-2026-000001", "Diploma"), models.StatusPending, models.StatusApproved)
	assert.Equal(t, 1, metrics.failures)
	assert.Empty(t, repo.created)
}

func TestNotificationServiceCommentFromStudentSkipped(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, knownStudents(), &overdueListerStub{}, mailer.NewNoopSink(), nil, NotificationConfig{}, zap.NewNop())

	author := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent, FullName: "Juana Dela Cruz"}
	svc.NotifyComment(context.Background(), notifierRequest("WD-2026-000001", "Diploma"), author, "any update?")
	assert.Empty(t, repo.created)
}

func TestNotificationServiceCommentFromStaffDispatched(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, knownStudents(), &overdueListerStub{}, mailer.NewNoopSink(), nil, NotificationConfig{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	author := &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff, FullName: "Mr. Reyes"}
	svc.NotifyComment(ctx, notifierRequest("WD-2026-000001", "Diploma"), author, "Ready for pickup tomorrow.")
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.NotificationComment, repo.created[0].Kind)
	assert.Contains(t, repo.created[0].Message, "Mr. Reyes commented on your request #WD-2026-000001")
}

func TestNotificationServiceReminderSweep(t *testing.T) {
	repo := &notificationRepoStub{}
	lister := &overdueListerStub{requests: []models.RequestDetail{
		*notifierRequest("WD-2026-000010", "Diploma"),
		*notifierRequest("WD-2026-000011", "Transcript of Records"),
	}}
	metrics := &dispatchMetricsStub{}
	svc := NewNotificationService(repo, knownStudents(), lister, mailer.NewNoopSink(), metrics, NotificationConfig{ReminderDays: 14}, zap.NewNop())
	fixed := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	sent, err := svc.RunReminderSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, metrics.reminders)
	assert.Equal(t, fixed.AddDate(0, 0, -14), lister.cutoff)
	require.Len(t, repo.created, 2)
	assert.Equal(t, "Reminder: Your approved request #WD-2026-000010 for Diploma is ready for pickup at the Registrar's Office. Please claim it within 30 days of approval.", repo.created[0].Message)
	assert.Equal(t, models.NotificationReminder, repo.created[0].Kind)
}

func TestNotificationServiceMailRelayDelivers(t *testing.T) {
	repo := &notificationRepoStub{}
	sink := &chanSink{messages: make(chan mailer.Message, 1)}
	svc := NewNotificationService(repo, knownStudents(), &overdueListerStub{}, sink, nil, NotificationConfig{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.NotifyStatusChange(ctx, notifierRequest("WD-2026-000042", "Diploma"), models.StatusPending, models.StatusApproved)

	select {
	case msg := <-sink.messages:
		assert.Equal(t, []string{"juana@cit.edu"}, msg.To)
		assert.Equal(t, "Request WD-2026-000042 Approved", msg.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("mail relay did not deliver")
	}
}

func TestNotificationServiceMarkReadNotFound(t *testing.T) {
	repo := &notificationRepoStub{markErr: sql.ErrNoRows}
	svc := NewNotificationService(repo, knownStudents(), &overdueListerStub{}, mailer.NewNoopSink(), nil, NotificationConfig{}, zap.NewNop())

	err := svc.MarkRead(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
