package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
)

type requestRepoStub struct {
	created        []*models.Request
	byID           map[string]*models.Request
	details        map[string]*models.RequestDetail
	transitionIDs  []string
	transitionTos  []models.RequestStatus
	transitionFrom models.RequestStatus
	transitionErr  error
	listItems      []models.RequestDetail
	listTotal      int
	stats          *models.RequestStatistics
	statsErr       error
	counts         []models.StatusCount
	countAll       int
	overdue        []models.RequestDetail
	overdueCutoff  time.Time
}

func (s *requestRepoStub) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = "req-1"
	}
	req.RequestNumber = "WD-2026-000001"
	req.Status = models.StatusPending
	s.created = append(s.created, req)
	return nil
}

func (s *requestRepoStub) FindByID(ctx context.Context, id string) (*models.Request, error) {
	if req, ok := s.byID[id]; ok {
		return req, nil
	}
	return nil, sql.ErrNoRows
}

func (s *requestRepoStub) FindDetail(ctx context.Context, id string) (*models.RequestDetail, error) {
	if detail, ok := s.details[id]; ok {
		return detail, nil
	}
	return nil, sql.ErrNoRows
}

func (s *requestRepoStub) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, int, error) {
	return s.listItems, s.listTotal, nil
}

func (s *requestRepoStub) Transition(ctx context.Context, id string, to models.RequestStatus, allowedFrom []models.RequestStatus, changedBy, remarks string) (models.RequestStatus, error) {
	s.transitionIDs = append(s.transitionIDs, id)
	s.transitionTos = append(s.transitionTos, to)
	if s.transitionErr != nil {
		return "", s.transitionErr
	}
	return s.transitionFrom, nil
}

func (s *requestRepoStub) Assign(ctx context.Context, id, staffID string) error {
	if _, ok := s.details[id]; !ok {
		return sql.ErrNoRows
	}
	return nil
}

func (s *requestRepoStub) Statistics(ctx context.Context, studentID string) (*models.RequestStatistics, error) {
	return s.stats, s.statsErr
}

func (s *requestRepoStub) CountsByStatus(ctx context.Context) ([]models.StatusCount, error) {
	return s.counts, nil
}

func (s *requestRepoStub) CountAll(ctx context.Context) (int, error) {
	return s.countAll, nil
}

func (s *requestRepoStub) OverdueApproved(ctx context.Context, cutoff time.Time) ([]models.RequestDetail, error) {
	s.overdueCutoff = cutoff
	return s.overdue, nil
}

type documentResolverStub struct {
	byID   map[string]*models.DocumentType
	byName map[string]*models.DocumentType
	demand []models.DocumentDemand
}

func (s documentResolverStub) Get(ctx context.Context, id string) (*models.DocumentType, error) {
	if doc, ok := s.byID[id]; ok {
		return doc, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "document type not found")
}

func (s documentResolverStub) ResolveByName(ctx context.Context, name string) (*models.DocumentType, error) {
	if doc, ok := s.byName[name]; ok {
		return doc, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "document type not found")
}

func (s documentResolverStub) TopDemand(ctx context.Context, limit int) ([]models.DocumentDemand, error) {
	return s.demand, nil
}

type studentCounterStub struct {
	count int
}

func (s studentCounterStub) CountActiveStudents(ctx context.Context) (int, error) {
	return s.count, nil
}

type notifierStub struct {
	froms []models.RequestStatus
	tos   []models.RequestStatus
}

func (s *notifierStub) NotifyStatusChange(ctx context.Context, req *models.RequestDetail, from, to models.RequestStatus) {
	s.froms = append(s.froms, from)
	s.tos = append(s.tos, to)
}

type lifecycleMetricsStub struct {
	filed       int
	transitions []string
}

func (s *lifecycleMetricsStub) IncRequestFiled() {
	s.filed++
}

func (s *lifecycleMetricsStub) IncTransition(to string) {
	s.transitions = append(s.transitions, to)
}

type statsCacheStub struct {
	cached      *models.RequestStatistics
	setCalls    int
	deleteCalls int
}

func (s *statsCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.cached == nil {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.RequestStatistics) = *s.cached
	return nil
}

func (s *statsCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.setCalls++
	return nil
}

func (s *statsCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deleteCalls++
	return nil
}

func pendingRequest(id, studentID string) *models.Request {
	return &models.Request{ID: id, StudentID: studentID, Status: models.StatusPending, Copies: 1}
}

func requestDetail(id, studentID string, status models.RequestStatus) *models.RequestDetail {
	return &models.RequestDetail{
		Request:      models.Request{ID: id, StudentID: studentID, Status: status, RequestNumber: "WD-2026-000001"},
		DocumentName: "Transcript of Records",
		StudentName:  "Juana Dela Cruz",
	}
}

func newRequestService(repo *requestRepoStub, docs documentResolverStub, notifier *notifierStub, metrics *lifecycleMetricsStub, cache *statsCacheStub) *RequestService {
	var n statusNotifier
	if notifier != nil {
		n = notifier
	}
	var m lifecycleMetrics
	if metrics != nil {
		m = metrics
	}
	var c statisticsCache
	if cache != nil {
		c = cache
	}
	return NewRequestService(repo, nil, docs, studentCounterStub{}, n, m, c, time.Minute, 30, nil, zap.NewNop())
}

func TestRequestServiceCreateFilesPendingRequest(t *testing.T) {
	repo := &requestRepoStub{details: map[string]*models.RequestDetail{
		"req-1": requestDetail("req-1", "student-1", models.StatusPending),
	}}
	docs := documentResolverStub{byID: map[string]*models.DocumentType{
		"doc-1": {ID: "doc-1", Name: "Transcript of Records", FeeCents: 15000, Active: true},
	}}
	metrics := &lifecycleMetricsStub{}
	cache := &statsCacheStub{}
	svc := newRequestService(repo, docs, nil, metrics, cache)

	detail, err := svc.Create(context.Background(), "student-1", models.CreateRequestInput{
		DocumentTypeID: "doc-1",
		Copies:         3,
		Purpose:        "Graduate school application requirements",
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", detail.ID)
	require.Len(t, repo.created, 1)
	assert.Equal(t, int64(45000), repo.created[0].FeeCents)
	assert.Equal(t, models.StatusPending, repo.created[0].Status)
	assert.Equal(t, 1, metrics.filed)
	assert.Equal(t, 1, cache.deleteCalls)
}

func TestRequestServiceCreateValidatesCopies(t *testing.T) {
	svc := newRequestService(&requestRepoStub{}, documentResolverStub{}, nil, nil, nil)

	for _, copies := range []int{0, 11} {
		_, err := svc.Create(context.Background(), "student-1", models.CreateRequestInput{
			DocumentTypeID: "doc-1",
			Copies:         copies,
			Purpose:        "Graduate school application requirements",
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestRequestServiceCreateValidatesPurposeLength(t *testing.T) {
	svc := newRequestService(&requestRepoStub{}, documentResolverStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), "student-1", models.CreateRequestInput{
		DocumentTypeID: "doc-1",
		Copies:         1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), "student-1", models.CreateRequestInput{
		DocumentTypeID: "doc-1",
		Copies:         1,
		Purpose:        "   short   ",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Create(context.Background(), "student-1", models.CreateRequestInput{
		DocumentTypeID: "doc-1",
		Copies:         1,
		Purpose:        string(long),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceCreateMeasuresPurposeInCharacters(t *testing.T) {
	repo := &requestRepoStub{details: map[string]*models.RequestDetail{
		"req-1": requestDetail("req-1", "student-1", models.StatusPending),
	}}
	docs := documentResolverStub{byID: map[string]*models.DocumentType{
		"doc-1": {ID: "doc-1", Name: "Transcript of Records", FeeCents: 15000, Active: true},
	}}
	svc := newRequestService(repo, docs, nil, nil, nil)

	// 9 characters, 27 bytes: under the minimum regardless of encoding.
	_, err := svc.Create(context.Background(), "student-1", models.CreateRequestInput{
		DocumentTypeID: "doc-1",
		Copies:         1,
		Purpose:        strings.Repeat("学", 9),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// 400 characters, 1200 bytes: within the 500-character ceiling.
	_, err = svc.Create(context.Background(), "student-1", models.CreateRequestInput{
		DocumentTypeID: "doc-1",
		Copies:         1,
		Purpose:        strings.Repeat("学", 400),
	})
	require.NoError(t, err)
}

func TestRequestServiceCreateRejectsInactiveDocument(t *testing.T) {
	docs := documentResolverStub{byID: map[string]*models.DocumentType{
		"doc-1": {ID: "doc-1", Name: "Good Moral Certificate", FeeCents: 5000, Active: false},
	}}
	svc := newRequestService(&requestRepoStub{}, docs, nil, nil, nil)

	_, err := svc.Create(context.Background(), "student-1", models.CreateRequestInput{
		DocumentTypeID: "doc-1",
		Copies:         1,
		Purpose:        "Graduate school application requirements",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceGetEnforcesOwnership(t *testing.T) {
	repo := &requestRepoStub{details: map[string]*models.RequestDetail{
		"req-1": requestDetail("req-1", "student-1", models.StatusPending),
	}}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, nil)

	_, err := svc.Get(context.Background(), "req-1", "student-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	detail, err := svc.Get(context.Background(), "req-1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", detail.ID)
}

func TestRequestServiceApproveNotifies(t *testing.T) {
	repo := &requestRepoStub{
		transitionFrom: models.StatusPending,
		details: map[string]*models.RequestDetail{
			"req-1": requestDetail("req-1", "student-1", models.StatusApproved),
		},
	}
	notifier := &notifierStub{}
	metrics := &lifecycleMetricsStub{}
	svc := newRequestService(repo, documentResolverStub{}, notifier, metrics, nil)

	detail, err := svc.Approve(context.Background(), "req-1", "staff-1", "ready soon")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, detail.Status)
	require.Len(t, notifier.tos, 1)
	assert.Equal(t, models.StatusPending, notifier.froms[0])
	assert.Equal(t, models.StatusApproved, notifier.tos[0])
	assert.Equal(t, []string{"APPROVED"}, metrics.transitions)
}

func TestRequestServiceTransitionSurfacesIllegalMove(t *testing.T) {
	repo := &requestRepoStub{
		transitionErr: appErrors.Clone(appErrors.ErrIllegalTransition, "cannot move COMPLETED request to APPROVED"),
	}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, nil)

	_, err := svc.Approve(context.Background(), "req-1", "staff-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceTransitionNotFound(t *testing.T) {
	repo := &requestRepoStub{transitionErr: sql.ErrNoRows}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, nil)

	_, err := svc.Complete(context.Background(), "missing", "staff-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceCancelOwnRequest(t *testing.T) {
	repo := &requestRepoStub{
		byID:           map[string]*models.Request{"req-1": pendingRequest("req-1", "student-1")},
		transitionFrom: models.StatusPending,
		details: map[string]*models.RequestDetail{
			"req-1": requestDetail("req-1", "student-1", models.StatusCancelled),
		},
	}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, nil)

	detail, err := svc.Cancel(context.Background(), "req-1", "student-1", "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, detail.Status)
	require.Len(t, repo.transitionTos, 1)
	assert.Equal(t, models.StatusCancelled, repo.transitionTos[0])
}

func TestRequestServiceCancelForbiddenForOtherStudent(t *testing.T) {
	repo := &requestRepoStub{
		byID: map[string]*models.Request{"req-1": pendingRequest("req-1", "student-1")},
	}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, nil)

	_, err := svc.Cancel(context.Background(), "req-1", "student-2", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.transitionIDs)
}

func TestRequestServiceCancelTwiceFails(t *testing.T) {
	cancelled := pendingRequest("req-1", "student-1")
	cancelled.Status = models.StatusCancelled
	repo := &requestRepoStub{
		byID:          map[string]*models.Request{"req-1": cancelled},
		transitionErr: appErrors.ErrIllegalTransition,
	}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, nil)

	_, err := svc.Cancel(context.Background(), "req-1", "student-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceStatisticsCacheMissThenStore(t *testing.T) {
	repo := &requestRepoStub{stats: &models.RequestStatistics{Total: 4, Pending: 1, Approved: 2, Completed: 1}}
	cache := &statsCacheStub{}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, cache)

	stats, err := svc.Statistics(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, cache.setCalls)
}

func TestRequestServiceStatisticsCacheHit(t *testing.T) {
	repo := &requestRepoStub{statsErr: sql.ErrConnDone}
	cache := &statsCacheStub{cached: &models.RequestStatistics{Total: 7, Completed: 7}}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, cache)

	stats, err := svc.Statistics(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Zero(t, cache.setCalls)
}

func TestRequestServiceOverdueUsesDefaultThreshold(t *testing.T) {
	repo := &requestRepoStub{}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, nil)
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.Overdue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, fixed.AddDate(0, 0, -30), repo.overdueCutoff)
}

func TestRequestServicePriorityScore(t *testing.T) {
	svc := newRequestService(&requestRepoStub{}, documentResolverStub{}, nil, nil, nil)
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	cases := []struct {
		name     string
		document string
		copies   int
		age      time.Duration
		want     int
	}{
		{"fresh urgent small", "Transcript of Records", 1, 0, 20},
		{"fresh ordinary small", "Good Moral Certificate", 2, 0, 5},
		{"aged ordinary medium", "Good Moral Certificate", 3, 5 * 24 * time.Hour, 10},
		{"aged ordinary bulk", "Good Moral Certificate", 5, 6 * 24 * time.Hour, 12},
		{"age capped", "Good Moral Certificate", 5, 45 * 24 * time.Hour, 20},
		{"old urgent small", "Diploma", 1, 30 * 24 * time.Hour, 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := &models.RequestDetail{
				Request:      models.Request{Copies: tc.copies, CreatedAt: fixed.Add(-tc.age)},
				DocumentName: tc.document,
			}
			assert.Equal(t, tc.want, svc.PriorityScore(req))
		})
	}
}

func TestRequestServiceSummaryAggregates(t *testing.T) {
	repo := &requestRepoStub{
		counts: []models.StatusCount{
			{Status: models.StatusPending, Count: 3},
			{Status: models.StatusApproved, Count: 2},
		},
		countAll: 5,
		overdue:  []models.RequestDetail{*requestDetail("req-9", "student-9", models.StatusApproved)},
	}
	docs := documentResolverStub{demand: []models.DocumentDemand{{Name: "Transcript of Records", RequestCount: 4}}}
	svc := NewRequestService(repo, nil, docs, studentCounterStub{count: 120}, nil, nil, nil, time.Minute, 30, nil, zap.NewNop())

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalRequests)
	assert.Equal(t, 1, summary.OverdueCount)
	assert.Equal(t, 120, summary.ActiveStudents)
	require.Len(t, summary.TopDocuments, 1)
	assert.Len(t, summary.ByStatus, 2)
}

func TestRequestServiceStudentSummary(t *testing.T) {
	completed := *requestDetail("req-2", "student-1", models.StatusCompleted)
	completed.CreatedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	completed.UpdatedAt = completed.CreatedAt.AddDate(0, 0, 4)
	diploma := *requestDetail("req-3", "student-1", models.StatusPending)
	diploma.DocumentName = "Diploma"
	repo := &requestRepoStub{
		stats:     &models.RequestStatistics{Total: 3, Pending: 2, Completed: 1},
		listItems: []models.RequestDetail{*requestDetail("req-1", "student-1", models.StatusPending), completed, diploma},
		listTotal: 3,
	}
	svc := newRequestService(repo, documentResolverStub{}, nil, nil, nil)

	summary, err := svc.StudentSummary(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Statistics.Total)
	assert.Len(t, summary.Recent, 3)
	assert.Equal(t, "Transcript of Records", summary.MostRequestedDocument)
	assert.InDelta(t, 4.0, summary.AvgProcessingDays, 0.01)
}
