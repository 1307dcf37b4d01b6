package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilddocs/wilddocs-api/internal/middleware"
	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
)

type adminServiceMock struct {
	listResp       []models.RequestDetail
	transitionResp *models.RequestDetail
	transitionErr  error
	overdueResp    []models.RequestDetail
	summaryResp    *models.DashboardSummary
	lastStaffID    string
	lastRemarks    string
	lastDays       int
	approveCalled  bool
	completeCalled bool
	assignCalled   bool
}

func (m *adminServiceMock) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, *models.Pagination, error) {
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, nil
}

func (m *adminServiceMock) Get(ctx context.Context, id, studentID string) (*models.RequestDetail, error) {
	return m.transitionResp, m.transitionErr
}

func (m *adminServiceMock) Approve(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error) {
	m.approveCalled = true
	m.lastStaffID = staffUserID
	m.lastRemarks = remarks
	return m.transitionResp, m.transitionErr
}

func (m *adminServiceMock) Reject(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error) {
	m.lastStaffID = staffUserID
	m.lastRemarks = remarks
	return m.transitionResp, m.transitionErr
}

func (m *adminServiceMock) Complete(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error) {
	m.completeCalled = true
	m.lastStaffID = staffUserID
	return m.transitionResp, m.transitionErr
}

func (m *adminServiceMock) Assign(ctx context.Context, id, staffID string) (*models.RequestDetail, error) {
	m.assignCalled = true
	m.lastStaffID = staffID
	return m.transitionResp, m.transitionErr
}

func (m *adminServiceMock) Overdue(ctx context.Context, days int) ([]models.RequestDetail, error) {
	m.lastDays = days
	return m.overdueResp, nil
}

func (m *adminServiceMock) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	return m.summaryResp, nil
}

func (m *adminServiceMock) PriorityScore(req *models.RequestDetail) int {
	return 15
}

type exporterMock struct {
	payload  []byte
	fileName string
	err      error
}

func (m *exporterMock) ExportCSV(ctx context.Context, filter models.RequestFilter) ([]byte, string, error) {
	return m.payload, m.fileName, m.err
}

func (m *exporterMock) ExportPDF(ctx context.Context, filter models.RequestFilter) ([]byte, string, error) {
	return m.payload, m.fileName, m.err
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff-user-1", Role: models.RoleStaff, ProfileID: "staff-1"}
}

func TestAdminHandlerApprove(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &adminServiceMock{
		transitionResp: &models.RequestDetail{Request: models.Request{ID: "req-1", Status: models.StatusApproved}},
	}
	handler := NewAdminHandler(mockSvc, &exporterMock{})

	payload, _ := json.Marshal(models.TransitionInput{Remarks: "verified records"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/requests/req-1/approve", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.approveCalled)
	assert.Equal(t, "staff-user-1", mockSvc.lastStaffID)
	assert.Equal(t, "verified records", mockSvc.lastRemarks)
}

func TestAdminHandlerCompleteIllegalTransition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &adminServiceMock{
		transitionErr: appErrors.ErrIllegalTransition,
	}
	handler := NewAdminHandler(mockSvc, &exporterMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/requests/req-1/complete", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Complete(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, mockSvc.completeCalled)
}

func TestAdminHandlerListDecoratesPriority(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &adminServiceMock{
		listResp: []models.RequestDetail{{Request: models.Request{ID: "req-1", Status: models.StatusPending}}},
	}
	handler := NewAdminHandler(mockSvc, &exporterMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/admin/requests", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []struct {
			ID       string `json:"id"`
			Priority int    `json:"priority"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "req-1", envelope.Data[0].ID)
	assert.Equal(t, 15, envelope.Data[0].Priority)
}

func TestAdminHandlerAssignInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &adminServiceMock{}
	handler := NewAdminHandler(mockSvc, &exporterMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/requests/req-1/assign", bytes.NewBufferString(`{"staff_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Assign(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.assignCalled)
}

func TestAdminHandlerOverdueParsesThreshold(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &adminServiceMock{
		overdueResp: []models.RequestDetail{{Request: models.Request{ID: "req-1"}}},
	}
	handler := NewAdminHandler(mockSvc, &exporterMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/admin/requests/overdue?days=45", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Overdue(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 45, mockSvc.lastDays)

	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.EqualValues(t, 1, envelope.Meta["count"])
}

func TestAdminHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAdminHandler(&adminServiceMock{}, &exporterMock{
		payload:  []byte("request_number,status\n"),
		fileName: "requests-export.csv",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/admin/requests/export", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "requests-export.csv")
	assert.Equal(t, "request_number,status\n", w.Body.String())
}
