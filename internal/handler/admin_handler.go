package handler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
	"github.com/wilddocs/wilddocs-api/pkg/response"
)

type adminRequestService interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, *models.Pagination, error)
	Get(ctx context.Context, id, studentID string) (*models.RequestDetail, error)
	Approve(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error)
	Reject(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error)
	Complete(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error)
	Assign(ctx context.Context, id, staffID string) (*models.RequestDetail, error)
	Overdue(ctx context.Context, days int) ([]models.RequestDetail, error)
	Summary(ctx context.Context) (*models.DashboardSummary, error)
	PriorityScore(req *models.RequestDetail) int
}

type requestExporter interface {
	ExportCSV(ctx context.Context, filter models.RequestFilter) ([]byte, string, error)
	ExportPDF(ctx context.Context, filter models.RequestFilter) ([]byte, string, error)
}

// AdminHandler exposes the staff triage endpoints.
type AdminHandler struct {
	requests adminRequestService
	exports  requestExporter
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(requests adminRequestService, exports requestExporter) *AdminHandler {
	return &AdminHandler{requests: requests, exports: exports}
}

// triagedRequest decorates a request with its triage priority.
type triagedRequest struct {
	models.RequestDetail
	Priority int `json:"priority"`
}

// List godoc
// @Summary List all requests
// @Tags Admin
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Search request number, student name or number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/requests [get]
func (h *AdminHandler) List(c *gin.Context) {
	filter := parseRequestFilter(c)
	filter.AssignedTo = c.Query("assignedTo")

	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	triaged := make([]triagedRequest, 0, len(requests))
	for i := range requests {
		triaged = append(triaged, triagedRequest{
			RequestDetail: requests[i],
			Priority:      h.requests.PriorityScore(&requests[i]),
		})
	}
	if c.Query("sort") == "priority" {
		sort.SliceStable(triaged, func(i, j int) bool {
			return triaged[i].Priority > triaged[j].Priority
		})
	}
	response.JSON(c, http.StatusOK, triaged, pagination)
}

// Get godoc
// @Summary Get any request detail
// @Tags Admin
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /admin/requests/{id} [get]
func (h *AdminHandler) Get(c *gin.Context) {
	detail, err := h.requests.Get(c.Request.Context(), c.Param("id"), "")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve a pending request
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.TransitionInput false "Decision remarks"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/requests/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	h.transition(c, h.requests.Approve)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.TransitionInput false "Decision remarks"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/requests/{id}/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	h.transition(c, h.requests.Reject)
}

// Complete godoc
// @Summary Complete an approved request
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.TransitionInput false "Decision remarks"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/requests/{id}/complete [post]
func (h *AdminHandler) Complete(c *gin.Context) {
	h.transition(c, h.requests.Complete)
}

func (h *AdminHandler) transition(c *gin.Context, apply func(ctx context.Context, id, staffUserID, remarks string) (*models.RequestDetail, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input models.TransitionInput
	_ = c.ShouldBindJSON(&input)

	detail, err := apply(c.Request.Context(), c.Param("id"), claims.UserID, input.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Assign godoc
// @Summary Assign a request to a staff member
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.AssignInput true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /admin/requests/{id}/assign [post]
func (h *AdminHandler) Assign(c *gin.Context) {
	var input models.AssignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	detail, err := h.requests.Assign(c.Request.Context(), c.Param("id"), input.StaffID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Overdue godoc
// @Summary List approved requests awaiting pickup past the threshold
// @Tags Admin
// @Produce json
// @Param days query int false "Age threshold in days"
// @Success 200 {object} response.Envelope
// @Router /admin/requests/overdue [get]
func (h *AdminHandler) Overdue(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}
	requests, err := h.requests.Overdue(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil, map[string]interface{}{"count": len(requests)})
}

// Summary godoc
// @Summary Registrar dashboard summary
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/summary [get]
func (h *AdminHandler) Summary(c *gin.Context) {
	summary, err := h.requests.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export the filtered request list
// @Tags Admin
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /admin/requests/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	filter := parseRequestFilter(c)

	var (
		payload  []byte
		fileName string
		err      error
		mime     string
	)
	switch c.DefaultQuery("format", "csv") {
	case "pdf":
		payload, fileName, err = h.exports.ExportPDF(c.Request.Context(), filter)
		mime = "application/pdf"
	default:
		payload, fileName, err = h.exports.ExportCSV(c.Request.Context(), filter)
		mime = "text/csv"
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, mime, payload)
}
