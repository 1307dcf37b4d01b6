package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wilddocs/wilddocs-api/internal/models"
	"github.com/wilddocs/wilddocs-api/internal/service"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
	"github.com/wilddocs/wilddocs-api/pkg/response"
)

type studentRequestService interface {
	Create(ctx context.Context, studentID string, input models.CreateRequestInput) (*models.RequestDetail, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, *models.Pagination, error)
	Get(ctx context.Context, id, studentID string) (*models.RequestDetail, error)
	Cancel(ctx context.Context, id, studentID, reason string) (*models.RequestDetail, error)
	Timeline(ctx context.Context, id, studentID string) ([]models.TimelineEntry, error)
	Statistics(ctx context.Context, studentID string) (*models.RequestStatistics, error)
	StudentSummary(ctx context.Context, studentID string) (*models.StudentSummary, error)
}

type slipRenderer interface {
	PickupSlip(ctx context.Context, requestID, studentID string) (*service.SlipLink, error)
	Receipt(ctx context.Context, requestID, studentID string) (*service.SlipLink, error)
}

// RequestHandler exposes the student-facing request endpoints.
type RequestHandler struct {
	requests studentRequestService
	exports  slipRenderer
}

// NewRequestHandler constructs RequestHandler.
func NewRequestHandler(requests studentRequestService, exports slipRenderer) *RequestHandler {
	return &RequestHandler{requests: requests, exports: exports}
}

// Create godoc
// @Summary File a document request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body models.CreateRequestInput true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input models.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	detail, err := h.requests.Create(c.Request.Context(), claims.ProfileID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List own requests
// @Tags Requests
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := parseRequestFilter(c)
	filter.StudentID = claims.ProfileID

	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get request detail
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	detail, err := h.requests.Get(c.Request.Context(), c.Param("id"), studentProfileID(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Cancel godoc
// @Summary Cancel a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/cancel [post]
func (h *RequestHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&payload)

	detail, err := h.requests.Cancel(c.Request.Context(), c.Param("id"), claims.ProfileID, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Timeline godoc
// @Summary Request status timeline
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/timeline [get]
func (h *RequestHandler) Timeline(c *gin.Context) {
	claims := claimsFromContext(c)
	entries, err := h.requests.Timeline(c.Request.Context(), c.Param("id"), studentProfileID(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Statistics godoc
// @Summary Own request statistics
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/statistics [get]
func (h *RequestHandler) Statistics(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.requests.Statistics(c.Request.Context(), claims.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Summary godoc
// @Summary Own request summary
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/summary [get]
func (h *RequestHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.requests.StudentSummary(c.Request.Context(), claims.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// PickupSlip godoc
// @Summary Render pickup slip for an approved request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/slip [post]
func (h *RequestHandler) PickupSlip(c *gin.Context) {
	claims := claimsFromContext(c)
	link, err := h.exports.PickupSlip(c.Request.Context(), c.Param("id"), studentProfileID(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Receipt godoc
// @Summary Render receipt for a completed request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/receipt [post]
func (h *RequestHandler) Receipt(c *gin.Context) {
	claims := claimsFromContext(c)
	link, err := h.exports.Receipt(c.Request.Context(), c.Param("id"), studentProfileID(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

func parseRequestFilter(c *gin.Context) models.RequestFilter {
	var filter models.RequestFilter
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.RequestStatus(raw)
		if status.Valid() {
			filter.Status = &status
		}
	}
	filter.DocumentTypeID = c.Query("documentTypeId")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
