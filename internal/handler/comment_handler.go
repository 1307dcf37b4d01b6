package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wilddocs/wilddocs-api/internal/models"
	"github.com/wilddocs/wilddocs-api/internal/service"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
	"github.com/wilddocs/wilddocs-api/pkg/response"
)

// CommentHandler exposes the request discussion thread endpoints.
type CommentHandler struct {
	comments *service.CommentService
}

// NewCommentHandler constructs CommentHandler.
func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Create godoc
// @Summary Post a comment on a request
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.CreateCommentInput true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input models.CreateCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), c.Param("id"), claims, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// List godoc
// @Summary List a request's comments
// @Tags Comments
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	comments, err := h.comments.List(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}
