package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wilddocs/wilddocs-api/internal/models"
	"github.com/wilddocs/wilddocs-api/internal/service"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
	"github.com/wilddocs/wilddocs-api/pkg/response"
)

// DocumentHandler exposes the document catalog endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// List godoc
// @Summary List document types
// @Tags Documents
// @Produce json
// @Param includeInactive query bool false "Include retired documents (staff only)"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	includeInactive := false
	claims := claimsFromContext(c)
	if claims != nil && claims.Role != models.RoleStudent {
		includeInactive = c.Query("includeInactive") == "true"
	}

	docs, err := h.documents.List(c.Request.Context(), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Get godoc
// @Summary Get document type
// @Tags Documents
// @Produce json
// @Param id path string true "Document type ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Create godoc
// @Summary Create document type
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body models.DocumentTypeInput true "Document payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var input models.DocumentTypeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Update godoc
// @Summary Update document type
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document type ID"
// @Param payload body models.DocumentTypeInput true "Document payload"
// @Success 200 {object} response.Envelope
// @Router /admin/documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	var input models.DocumentTypeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}

	doc, err := h.documents.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Deactivate godoc
// @Summary Retire document type
// @Tags Documents
// @Produce json
// @Param id path string true "Document type ID"
// @Success 204 {object} response.Envelope
// @Router /admin/documents/{id} [delete]
func (h *DocumentHandler) Deactivate(c *gin.Context) {
	if err := h.documents.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
