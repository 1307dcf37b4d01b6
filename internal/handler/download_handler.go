package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wilddocs/wilddocs-api/internal/service"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
	"github.com/wilddocs/wilddocs-api/pkg/response"
)

// DownloadHandler serves signed slip downloads.
type DownloadHandler struct {
	exports *service.ExportService
}

// NewDownloadHandler constructs DownloadHandler.
func NewDownloadHandler(exports *service.ExportService) *DownloadHandler {
	return &DownloadHandler{exports: exports}
}

// Download godoc
// @Summary Download a slip via signed token
// @Tags Downloads
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} byte
// @Failure 401 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *DownloadHandler) Download(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token required"))
		return
	}

	file, fileName, err := h.exports.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read slip"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
}
