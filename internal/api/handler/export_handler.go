package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/service"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
	logger    *zap.Logger
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, logger: logger}
}

// ExportVersion 导出版本
// GET /api/v1/versions/:id/export?format=xlsx|ics&resident_id=xxx
func (h *ExportHandler) ExportVersion(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		handleBindError(c, err)
		return
	}

	file, err := h.exportSvc.Export(c.Request.Context(), c.Param("id"), req.Format, req.ResidentID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content.Bytes())
}
