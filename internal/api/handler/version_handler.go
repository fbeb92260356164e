package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/internal/service"
	"github.com/dfberenson/ob-resident-scheduler/pkg/response"
)

// VersionHandler 排班版本 HTTP 处理器
type VersionHandler struct {
	versionSvc    service.VersionService
	assignmentSvc service.AssignmentService
	conflictSvc   service.ConflictService
	logger        *zap.Logger
}

// NewVersionHandler 创建 VersionHandler
func NewVersionHandler(
	versionSvc service.VersionService,
	assignmentSvc service.AssignmentService,
	conflictSvc service.ConflictService,
	logger *zap.Logger,
) *VersionHandler {
	return &VersionHandler{
		versionSvc:    versionSvc,
		assignmentSvc: assignmentSvc,
		conflictSvc:   conflictSvc,
		logger:        logger,
	}
}

// ListVersions 列出周期的全部版本（新版本在前）
// GET /api/v1/periods/:id/versions
func (h *VersionHandler) ListVersions(c *gin.Context) {
	list, err := h.versionSvc.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OKList(c, list, len(list))
}

// LatestDraft 周期最新的草稿版本
// GET /api/v1/periods/:id/draft
func (h *VersionHandler) LatestDraft(c *gin.Context) {
	v, err := h.versionSvc.LatestDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, v)
}

// GetVersion 获取版本
// GET /api/v1/versions/:id
func (h *VersionHandler) GetVersion(c *gin.Context) {
	v, err := h.versionSvc.GetVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, v)
}

// ListAssignments 版本的全部排班项
// GET /api/v1/versions/:id/assignments
func (h *VersionHandler) ListAssignments(c *gin.Context) {
	list, err := h.assignmentSvc.ListByVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OKList(c, list, len(list))
}

// ListConflicts 版本当前的冲突
// GET /api/v1/versions/:id/conflicts
func (h *VersionHandler) ListConflicts(c *gin.Context) {
	list, err := h.conflictSvc.ListConflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OKList(c, list, len(list))
}

// ListAlerts 求解告警
// GET /api/v1/versions/:id/alerts
func (h *VersionHandler) ListAlerts(c *gin.Context) {
	list, err := h.versionSvc.ListAlerts(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OKList(c, list, len(list))
}

// Validate 校验汇总
// GET /api/v1/versions/:id/validate
func (h *VersionHandler) Validate(c *gin.Context) {
	res, err := h.conflictSvc.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, res)
}

// Publish 发布版本，同周期原已发布版本被取代
// POST /api/v1/versions/:id/publish
func (h *VersionHandler) Publish(c *gin.Context) {
	res, err := h.versionSvc.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, res)
}
