package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/service"
	"github.com/dfberenson/ob-resident-scheduler/pkg/response"
)

// AssignmentHandler 排班项 HTTP 处理器
type AssignmentHandler struct {
	assignmentSvc service.AssignmentService
	logger        *zap.Logger
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(assignmentSvc service.AssignmentService, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{assignmentSvc: assignmentSvc, logger: logger}
}

// UpdateAssignment 部分更新排班项
// PATCH /api/v1/assignments/:id
func (h *AssignmentHandler) UpdateAssignment(c *gin.Context) {
	var req dto.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	res, err := h.assignmentSvc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, res)
}

// History 变更历史（时间正序）
// GET /api/v1/assignments/:id/history
func (h *AssignmentHandler) History(c *gin.Context) {
	list, err := h.assignmentSvc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OKList(c, list, len(list))
}
