package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/service"
	"github.com/dfberenson/ob-resident-scheduler/pkg/response"
)

// PeriodHandler 排班周期 HTTP 处理器
type PeriodHandler struct {
	periodSvc service.PeriodService
	logger    *zap.Logger
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(periodSvc service.PeriodService, logger *zap.Logger) *PeriodHandler {
	return &PeriodHandler{periodSvc: periodSvc, logger: logger}
}

// ListPeriods 列出周期
// GET /api/v1/periods
func (h *PeriodHandler) ListPeriods(c *gin.Context) {
	list, err := h.periodSvc.List(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OKList(c, list, len(list))
}

// CreatePeriod 创建周期
// POST /api/v1/periods
func (h *PeriodHandler) CreatePeriod(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	period, err := h.periodSvc.Create(c.Request.Context(), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.Created(c, period)
}

// OpenMonth 按自然月创建周期
// POST /api/v1/periods/open-month
func (h *PeriodHandler) OpenMonth(c *gin.Context) {
	var req dto.OpenMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	period, err := h.periodSvc.OpenMonth(c.Request.Context(), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.Created(c, period)
}

// GetPeriod 获取周期
// GET /api/v1/periods/:id
func (h *PeriodHandler) GetPeriod(c *gin.Context) {
	period, err := h.periodSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, period)
}

// RenamePeriod 修改周期名称
// PATCH /api/v1/periods/:id
func (h *PeriodHandler) RenamePeriod(c *gin.Context) {
	var req dto.UpdatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	period, err := h.periodSvc.Rename(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, period)
}
