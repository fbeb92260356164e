package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/service"
	"github.com/dfberenson/ob-resident-scheduler/pkg/response"
)

// defaultWaitTimeout 长轮询缺省等待时间
const defaultWaitTimeout = 25 * time.Second

// JobHandler 排班生成任务 HTTP 处理器
type JobHandler struct {
	generationSvc service.GenerationService
	logger        *zap.Logger
}

// NewJobHandler 创建 JobHandler
func NewJobHandler(generationSvc service.GenerationService, logger *zap.Logger) *JobHandler {
	return &JobHandler{generationSvc: generationSvc, logger: logger}
}

// Generate 提交生成任务，立即返回 job_id
// POST /api/v1/periods/:id/generate
func (h *JobHandler) Generate(c *gin.Context) {
	res, err := h.generationSvc.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.Accepted(c, res)
}

// GetJob 查询任务状态
// GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.generationSvc.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, job)
}

// WaitJob 长轮询：任务进入终态或超时后返回当前状态
// GET /api/v1/jobs/:id/wait?timeout=10
func (h *JobHandler) WaitJob(c *gin.Context) {
	var req dto.WaitJobRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		handleBindError(c, err)
		return
	}
	timeout := defaultWaitTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}

	job, err := h.generationSvc.WaitJob(c.Request.Context(), c.Param("id"), timeout)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	response.OK(c, job)
}
