package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/config"
	"github.com/dfberenson/ob-resident-scheduler/internal/api/handler"
	"github.com/dfberenson/ob-resident-scheduler/internal/api/middleware"
	"github.com/dfberenson/ob-resident-scheduler/pkg/metrics"
	"github.com/dfberenson/ob-resident-scheduler/pkg/redis"
)

// Deps 路由依赖；Redis 与 Gatherer 可为 nil
type Deps struct {
	Handler  *handler.Handler
	Redis    *redis.Client
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidators()

	h := d.Handler
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing())
	r.Use(middleware.Logger(d.Logger, d.Metrics))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled && d.Gatherer != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 排班周期
		periods := v1.Group("/periods")
		{
			periods.GET("", h.Period.ListPeriods)
			periods.POST("", h.Period.CreatePeriod)
			periods.POST("/open-month", h.Period.OpenMonth)
			periods.GET("/:id", h.Period.GetPeriod)
			periods.PATCH("/:id", h.Period.RenamePeriod)
			periods.GET("/:id/versions", h.Version.ListVersions)
			periods.GET("/:id/draft", h.Version.LatestDraft)
			periods.POST("/:id/generate",
				middleware.RateLimit(d.Redis, cfg.RateLimit.GenerateLimit, cfg.RateLimit.GenerateWindow, d.Logger),
				h.Job.Generate)
		}

		// 生成任务
		jobs := v1.Group("/jobs")
		{
			jobs.GET("/:id", h.Job.GetJob)
			jobs.GET("/:id/wait", h.Job.WaitJob)
		}

		// 排班版本
		versions := v1.Group("/versions")
		{
			versions.GET("/:id", h.Version.GetVersion)
			versions.GET("/:id/assignments", h.Version.ListAssignments)
			versions.GET("/:id/conflicts", h.Version.ListConflicts)
			versions.GET("/:id/alerts", h.Version.ListAlerts)
			versions.GET("/:id/validate", h.Version.Validate)
			versions.POST("/:id/publish", h.Version.Publish)
			versions.GET("/:id/export", h.Export.ExportVersion)
		}

		// 排班项
		assignments := v1.Group("/assignments")
		{
			assignments.PATCH("/:id", h.Assignment.UpdateAssignment)
			assignments.GET("/:id/history", h.Assignment.History)
		}
	}

	return r
}
