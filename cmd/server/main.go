package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dfberenson/ob-resident-scheduler/config"
	"github.com/dfberenson/ob-resident-scheduler/internal/api/handler"
	"github.com/dfberenson/ob-resident-scheduler/internal/api/router"
	"github.com/dfberenson/ob-resident-scheduler/internal/generator"
	"github.com/dfberenson/ob-resident-scheduler/internal/jobs"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	"github.com/dfberenson/ob-resident-scheduler/internal/service"
	"github.com/dfberenson/ob-resident-scheduler/pkg/database"
	applogger "github.com/dfberenson/ob-resident-scheduler/pkg/logger"
	"github.com/dfberenson/ob-resident-scheduler/pkg/metrics"
	"github.com/dfberenson/ob-resident-scheduler/pkg/redis"
	"github.com/dfberenson/ob-resident-scheduler/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（缺省按默认位置查找）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("job_store", cfg.Jobs.Store),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("服务异常退出", zap.Error(err))
	}
	logger.Info("服务器已关闭")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 链路追踪
	shutdownTracing, err := tracing.Setup(ctx, &cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("链路追踪关闭异常", zap.Error(err))
		}
	}()

	// 4. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return err
	}

	// 5. 连接 Redis（可选：未启用或连接失败时降级为内存任务存储且不限流）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，限流与共享任务存储将不可用", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// 6. 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheus(reg)

	// 7. 求解器
	gen, err := generator.Connect(&cfg.Generator, logger)
	if err != nil {
		return err
	}
	defer gen.Close()

	// 8. 依赖注入: Repository → Service → Tracker → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, logger, rec)

	tracker := jobs.NewTracker(newJobStore(cfg, rdb, logger), svc.Inputs, gen, svc.Version,
		jobs.OptionsFromConfig(&cfg.Jobs), logger, rec)
	svc.AttachTracker(tracker)
	h := handler.NewHandler(svc, logger)

	// 9. 初始化路由
	engine := router.Setup(cfg, router.Deps{
		Handler:  h,
		Redis:    rdb,
		Metrics:  rec,
		Gatherer: reg,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// 10. 启动 HTTP 服务与任务追踪器，收到信号后优雅关闭
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tracker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务器异常: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("收到关闭信号，开始优雅关闭...")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("服务器关闭异常", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// newJobStore 按配置选择任务存储；要求 Redis 但不可用时回退到内存
func newJobStore(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) jobs.Store {
	if cfg.Jobs.Store == "redis" {
		if rdb != nil {
			return jobs.NewRedisStore(rdb, cfg.Jobs.Ceiling, cfg.Jobs.Retention)
		}
		logger.Warn("Redis 不可用，生成任务改用内存存储")
	}
	return jobs.NewMemoryStore()
}
