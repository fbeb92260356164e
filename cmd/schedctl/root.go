package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/config"
	"github.com/dfberenson/ob-resident-scheduler/pkg/database"
	applogger "github.com/dfberenson/ob-resident-scheduler/pkg/logger"
)

// env 子命令共享的配置、日志与数据库连接
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func (e *env) close() {
	if e.db != nil {
		if sqlDB, err := e.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	_ = e.logger.Sync()
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "schedctl",
		Short:        "OB resident scheduler admin tools",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（缺省按默认位置查找）")

	open := func() (*env, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("加载配置失败: %w", err)
		}
		logger, err := applogger.NewLogger(&cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("初始化日志失败: %w", err)
		}
		db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		if err != nil {
			return nil, err
		}
		return &env{cfg: cfg, logger: logger, db: db}, nil
	}

	cmd.AddCommand(newMigrateCmd(open))
	cmd.AddCommand(newOpenMonthCmd(open))
	cmd.AddCommand(newExportCmd(open))
	return cmd
}
