package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/internal/conflict"
	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/policy"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// ConflictService 冲突检测业务接口
// 每次调用基于当前排班项重新计算，结果不缓存
type ConflictService interface {
	ListConflicts(ctx context.Context, versionID string) ([]dto.ConflictResponse, error)
	// Validate 汇总冲突、求解告警、公平性报告与未满足申请
	Validate(ctx context.Context, versionID string) (*dto.ValidationResponse, error)
}

type conflictService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewConflictService 创建 ConflictService 实例
func NewConflictService(repo *repository.Repository, logger *zap.Logger) ConflictService {
	return &conflictService{repo: repo, logger: logger}
}

func (s *conflictService) ListConflicts(ctx context.Context, versionID string) ([]dto.ConflictResponse, error) {
	version, err := loadVersion(ctx, s.repo, versionID)
	if err != nil {
		return nil, err
	}

	conflicts, err := detectConflicts(ctx, s.repo, version)
	if err != nil {
		s.logger.Error("冲突检测失败", zap.String("version_id", versionID), zap.Error(err))
		return nil, err
	}
	return toConflictResponses(conflicts), nil
}

func (s *conflictService) Validate(ctx context.Context, versionID string) (*dto.ValidationResponse, error) {
	version, err := loadVersion(ctx, s.repo, versionID)
	if err != nil {
		return nil, err
	}

	conflicts, err := detectConflicts(ctx, s.repo, version)
	if err != nil {
		s.logger.Error("冲突检测失败", zap.String("version_id", versionID), zap.Error(err))
		return nil, err
	}
	alerts, err := s.repo.Alert.ListByVersion(ctx, versionID)
	if err != nil {
		s.logger.Error("列出告警失败", zap.String("version_id", versionID), zap.Error(err))
		return nil, err
	}

	alertResp := make([]dto.AlertResponse, 0, len(alerts))
	for i := range alerts {
		alertResp = append(alertResp, toAlertResponse(&alerts[i]))
	}

	fairness := rawJSON(version.FairnessReport)
	if fairness == nil {
		fairness = json.RawMessage(`{}`)
	}
	unmet := rawJSON(version.UnmetRequests)
	if unmet == nil {
		unmet = json.RawMessage(`[]`)
	}

	return &dto.ValidationResponse{
		VersionID:     version.VersionID,
		Status:        string(version.Status),
		Conflicts:     toConflictResponses(conflicts),
		Alerts:        alertResp,
		Fairness:      fairness,
		UnmetRequests: unmet,
	}, nil
}

// ── 共享辅助 ──

// requireID 校验路径中的 ID 为合法 UUID
// 非法 ID 与不存在的 ID 返回相同的错误，不下发到数据库
func requireID(id string, kind error, field string) error {
	if _, err := uuid.Parse(id); err != nil {
		return pkgerrors.WithDetail(kind, id, field)
	}
	return nil
}

// loadVersion 查询版本并附带所属周期
func loadVersion(ctx context.Context, repo *repository.Repository, versionID string) (*model.ScheduleVersion, error) {
	if err := requireID(versionID, pkgerrors.ErrVersionNotFound, "version_id"); err != nil {
		return nil, err
	}
	version, err := repo.Version.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrVersionNotFound, versionID, "version_id")
		}
		return nil, err
	}
	if version.Period == nil {
		period, err := repo.Period.GetByID(ctx, version.PeriodID)
		if err != nil {
			return nil, err
		}
		version.Period = period
	}
	return version, nil
}

// loadPolicy 读取周期生效的求解约束并构造冲突策略；无约束配置时使用默认策略
func loadPolicy(ctx context.Context, repo *repository.Repository, periodID string) (*policy.Policy, error) {
	constraints, err := repo.Input.GetConstraints(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Default()
		}
		return nil, err
	}

	p, err := policy.FromConstraints(constraints.Config)
	if err != nil {
		return nil, &pkgerrors.DetailError{
			Kind:  pkgerrors.ErrInvalidPeriod,
			ID:    constraints.ConstraintsID,
			Field: "config",
			Cause: err,
		}
	}
	return p, nil
}

// detectConflicts 对版本当前的排班项执行冲突检测
func detectConflicts(ctx context.Context, repo *repository.Repository, version *model.ScheduleVersion) ([]conflict.Conflict, error) {
	period := version.Period

	assignments, err := repo.Assignment.ListByVersion(ctx, version.VersionID)
	if err != nil {
		return nil, err
	}
	timeOff, err := repo.Input.ListApprovedTimeOff(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}
	residents, err := repo.Input.ListResidents(ctx)
	if err != nil {
		return nil, err
	}
	pol, err := loadPolicy(ctx, repo, period.PeriodID)
	if err != nil {
		return nil, err
	}

	return conflict.Detect(conflict.Input{
		Assignments: assignments,
		TimeOff:     timeOff,
		Residents:   residents,
		Policy:      pol,
	}), nil
}
