package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/generator"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
	"github.com/dfberenson/ob-resident-scheduler/pkg/keymutex"
	"github.com/dfberenson/ob-resident-scheduler/pkg/metrics"
	"github.com/dfberenson/ob-resident-scheduler/pkg/tracing"
)

// VersionService 排班版本业务接口
type VersionService interface {
	// RecordGenerated 将求解结果落库为新 DRAFT 版本，全部成功或全部不写入
	RecordGenerated(ctx context.Context, periodID string, result *generator.Result) (string, error)
	ListVersions(ctx context.Context, periodID string) ([]dto.VersionResponse, error)
	GetVersion(ctx context.Context, versionID string) (*dto.VersionResponse, error)
	LatestDraft(ctx context.Context, periodID string) (*dto.VersionResponse, error)
	Publish(ctx context.Context, versionID string) (*dto.PublishResponse, error)
	ListAlerts(ctx context.Context, versionID string) ([]dto.AlertResponse, error)
}

type versionService struct {
	repo    *repository.Repository
	logger  *zap.Logger
	metrics metrics.Recorder
	tracer  trace.Tracer
	// 同一周期的发布在进程内串行化，跨进程由周期行锁保证
	publishLocks *keymutex.KeyedMutex
	now          func() time.Time
}

// NewVersionService 创建 VersionService 实例
func NewVersionService(repo *repository.Repository, logger *zap.Logger, m metrics.Recorder) VersionService {
	if m == nil {
		m = metrics.Nop{}
	}
	return &versionService{
		repo:         repo,
		logger:       logger,
		metrics:      m,
		tracer:       tracing.Tracer("service"),
		publishLocks: keymutex.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ════════════════════════════════════════════════════════════
// RecordGenerated
// ════════════════════════════════════════════════════════════

func (s *versionService) RecordGenerated(ctx context.Context, periodID string, result *generator.Result) (string, error) {
	ctx, span := s.tracer.Start(ctx, "versions.record_generated",
		trace.WithAttributes(attribute.String("period.id", periodID)))
	defer span.End()

	if err := requireID(periodID, pkgerrors.ErrInvalidPeriod, "period_id"); err != nil {
		return "", err
	}
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.WithDetail(pkgerrors.ErrInvalidPeriod, periodID, "period_id")
		}
		return "", err
	}

	assignments, err := s.validateAssignments(ctx, period, result.Assignments)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	alerts, err := buildAlerts(result.Alerts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	version := &model.ScheduleVersion{
		PeriodID:       periodID,
		Status:         model.VersionDraft,
		FairnessReport: datatypes.JSON(result.Fairness),
		UnmetRequests:  datatypes.JSON(result.UnmetRequests),
	}
	if err := s.repo.Version.CreateWithAssignments(ctx, version, assignments, alerts); err != nil {
		s.logger.Error("保存生成结果失败", zap.String("period_id", periodID), zap.Error(err))
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(attribute.String("version.id", version.VersionID))
	s.logger.Info("草稿版本已创建",
		zap.String("period_id", periodID),
		zap.String("version_id", version.VersionID),
		zap.Int("assignments", len(assignments)),
		zap.Int("alerts", len(alerts)),
	)
	return version.VersionID, nil
}

// validateAssignments 校验每个排班项：住院医师存在、日期在周期内、班次已知
// 错误详情的 id 为排班项下标
func (s *versionService) validateAssignments(ctx context.Context, period *model.SchedulePeriod, items []generator.Assignment) ([]model.Assignment, error) {
	out := make([]model.Assignment, 0, len(items))
	residentIDs := make([]string, 0, len(items))
	firstIndex := make(map[string]int)

	for i, item := range items {
		idx := strconv.Itoa(i)
		if _, err := uuid.Parse(item.ResidentID); err != nil {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidAssignment, idx, "resident_id")
		}
		date, err := model.ParseDate(item.Date)
		if err != nil || !period.Contains(date) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidAssignment, idx, "date")
		}
		shift := model.ShiftType(item.ShiftType)
		if !shift.Valid() {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidAssignment, idx, "shift_type")
		}

		if _, seen := firstIndex[item.ResidentID]; !seen {
			firstIndex[item.ResidentID] = i
			residentIDs = append(residentIDs, item.ResidentID)
		}
		out = append(out, model.Assignment{
			ResidentID: item.ResidentID,
			Date:       date,
			ShiftType:  shift,
		})
	}

	existing, err := s.repo.Input.ExistingResidentIDs(ctx, residentIDs)
	if err != nil {
		return nil, fmt.Errorf("查询住院医师失败: %w", err)
	}
	// 报告下标最小的未知住院医师
	missing := -1
	for _, id := range residentIDs {
		if !existing[id] && (missing < 0 || firstIndex[id] < missing) {
			missing = firstIndex[id]
		}
	}
	if missing >= 0 {
		return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidAssignment, strconv.Itoa(missing), "resident_id")
	}
	return out, nil
}

func buildAlerts(items []generator.Alert) ([]model.ScheduleAlert, error) {
	alerts := make([]model.ScheduleAlert, 0, len(items))
	for i, a := range items {
		date, err := model.ParseDate(a.Date)
		if err != nil {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrGeneratorFailure, "alerts["+strconv.Itoa(i)+"]", "date")
		}
		severity := a.Severity
		if severity == "" {
			severity = "HIGH"
		}
		alerts = append(alerts, model.ScheduleAlert{Date: date, Message: a.Message, Severity: severity})
	}
	return alerts, nil
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *versionService) ListVersions(ctx context.Context, periodID string) ([]dto.VersionResponse, error) {
	if err := requireID(periodID, pkgerrors.ErrPeriodNotFound, "period_id"); err != nil {
		return nil, err
	}
	if _, err := s.repo.Period.GetByID(ctx, periodID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrPeriodNotFound, periodID, "period_id")
		}
		s.logger.Error("查询排班周期失败", zap.String("id", periodID), zap.Error(err))
		return nil, err
	}

	versions, err := s.repo.Version.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("列出排班版本失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.VersionResponse, 0, len(versions))
	for i := range versions {
		result = append(result, *toVersionResponse(&versions[i]))
	}
	return result, nil
}

func (s *versionService) GetVersion(ctx context.Context, versionID string) (*dto.VersionResponse, error) {
	version, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return toVersionResponse(version), nil
}

func (s *versionService) getVersion(ctx context.Context, versionID string) (*model.ScheduleVersion, error) {
	if err := requireID(versionID, pkgerrors.ErrVersionNotFound, "version_id"); err != nil {
		return nil, err
	}
	version, err := s.repo.Version.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrVersionNotFound, versionID, "version_id")
		}
		s.logger.Error("查询排班版本失败", zap.String("id", versionID), zap.Error(err))
		return nil, err
	}
	return version, nil
}

func (s *versionService) LatestDraft(ctx context.Context, periodID string) (*dto.VersionResponse, error) {
	if err := requireID(periodID, pkgerrors.ErrPeriodNotFound, "period_id"); err != nil {
		return nil, err
	}
	if _, err := s.repo.Period.GetByID(ctx, periodID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrPeriodNotFound, periodID, "period_id")
		}
		return nil, err
	}

	version, err := s.repo.Version.GetLatestDraft(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrVersionNotFound, periodID, "period_id")
		}
		s.logger.Error("查询最新草稿失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	return toVersionResponse(version), nil
}

func (s *versionService) ListAlerts(ctx context.Context, versionID string) ([]dto.AlertResponse, error) {
	if _, err := s.getVersion(ctx, versionID); err != nil {
		return nil, err
	}

	alerts, err := s.repo.Alert.ListByVersion(ctx, versionID)
	if err != nil {
		s.logger.Error("列出告警失败", zap.String("version_id", versionID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.AlertResponse, 0, len(alerts))
	for i := range alerts {
		result = append(result, toAlertResponse(&alerts[i]))
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// Publish
// ════════════════════════════════════════════════════════════

func (s *versionService) Publish(ctx context.Context, versionID string) (*dto.PublishResponse, error) {
	ctx, span := s.tracer.Start(ctx, "versions.publish",
		trace.WithAttributes(attribute.String("version.id", versionID)))
	defer span.End()

	version, err := s.getVersion(ctx, versionID)
	if err != nil {
		s.metrics.Publish(pkgerrors.KindOf(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("period.id", version.PeriodID))

	unlock := s.publishLocks.Lock(version.PeriodID)
	defer unlock()

	res, err := s.repo.Version.Publish(ctx, versionID, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = pkgerrors.WithDetail(pkgerrors.ErrVersionNotFound, versionID, "version_id")
		}
		s.metrics.Publish(pkgerrors.KindOf(err))
		span.SetStatus(codes.Error, err.Error())
		if pkgerrors.KindOf(err) == "Internal" {
			s.logger.Error("发布排班版本失败", zap.String("version_id", versionID), zap.Error(err))
		}
		return nil, err
	}
	s.metrics.Publish("success")

	superseded := make([]dto.VersionResponse, 0, len(res.Superseded))
	supersededIDs := make([]string, 0, len(res.Superseded))
	for i := range res.Superseded {
		superseded = append(superseded, *toVersionResponse(&res.Superseded[i]))
		supersededIDs = append(supersededIDs, res.Superseded[i].VersionID)
	}

	s.logger.Info("排班版本已发布",
		zap.String("version_id", versionID),
		zap.String("period_id", version.PeriodID),
		zap.Strings("superseded", supersededIDs),
	)
	return &dto.PublishResponse{
		Published:  *toVersionResponse(res.Published),
		Superseded: superseded,
	}, nil
}
