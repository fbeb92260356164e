package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// PeriodService 排班周期业务接口
// 周期一经创建不可删除，日期不可修改
type PeriodService interface {
	Create(ctx context.Context, req *dto.CreatePeriodRequest) (*dto.PeriodResponse, error)
	OpenMonth(ctx context.Context, req *dto.OpenMonthRequest) (*dto.PeriodResponse, error)
	Get(ctx context.Context, id string) (*dto.PeriodResponse, error)
	List(ctx context.Context) ([]dto.PeriodResponse, error)
	Rename(ctx context.Context, id string, req *dto.UpdatePeriodRequest) (*dto.PeriodResponse, error)
}

type periodService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPeriodService 创建 PeriodService 实例
func NewPeriodService(repo *repository.Repository, logger *zap.Logger) PeriodService {
	return &periodService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *periodService) Create(ctx context.Context, req *dto.CreatePeriodRequest) (*dto.PeriodResponse, error) {
	start, err := model.ParseDate(req.StartDate)
	if err != nil {
		return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidPeriod, req.StartDate, "start_date")
	}
	end, err := model.ParseDate(req.EndDate)
	if err != nil {
		return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidPeriod, req.EndDate, "end_date")
	}
	if end.Before(start) {
		return nil, pkgerrors.WithDetail(pkgerrors.ErrInvalidPeriod, req.EndDate, "end_date")
	}

	return s.create(ctx, req.Name, start, end)
}

// ────────────────────── OpenMonth ──────────────────────

func (s *periodService) OpenMonth(ctx context.Context, req *dto.OpenMonthRequest) (*dto.PeriodResponse, error) {
	month := time.Month(req.Month)
	start, end, err := model.MonthRange(req.Year, month)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidPeriod, "", err)
	}

	name := model.MonthName(req.Year, month)
	if req.Name != nil && *req.Name != "" {
		name = *req.Name
	}
	return s.create(ctx, name, start, end)
}

func (s *periodService) create(ctx context.Context, name string, start, end time.Time) (*dto.PeriodResponse, error) {
	period := &model.SchedulePeriod{Name: name, StartDate: start, EndDate: end}
	if err := s.repo.Period.Create(ctx, period); err != nil {
		s.logger.Error("创建排班周期失败", zap.String("name", name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("排班周期已创建",
		zap.String("period_id", period.PeriodID),
		zap.String("start_date", model.FormatDate(start)),
		zap.String("end_date", model.FormatDate(end)),
	)
	return toPeriodResponse(period), nil
}

// ────────────────────── Get / List ──────────────────────

func (s *periodService) Get(ctx context.Context, id string) (*dto.PeriodResponse, error) {
	if err := requireID(id, pkgerrors.ErrPeriodNotFound, "period_id"); err != nil {
		return nil, err
	}
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrPeriodNotFound, id, "period_id")
		}
		s.logger.Error("查询排班周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toPeriodResponse(period), nil
}

func (s *periodService) List(ctx context.Context) ([]dto.PeriodResponse, error) {
	periods, err := s.repo.Period.List(ctx)
	if err != nil {
		s.logger.Error("列出排班周期失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.PeriodResponse, 0, len(periods))
	for i := range periods {
		result = append(result, *toPeriodResponse(&periods[i]))
	}
	return result, nil
}

// ────────────────────── Rename ──────────────────────

func (s *periodService) Rename(ctx context.Context, id string, req *dto.UpdatePeriodRequest) (*dto.PeriodResponse, error) {
	if err := requireID(id, pkgerrors.ErrPeriodNotFound, "period_id"); err != nil {
		return nil, err
	}
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WithDetail(pkgerrors.ErrPeriodNotFound, id, "period_id")
		}
		s.logger.Error("查询排班周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	period.Name = req.Name
	period.Version = req.Version
	if err := s.repo.Period.UpdateName(ctx, period); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新排班周期失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return toPeriodResponse(period), nil
}
