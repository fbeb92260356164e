package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// PeriodRepository 排班周期数据访问接口
// 周期不提供删除操作：版本永久引用其所属周期
type PeriodRepository interface {
	Create(ctx context.Context, period *model.SchedulePeriod) error
	GetByID(ctx context.Context, id string) (*model.SchedulePeriod, error)
	List(ctx context.Context) ([]model.SchedulePeriod, error)
	UpdateName(ctx context.Context, period *model.SchedulePeriod) error
}

type periodRepo struct {
	db *gorm.DB
}

func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) Create(ctx context.Context, period *model.SchedulePeriod) error {
	return r.db.WithContext(ctx).Create(period).Error
}

func (r *periodRepo) GetByID(ctx context.Context, id string) (*model.SchedulePeriod, error) {
	var period model.SchedulePeriod
	err := r.db.WithContext(ctx).
		Where("period_id = ?", id).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) List(ctx context.Context) ([]model.SchedulePeriod, error) {
	var periods []model.SchedulePeriod
	err := r.db.WithContext(ctx).
		Order("start_date DESC").
		Find(&periods).Error
	return periods, err
}

// UpdateName 仅更新元数据（名称），日期区间不可变
func (r *periodRepo) UpdateName(ctx context.Context, period *model.SchedulePeriod) error {
	oldVersion := period.Version
	result := r.db.WithContext(ctx).
		Model(&model.SchedulePeriod{}).
		Where("period_id = ? AND version = ?", period.PeriodID, oldVersion).
		Updates(map[string]interface{}{
			"name":       period.Name,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	period.Version = oldVersion + 1
	return nil
}
