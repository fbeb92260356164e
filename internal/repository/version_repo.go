package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// VersionRepository 排班版本数据访问接口
// 版本状态只能通过 Publish 改变；版本永不删除
type VersionRepository interface {
	// CreateWithAssignments 在同一事务中创建草稿版本及其全部排班项与告警
	CreateWithAssignments(ctx context.Context, version *model.ScheduleVersion, assignments []model.Assignment, alerts []model.ScheduleAlert) error
	GetByID(ctx context.Context, id string) (*model.ScheduleVersion, error)
	ListByPeriod(ctx context.Context, periodID string) ([]model.ScheduleVersion, error)
	GetLatestDraft(ctx context.Context, periodID string) (*model.ScheduleVersion, error)
	// Publish 原子地取代周期内当前已发布版本并发布目标版本
	Publish(ctx context.Context, versionID string, now time.Time) (*PublishResult, error)
}

// PublishResult 发布结果
type PublishResult struct {
	Published  *model.ScheduleVersion
	Superseded []model.ScheduleVersion
}

// AlertRepository 生成告警数据访问接口（只读）
type AlertRepository interface {
	ListByVersion(ctx context.Context, versionID string) ([]model.ScheduleAlert, error)
}

// ── Version Repository 实现 ──

type versionRepo struct {
	db *gorm.DB
}

func NewVersionRepo(db *gorm.DB) VersionRepository {
	return &versionRepo{db: db}
}

func (r *versionRepo) CreateWithAssignments(ctx context.Context, version *model.ScheduleVersion, assignments []model.Assignment, alerts []model.ScheduleAlert) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version.Status = model.VersionDraft
		if err := tx.Omit(clause.Associations).Create(version).Error; err != nil {
			return err
		}

		for i := range assignments {
			assignments[i].VersionID = version.VersionID
		}
		if len(assignments) > 0 {
			if err := tx.CreateInBatches(&assignments, 200).Error; err != nil {
				return err
			}
		}

		for i := range alerts {
			alerts[i].VersionID = version.VersionID
		}
		if len(alerts) > 0 {
			if err := tx.CreateInBatches(&alerts, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *versionRepo) GetByID(ctx context.Context, id string) (*model.ScheduleVersion, error) {
	var version model.ScheduleVersion
	err := r.db.WithContext(ctx).
		Preload("Period").
		Where("version_id = ?", id).
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *versionRepo) ListByPeriod(ctx context.Context, periodID string) ([]model.ScheduleVersion, error) {
	var versions []model.ScheduleVersion
	err := r.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		Order("created_at DESC, version_id DESC").
		Find(&versions).Error
	return versions, err
}

func (r *versionRepo) GetLatestDraft(ctx context.Context, periodID string) (*model.ScheduleVersion, error) {
	var version model.ScheduleVersion
	err := r.db.WithContext(ctx).
		Where("period_id = ? AND status = ?", periodID, model.VersionDraft).
		Order("created_at DESC").
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *versionRepo) Publish(ctx context.Context, versionID string, now time.Time) (*PublishResult, error) {
	var result PublishResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target model.ScheduleVersion
		if err := tx.Where("version_id = ?", versionID).First(&target).Error; err != nil {
			return err
		}

		// 锁定周期行：同一周期的发布在此串行化
		var period model.SchedulePeriod
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("period_id = ?", target.PeriodID).
			First(&period).Error; err != nil {
			return err
		}

		// 持锁后重新读取目标状态，排队的发布者会看到胜者的结果
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("version_id = ?", versionID).
			First(&target).Error; err != nil {
			return err
		}
		if err := target.TransitionTo(model.VersionPublished, now); err != nil {
			return err
		}

		var current []model.ScheduleVersion
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("period_id = ? AND status = ?", target.PeriodID, model.VersionPublished).
			Find(&current).Error; err != nil {
			return err
		}
		for i := range current {
			if err := current[i].TransitionTo(model.VersionSuperseded, now); err != nil {
				return err
			}
			res := tx.Model(&model.ScheduleVersion{}).
				Where("version_id = ? AND status = ?", current[i].VersionID, model.VersionPublished).
				Updates(map[string]interface{}{
					"status":        model.VersionSuperseded,
					"superseded_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return pkgerrors.WithDetail(pkgerrors.ErrConcurrentPublish, current[i].VersionID, "status")
			}
		}

		res := tx.Model(&model.ScheduleVersion{}).
			Where("version_id = ? AND status = ?", versionID, model.VersionDraft).
			Updates(map[string]interface{}{
				"status":       model.VersionPublished,
				"published_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.WithDetail(pkgerrors.ErrConcurrentPublish, versionID, "status")
		}

		target.Period = &period
		result.Published = &target
		result.Superseded = current
		return nil
	})
	if err != nil {
		// 部分唯一索引兜底：同一周期出现第二个 PUBLISHED
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrConcurrentPublish, versionID, err)
		}
		return nil, err
	}
	return &result, nil
}

// ── Alert Repository 实现 ──

type alertRepo struct {
	db *gorm.DB
}

func NewAlertRepo(db *gorm.DB) AlertRepository {
	return &alertRepo{db: db}
}

func (r *alertRepo) ListByVersion(ctx context.Context, versionID string) ([]model.ScheduleAlert, error) {
	var alerts []model.ScheduleAlert
	err := r.db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("date ASC, created_at ASC").
		Find(&alerts).Error
	return alerts, err
}
