package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// AssignmentMutator 在更新事务内修改排班项；返回错误时整个事务回滚
type AssignmentMutator func(a *model.Assignment, version *model.ScheduleVersion, period *model.SchedulePeriod) error

// AssignmentRepository 排班项数据访问接口
type AssignmentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	ListByVersion(ctx context.Context, versionID string) ([]model.Assignment, error)
	// UpdateWithHistory 是排班项内容的唯一修改路径：字段更新与历史追加在同一事务内完成
	UpdateWithHistory(ctx context.Context, id string, now time.Time, mutate AssignmentMutator) (*model.Assignment, *model.AssignmentHistory, error)
}

// HistoryRepository 排班项变更历史数据访问接口（只读；写入仅发生在 UpdateWithHistory 内）
type HistoryRepository interface {
	ListByAssignment(ctx context.Context, assignmentID string) ([]model.AssignmentHistory, error)
}

// ── Assignment Repository 实现 ──

type assignmentRepo struct {
	db *gorm.DB
}

func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) ListByVersion(ctx context.Context, versionID string) ([]model.Assignment, error) {
	var items []model.Assignment
	err := r.db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("date ASC, resident_id ASC, shift_type ASC").
		Find(&items).Error
	return items, err
}

func (r *assignmentRepo) UpdateWithHistory(ctx context.Context, id string, now time.Time, mutate AssignmentMutator) (*model.Assignment, *model.AssignmentHistory, error) {
	var (
		updated model.Assignment
		entry   *model.AssignmentHistory
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("assignment_id = ?", id).
			First(&updated).Error; err != nil {
			return err
		}

		// 共享锁与发布的排他锁互斥，避免与发布交错
		var version model.ScheduleVersion
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("version_id = ?", updated.VersionID).
			First(&version).Error; err != nil {
			return err
		}
		var period model.SchedulePeriod
		if err := tx.Where("period_id = ?", version.PeriodID).First(&period).Error; err != nil {
			return err
		}

		before := updated
		if err := mutate(&updated, &version, &period); err != nil {
			return err
		}

		oldVersion := before.Version
		result := tx.Model(&model.Assignment{}).
			Where("assignment_id = ? AND version = ?", id, oldVersion).
			Updates(map[string]interface{}{
				"resident_id": updated.ResidentID,
				"date":        updated.Date,
				"shift_type":  updated.ShiftType,
				"updated_at":  now,
				"version":     oldVersion + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		updated.Version = oldVersion + 1
		updated.UpdatedAt = now

		entry = model.NewAssignmentHistory(&before, &updated, now)
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &updated, entry, nil
}

// ── History Repository 实现 ──

type historyRepo struct {
	db *gorm.DB
}

func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]model.AssignmentHistory, error) {
	var entries []model.AssignmentHistory
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("changed_at ASC, history_id ASC").
		Find(&entries).Error
	return entries, err
}
