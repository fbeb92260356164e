package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
)

// InputRepository 排班输入数据的只读访问接口
// 住院医师、请假、节假日、申请与约束由外部系统维护
type InputRepository interface {
	ListResidents(ctx context.Context) ([]model.Resident, error)
	ExistingResidentIDs(ctx context.Context, ids []string) (map[string]bool, error)
	ListApprovedTimeOff(ctx context.Context, start, end time.Time) ([]model.TimeOffBlock, error)
	ListHolidays(ctx context.Context, start, end time.Time) ([]model.Holiday, error)
	ListApprovedRequests(ctx context.Context, start, end time.Time) ([]model.ResidentRequest, error)
	// GetConstraints 优先返回周期覆盖配置，否则返回全局配置
	GetConstraints(ctx context.Context, periodID string) (*model.SolverConstraints, error)
}

type inputRepo struct {
	db *gorm.DB
}

func NewInputRepo(db *gorm.DB) InputRepository {
	return &inputRepo{db: db}
}

func (r *inputRepo) ListResidents(ctx context.Context) ([]model.Resident, error) {
	var residents []model.Resident
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&residents).Error
	return residents, err
}

func (r *inputRepo) ExistingResidentIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []string
	err := r.db.WithContext(ctx).
		Model(&model.Resident{}).
		Where("resident_id IN ?", ids).
		Pluck("resident_id", &existing).Error
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

func (r *inputRepo) ListApprovedTimeOff(ctx context.Context, start, end time.Time) ([]model.TimeOffBlock, error) {
	var blocks []model.TimeOffBlock
	err := r.db.WithContext(ctx).
		Where("approved = ? AND start_date <= ? AND end_date >= ?", true, end, start).
		Order("resident_id ASC, start_date ASC").
		Find(&blocks).Error
	return blocks, err
}

func (r *inputRepo) ListHolidays(ctx context.Context, start, end time.Time) ([]model.Holiday, error) {
	var holidays []model.Holiday
	err := r.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", start, end).
		Order("date ASC").
		Find(&holidays).Error
	return holidays, err
}

func (r *inputRepo) ListApprovedRequests(ctx context.Context, start, end time.Time) ([]model.ResidentRequest, error) {
	var requests []model.ResidentRequest
	err := r.db.WithContext(ctx).
		Where("approved = ? AND start_date <= ? AND end_date >= ?", true, end, start).
		Order("resident_id ASC, start_date ASC").
		Find(&requests).Error
	return requests, err
}

func (r *inputRepo) GetConstraints(ctx context.Context, periodID string) (*model.SolverConstraints, error) {
	var c model.SolverConstraints
	err := r.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("period_id IS NULL").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
