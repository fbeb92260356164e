package model

import (
	"time"

	"gorm.io/datatypes"

	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// VersionStatus 排班版本状态
type VersionStatus string

const (
	VersionDraft      VersionStatus = "DRAFT"
	VersionPublished  VersionStatus = "PUBLISHED"
	VersionSuperseded VersionStatus = "SUPERSEDED"
)

// versionTransitions 版本状态迁移表，未列出的迁移一律拒绝
var versionTransitions = map[VersionStatus][]VersionStatus{
	VersionDraft:      {VersionPublished},
	VersionPublished:  {VersionSuperseded},
	VersionSuperseded: nil,
}

// Valid 是否为已知状态
func (s VersionStatus) Valid() bool {
	_, ok := versionTransitions[s]
	return ok
}

// CanTransitionTo 判断状态迁移是否合法
func (s VersionStatus) CanTransitionTo(to VersionStatus) bool {
	for _, next := range versionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ScheduleVersion 排班版本表 — 对应 schedule_versions
type ScheduleVersion struct {
	VersionID      string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"version_id"`
	PeriodID       string         `gorm:"type:uuid;not null"                             json:"period_id"`
	Status         VersionStatus  `gorm:"type:varchar(20);not null;default:'DRAFT'"      json:"status"`
	FairnessReport datatypes.JSON `gorm:"type:jsonb"                                     json:"fairness_report,omitempty"`
	UnmetRequests  datatypes.JSON `gorm:"type:jsonb"                                     json:"unmet_requests,omitempty"`
	PublishedAt    *time.Time     `json:"published_at,omitempty"`
	SupersededAt   *time.Time     `json:"superseded_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Period *SchedulePeriod `gorm:"foreignKey:PeriodID;references:PeriodID" json:"period,omitempty"`
}

// TableName 指定表名
func (ScheduleVersion) TableName() string { return "schedule_versions" }

// TransitionTo 按迁移表修改状态并记录时间戳
func (v *ScheduleVersion) TransitionTo(to VersionStatus, now time.Time) error {
	if v.Status == to && to == VersionPublished {
		return pkgerrors.WithDetail(pkgerrors.ErrAlreadyPublished, v.VersionID, "status")
	}
	if !v.Status.CanTransitionTo(to) {
		return pkgerrors.WithDetail(pkgerrors.ErrInvalidTransition, v.VersionID, "status")
	}
	v.Status = to
	switch to {
	case VersionPublished:
		v.PublishedAt = &now
	case VersionSuperseded:
		v.SupersededAt = &now
	}
	return nil
}

// ScheduleAlert 生成告警表 — 对应 schedule_alerts（由求解器产出，只读）
type ScheduleAlert struct {
	AlertID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"alert_id"`
	VersionID string    `gorm:"type:uuid;not null"                             json:"version_id"`
	Date      time.Time `gorm:"type:date;not null"                             json:"date"`
	Message   string    `gorm:"type:varchar(500);not null"                     json:"message"`
	Severity  string    `gorm:"type:varchar(20);not null;default:'HIGH'"       json:"severity"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ScheduleAlert) TableName() string { return "schedule_alerts" }
