package model

import (
	"time"

	"gorm.io/datatypes"
)

// ── 输入数据（外部维护，本服务只读） ──

// Resident 住院医师表 — 对应 residents
type Resident struct {
	ResidentID        string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"resident_id"`
	Name              string `gorm:"type:varchar(100);not null"                     json:"name"`
	Tier              int    `gorm:"type:smallint;not null;default:0"               json:"tier"`
	OBMonthsCompleted int    `gorm:"not null;default:0"                             json:"ob_months_completed"`
	BaseModel
}

// TableName 指定表名
func (Resident) TableName() string { return "residents" }

// TimeOffBlock 请假区间表 — 对应 time_off_blocks
type TimeOffBlock struct {
	TimeOffID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"time_off_id"`
	ResidentID  string    `gorm:"type:uuid;not null"                             json:"resident_id"`
	StartDate   time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate     time.Time `gorm:"type:date;not null"                             json:"end_date"`
	BlockType   ShiftType `gorm:"type:varchar(20);not null"                      json:"block_type"`
	Approved    bool      `gorm:"not null;default:true"                          json:"approved"`
	PreApproved bool      `gorm:"not null;default:false"                         json:"pre_approved"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (TimeOffBlock) TableName() string { return "time_off_blocks" }

// Covers 判断日期是否落在请假区间内（含首尾）
func (b *TimeOffBlock) Covers(d time.Time) bool {
	d = TruncateDate(d)
	return !d.Before(TruncateDate(b.StartDate)) && !d.After(TruncateDate(b.EndDate))
}

// Holiday 节假日表 — 对应 holidays
// HospitalHoliday 为空表示尚未确认医院是否放假
type Holiday struct {
	HolidayID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"holiday_id"`
	Date            time.Time `gorm:"type:date;not null;uniqueIndex"                 json:"date"`
	Name            string    `gorm:"type:varchar(100);not null"                     json:"name"`
	HospitalHoliday *bool     `json:"hospital_holiday"`
}

// TableName 指定表名
func (Holiday) TableName() string { return "holidays" }

// Confirmed 是否已确认
func (h *Holiday) Confirmed() bool { return h.HospitalHoliday != nil }

// RequestType 住院医师申请类型
type RequestType string

const (
	RequestPreferCall RequestType = "PREFER_CALL"
	RequestAvoidCall  RequestType = "AVOID_CALL"
	RequestWeekendOff RequestType = "WEEKEND_OFF"
)

// ResidentRequest 住院医师排班申请表 — 对应 resident_requests
type ResidentRequest struct {
	RequestID   string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_id"`
	ResidentID  string      `gorm:"type:uuid;not null"                             json:"resident_id"`
	RequestType RequestType `gorm:"type:varchar(20);not null"                      json:"request_type"`
	StartDate   time.Time   `gorm:"type:date;not null"                             json:"start_date"`
	EndDate     time.Time   `gorm:"type:date;not null"                             json:"end_date"`
	Approved    bool        `gorm:"not null;default:true"                          json:"approved"`
	PreApproved bool        `gorm:"not null;default:false"                         json:"pre_approved"`
	CreatedAt   time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ResidentRequest) TableName() string { return "resident_requests" }

// SolverConstraints 求解约束配置表 — 对应 solver_constraints
// PeriodID 为空为全局配置，非空为周期覆盖配置
type SolverConstraints struct {
	ConstraintsID string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"constraints_id"`
	PeriodID      *string        `gorm:"type:uuid"                                      json:"period_id,omitempty"`
	Config        datatypes.JSON `gorm:"type:jsonb;not null"                            json:"config"`
	UpdatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (SolverConstraints) TableName() string { return "solver_constraints" }
