package model

import "time"

// ShiftType 班次代码
type ShiftType string

const (
	ShiftOBDay      ShiftType = "OB_DAY"
	ShiftOBL3       ShiftType = "OB_L3"
	ShiftOBOC       ShiftType = "OB_OC"
	ShiftOBL4       ShiftType = "OB_L4"
	ShiftOBPostcall ShiftType = "OB_POSTCALL"
	ShiftBTDay      ShiftType = "BT_DAY"
	ShiftBTV        ShiftType = "BT_V"
	ShiftBTO        ShiftType = "BT_O"
)

// ShiftTypes 全部已知班次，按展示顺序
var ShiftTypes = []ShiftType{
	ShiftOBDay, ShiftOBL3, ShiftOBOC, ShiftOBL4, ShiftOBPostcall, ShiftBTDay, ShiftBTV, ShiftBTO,
}

// Valid 是否为已知班次
func (s ShiftType) Valid() bool {
	for _, t := range ShiftTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Assignment 排班项表 — 对应 assignments
// 只能通过单项更新修改内容，所属版本永不变化
type Assignment struct {
	AssignmentID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	VersionID    string    `gorm:"type:uuid;not null;<-:create"                   json:"version_id"`
	ResidentID   string    `gorm:"type:uuid;not null"                             json:"resident_id"`
	Date         time.Time `gorm:"type:date;not null"                             json:"date"`
	ShiftType    ShiftType `gorm:"type:varchar(20);not null"                      json:"shift_type"`
	VersionedModel
}

// TableName 指定表名
func (Assignment) TableName() string { return "assignments" }

// AssignmentHistory 排班项变更历史表 — 对应 assignment_history（只追加）
type AssignmentHistory struct {
	HistoryID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"history_id"`
	AssignmentID  string    `gorm:"type:uuid;not null"                             json:"assignment_id"`
	ChangedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"changed_at"`
	OldResidentID string    `gorm:"type:uuid;not null"                             json:"old_resident_id"`
	NewResidentID string    `gorm:"type:uuid;not null"                             json:"new_resident_id"`
	OldDate       time.Time `gorm:"type:date;not null"                             json:"old_date"`
	NewDate       time.Time `gorm:"type:date;not null"                             json:"new_date"`
	OldShiftType  ShiftType `gorm:"type:varchar(20);not null"                      json:"old_shift_type"`
	NewShiftType  ShiftType `gorm:"type:varchar(20);not null"                      json:"new_shift_type"`
}

// TableName 指定表名
func (AssignmentHistory) TableName() string { return "assignment_history" }

// NewAssignmentHistory 由变更前后快照构造历史记录
func NewAssignmentHistory(before, after *Assignment, at time.Time) *AssignmentHistory {
	return &AssignmentHistory{
		AssignmentID:  after.AssignmentID,
		ChangedAt:     at,
		OldResidentID: before.ResidentID,
		NewResidentID: after.ResidentID,
		OldDate:       before.Date,
		NewDate:       after.Date,
		OldShiftType:  before.ShiftType,
		NewShiftType:  after.ShiftType,
	}
}
